// Package router implements Pass 0: classifying a query (plus any ingested
// claims) against the prior-belief library and allocating a token budget
// for the first expansion pass. The classification heuristic is
// unspecified policy per the harness contract; this package supplies one
// concrete implementation, grounded on the retrieval pack's own Pass-0
// router, that the harness is free to swap out.
package router

import (
	"regexp"
	"strconv"
	"strings"

	"thesisharness/internal/priorlib"
)

// RouteType is the query classification.
type RouteType string

const (
	RouteFit     RouteType = "fit"
	RouteAdjacent RouteType = "adjacent"
	RouteNetNew  RouteType = "net_new"
)

// Budget is the 4-tuple token allocation for a route type.
type Budget struct {
	ThesisTokens    int
	PatternTokens   int
	DataTokens      int
	ReasoningTokens int
}

// Total is the sum of all allocated tokens.
func (b Budget) Total() int {
	return b.ThesisTokens + b.PatternTokens + b.DataTokens + b.ReasoningTokens
}

// allocations is the exact fractional table from the spec.
var allocations = map[RouteType]struct{ thesis, pattern, data, reasoning float64 }{
	RouteFit:      {0.40, 0.00, 0.30, 0.30},
	RouteAdjacent: {0.00, 0.30, 0.40, 0.30},
	RouteNetNew:   {0.10, 0.00, 0.30, 0.60},
}

// Claim is the minimal shape the router needs from an ingested claim.
type Claim struct {
	Text string
}

// Result is the Pass-0 routing decision.
type Result struct {
	RouteType        RouteType
	Confidence       float64
	MatchedTheses    []priorlib.Thesis
	MatchedPatterns  []priorlib.Pattern
	Budget           Budget
	Reasoning        string
}

// Router routes a query to a budget, consulting a prior-belief library that
// MUST be tolerated even when empty (trivially NET_NEW).
type Router struct {
	Library     *priorlib.Library
	TotalBudget int
}

// New constructs a Router over the given library with the default total
// token budget (8000, per spec §4.4).
func New(lib *priorlib.Library) *Router {
	if lib == nil {
		lib = priorlib.NewEmpty()
	}
	return &Router{Library: lib, TotalBudget: 8000}
}

// strategicKeywords upgrade a NET_NEW classification to ADJACENT when claim
// text contains strategic-analysis vocabulary, mirroring the retrieval
// pack's router enhancement step.
var strategicKeywords = []string{
	"market", "competition", "valuation", "growth", "margin",
	"acquisition", "strategy", "moat", "disruption", "thesis",
}

var entityPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
var tickerPattern = regexp.MustCompile(`\b[A-Z]{2,5}\b`)

// Route classifies query+claims and returns the routing decision.
func (r *Router) Route(query string, claims []Claim) Result {
	searchText := query
	for _, c := range claims {
		searchText += " " + c.Text
	}

	theses := r.Library.SearchTheses(searchText, 3)
	patterns := r.Library.SearchPatterns(searchText, 2)

	routeType, confidence, reasoning := classify(query, theses, patterns)
	result := Result{
		RouteType:       routeType,
		Confidence:      confidence,
		MatchedTheses:   theses,
		MatchedPatterns: patterns,
		Budget:          r.allocate(routeType),
		Reasoning:       reasoning,
	}

	if result.RouteType == RouteNetNew && len(claims) > 0 {
		result = r.enhanceWithClaims(result, claims)
	}

	return result
}

func classify(query string, theses []priorlib.Thesis, patterns []priorlib.Pattern) (RouteType, float64, string) {
	if len(theses) > 0 {
		best := theses[0]
		queryTerms := tokenSet(query)
		thesisTerms := tokenSet(best.Title)
		for _, tag := range best.Tags {
			thesisTerms[strings.ToLower(tag)] = true
		}

		overlap := 0
		for t := range queryTerms {
			if thesisTerms[t] {
				overlap++
			}
		}

		tagHit := false
		lowerQuery := strings.ToLower(query)
		for _, tag := range best.Tags {
			if strings.Contains(lowerQuery, strings.ToLower(tag)) {
				tagHit = true
				break
			}
		}

		if overlap >= 2 || tagHit {
			conf := 0.5 + float64(overlap)*0.1
			if conf > 0.9 {
				conf = 0.9
			}
			return RouteFit, conf, "query matches thesis '" + best.Title + "' (domain: " + best.Domain + ")"
		}
	}

	if len(patterns) > 0 && len(theses) == 0 {
		return RouteAdjacent, 0.6, "query relates to framework '" + patterns[0].Title + "' but no existing thesis"
	}

	if len(theses) > 0 && len(patterns) > 0 {
		return RouteAdjacent, 0.5, "weak matches: thesis '" + theses[0].Title + "', pattern '" + patterns[0].Title + "'"
	}

	return RouteNetNew, 0.8, "no matching theses or patterns - fresh analysis territory"
}

func (r *Router) allocate(route RouteType) Budget {
	a := allocations[route]
	total := r.TotalBudget
	return Budget{
		ThesisTokens:    int(float64(total) * a.thesis),
		PatternTokens:   int(float64(total) * a.pattern),
		DataTokens:      int(float64(total) * a.data),
		ReasoningTokens: int(float64(total) * a.reasoning),
	}
}

// enhanceWithClaims upgrades NET_NEW to ADJACENT when claims carry strategic
// vocabulary and a pattern match can be found via extracted entities.
func (r *Router) enhanceWithClaims(result Result, claims []Claim) Result {
	var claimText strings.Builder
	for _, c := range claims {
		claimText.WriteString(strings.ToLower(c.Text))
		claimText.WriteString(" ")
	}
	text := claimText.String()

	hasKeyword := false
	for _, kw := range strategicKeywords {
		if strings.Contains(text, kw) {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return result
	}

	entities := extractEntities(claims)
	if len(entities) == 0 {
		return result
	}

	patterns := r.Library.SearchPatterns(strings.Join(entities, " "), 2)
	if len(patterns) == 0 {
		return result
	}

	result.RouteType = RouteAdjacent
	result.MatchedPatterns = patterns
	result.Reasoning = "claims contain strategic concepts, matched to '" + patterns[0].Title + "'"
	result.Budget = r.allocate(RouteAdjacent)
	return result
}

func extractEntities(claims []Claim) []string {
	seen := make(map[string]bool)
	var entities []string
	for _, c := range claims {
		for _, m := range entityPattern.FindAllString(c.Text, -1) {
			if !seen[m] {
				seen[m] = true
				entities = append(entities, m)
			}
		}
		for _, m := range tickerPattern.FindAllString(c.Text, -1) {
			if !seen[m] {
				seen[m] = true
				entities = append(entities, m)
			}
		}
		if len(entities) >= 10 {
			break
		}
	}
	if len(entities) > 10 {
		entities = entities[:10]
	}
	return entities
}

func tokenSet(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// AssembledContext renders the router result into the text block injected
// verbatim into the first expansion prompt.
func (res Result) AssembledContext() string {
	var b strings.Builder

	if len(res.MatchedTheses) > 0 {
		b.WriteString("# Matched Theses\n")
		for _, t := range res.MatchedTheses {
			b.WriteString("- " + t.Title + " (" + t.Domain + ")\n")
		}
		b.WriteString("\n")
	}

	if len(res.MatchedPatterns) > 0 {
		b.WriteString("# Matched Patterns\n")
		for _, p := range res.MatchedPatterns {
			b.WriteString("- " + p.Title + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("# Routing Decision\n")
	b.WriteString("Type: " + strings.ToUpper(string(res.RouteType)) + "\n")
	b.WriteString("Reasoning: " + res.Reasoning + "\n\n")
	b.WriteString("# Context Budget\n")
	b.WriteString("- thesis: " + strconv.Itoa(res.Budget.ThesisTokens) + "\n")
	b.WriteString("- pattern: " + strconv.Itoa(res.Budget.PatternTokens) + "\n")
	b.WriteString("- data: " + strconv.Itoa(res.Budget.DataTokens) + "\n")
	b.WriteString("- reasoning: " + strconv.Itoa(res.Budget.ReasoningTokens) + "\n")

	return b.String()
}
