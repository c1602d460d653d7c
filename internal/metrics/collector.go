// Package metrics provides ambient observability for the thesis harness:
// per-pass context-budget accounting and per-response insight-quality
// heuristics. Neither is consulted by the cycle controller, the branching
// controller, or the termination detector — those act only on the
// marker-extraction counts and confidence model defined in internal/marker
// and internal/confidence. This package is a side channel for callers who
// want to observe what the engine did, not a second source of decisions.
package metrics

import (
	"regexp"
	"strings"
	"sync"
)

// Category is one of the five token categories a pass's prompt material
// falls into.
type Category string

const (
	CategoryData      Category = "data"
	CategoryThesis    Category = "thesis"
	CategoryReasoning Category = "reasoning"
	CategoryPattern   Category = "pattern"
	CategorySystem    Category = "system"
)

// PassSnapshot records the running totals at the end of one named pass.
type PassSnapshot struct {
	Pass            string
	DataTokens      int
	ThesisTokens    int
	ReasoningTokens int
	PatternTokens   int
	Total           int
	Utilization     float64
	Allocation      map[Category]float64
}

// ContextBudgetTracker accounts for token usage across the five categories
// a pass's prompt material can fall into, across an entire session.
type ContextBudgetTracker struct {
	mu sync.Mutex

	dataTokens      int
	thesisTokens    int
	reasoningTokens int
	patternTokens   int
	systemTokens    int

	maxContext int
	history    []PassSnapshot
}

// NewContextBudgetTracker constructs a tracker against a context-window
// ceiling (Claude's context window by default).
func NewContextBudgetTracker(maxContext int) *ContextBudgetTracker {
	if maxContext <= 0 {
		maxContext = 100000
	}
	return &ContextBudgetTracker{maxContext: maxContext}
}

// countTokens approximates tokens as characters/4, matching
// scratchpad.Scratchpad.EstimateTokens so the two subsystems agree on
// what a "token" costs without either depending on a tokenizer library.
func countTokens(text string) int {
	return len(text) / 4
}

// AddData records tool-result / structured-data tokens and returns the count added.
func (t *ContextBudgetTracker) AddData(text string) int { return t.add(&t.dataTokens, text) }

// AddThesis records loaded prior-belief tokens and returns the count added.
func (t *ContextBudgetTracker) AddThesis(text string) int { return t.add(&t.thesisTokens, text) }

// AddReasoning records the model's own analysis tokens and returns the count added.
func (t *ContextBudgetTracker) AddReasoning(text string) int { return t.add(&t.reasoningTokens, text) }

// AddPattern records historical-analogue tokens and returns the count added.
func (t *ContextBudgetTracker) AddPattern(text string) int { return t.add(&t.patternTokens, text) }

// AddSystem records system-prompt scaffolding tokens and returns the count added.
func (t *ContextBudgetTracker) AddSystem(text string) int { return t.add(&t.systemTokens, text) }

func (t *ContextBudgetTracker) add(counter *int, text string) int {
	tokens := countTokens(text)
	t.mu.Lock()
	*counter += tokens
	t.mu.Unlock()
	return tokens
}

// RecordPass snapshots the running totals under a pass name and appends it
// to the tracker's history.
func (t *ContextBudgetTracker) RecordPass(passName string) PassSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := PassSnapshot{
		Pass:            passName,
		DataTokens:      t.dataTokens,
		ThesisTokens:    t.thesisTokens,
		ReasoningTokens: t.reasoningTokens,
		PatternTokens:   t.patternTokens,
		Total:           t.totalLocked(),
		Utilization:     t.utilizationLocked(),
		Allocation:      t.allocationLocked(),
	}
	t.history = append(t.history, snap)
	return snap
}

// History returns every snapshot recorded so far, in pass order.
func (t *ContextBudgetTracker) History() []PassSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PassSnapshot, len(t.history))
	copy(out, t.history)
	return out
}

func (t *ContextBudgetTracker) totalLocked() int {
	return t.dataTokens + t.thesisTokens + t.reasoningTokens + t.patternTokens + t.systemTokens
}

// Total returns the running token total across all categories.
func (t *ContextBudgetTracker) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLocked()
}

func (t *ContextBudgetTracker) utilizationLocked() float64 {
	if t.maxContext == 0 {
		return 0
	}
	return float64(t.totalLocked()) / float64(t.maxContext)
}

// Utilization returns the fraction of the context window consumed so far.
func (t *ContextBudgetTracker) Utilization() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.utilizationLocked()
}

func (t *ContextBudgetTracker) allocationLocked() map[Category]float64 {
	total := t.totalLocked()
	if total == 0 {
		total = 1
	}
	return map[Category]float64{
		CategoryData:      float64(t.dataTokens) / float64(total) * 100,
		CategoryThesis:    float64(t.thesisTokens) / float64(total) * 100,
		CategoryReasoning: float64(t.reasoningTokens) / float64(total) * 100,
		CategoryPattern:   float64(t.patternTokens) / float64(total) * 100,
		CategorySystem:    float64(t.systemTokens) / float64(total) * 100,
	}
}

// AllocationPercentages returns, for each category, its share of total
// tokens tracked so far.
func (t *ContextBudgetTracker) AllocationPercentages() map[Category]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocationLocked()
}

// InsightMetrics is a per-response quality heuristic: rough counts of
// causal chains, historical precedents, quantified predictions, and risk
// mentions in a single pass's output text. It is computed on demand by
// AnalyzeResponseQuality; pass.Result carries no field for it, and engine
// decisions never consult it.
type InsightMetrics struct {
	UniqueInsights        int
	CausalChains          int
	HistoricalPrecedents  int
	QuantifiedPredictions int
	RisksIdentified       int
	TotalOutputTokens     int
}

// InsightDensity returns insights per 100 tokens.
func (m InsightMetrics) InsightDensity() float64 {
	if m.TotalOutputTokens == 0 {
		return 0
	}
	return float64(m.UniqueInsights) / float64(m.TotalOutputTokens) * 100
}

// ReasoningDepth returns causal chains as a fraction of unique insights.
func (m InsightMetrics) ReasoningDepth() float64 {
	if m.UniqueInsights == 0 {
		return 0
	}
	return float64(m.CausalChains) / float64(m.UniqueInsights)
}

var (
	causalMarkers     = []string{"because", "therefore", "leads to", "results in", "causes", "which means", "as a result", "→"}
	historicalMarkers = []string{"historically", "in 20", "similar to", "precedent", "previously", "last time", "analogous"}
	riskMarkers       = []string{"risk", "could fail", "downside", "bear case", "uncertainty", "if wrong", "challenge"}

	quantPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+%`),
		regexp.MustCompile(`\$\d+`),
		regexp.MustCompile(`Q[1-4]\s*20\d{2}`),
		regexp.MustCompile(`20\d{2}Q[1-4]`),
		regexp.MustCompile(`\d+\s*(quarters?|years?|months?)`),
	}
	insightMarkers = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\d+\.`),
		regexp.MustCompile(`(?m)^[-•]`),
		regexp.MustCompile(`\*\*[^*]+\*\*:`),
		regexp.MustCompile(`(?m)##\s+`),
	}
)

// AnalyzeResponseQuality scans a single pass's output text for rough
// insight-quality signals.
func AnalyzeResponseQuality(responseText string) InsightMetrics {
	m := InsightMetrics{TotalOutputTokens: countTokens(responseText)}

	lower := strings.ToLower(responseText)
	for _, marker := range causalMarkers {
		m.CausalChains += strings.Count(lower, marker)
	}
	for _, marker := range historicalMarkers {
		m.HistoricalPrecedents += strings.Count(lower, marker)
	}
	for _, marker := range riskMarkers {
		m.RisksIdentified += strings.Count(lower, marker)
	}
	for _, pattern := range quantPatterns {
		m.QuantifiedPredictions += len(pattern.FindAllString(responseText, -1))
	}
	for _, pattern := range insightMarkers {
		m.UniqueInsights += len(pattern.FindAllString(responseText, -1))
	}
	if m.UniqueInsights == 0 && len(responseText) > 100 {
		m.UniqueInsights = 1
	}

	return m
}
