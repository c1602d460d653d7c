// Package probe implements the optional compression-quality evaluator:
// before a scratchpad compresses, build a handful of probes (recall,
// artifact, continuation, decision) against the pre-compression context,
// then ask the oracle each probe question against the post-compression
// context and score how much survived. Grounded directly on the retrieval
// pack's compression_probes.py.
package probe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"thesisharness/internal/oracle"
	"thesisharness/internal/scratchpad"
)

// Type identifies one of the four probe kinds.
type Type string

const (
	TypeRecall       Type = "recall"
	TypeArtifact     Type = "artifact"
	TypeContinuation Type = "continuation"
	TypeDecision     Type = "decision"
)

// MaxProbesPerType caps how many probes of a single kind get generated.
const MaxProbesPerType = 3

// PassThreshold is the minimum score for a probe to count as passed.
const PassThreshold = 0.6

// Probe is a single question to ask against the compressed context.
type Probe struct {
	Type           Type
	Question       string
	ExpectedAnswer string
	Weight         float64
}

// Result is the scored outcome of running one probe.
type Result struct {
	Probe        Probe
	ActualAnswer string
	Score        float64
	Reasoning    string
	Passed       bool
}

// Summary aggregates a full probe run.
type Summary struct {
	Results []Result
}

// OverallScore is the weight-weighted mean score across all probes.
func (s Summary) OverallScore() float64 {
	if len(s.Results) == 0 {
		return 0
	}
	var totalWeight, weightedSum float64
	for _, r := range s.Results {
		totalWeight += r.Probe.Weight
		weightedSum += r.Score * r.Probe.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// PassRate is the fraction of probes that passed.
func (s Summary) PassRate() float64 {
	if len(s.Results) == 0 {
		return 0
	}
	passed := 0
	for _, r := range s.Results {
		if r.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(s.Results))
}

var metricPattern = regexp.MustCompile(`([A-Za-z_\s]+):\s*([\d.]+%?|\$[\d.]+[BMK]?)`)

// CreateProbes builds the probe set from the scratchpad's state before
// compression runs.
func CreateProbes(originalContext string, s *scratchpad.Scratchpad) []Probe {
	var probes []Probe
	probes = append(probes, recallProbes(originalContext, s)...)
	probes = append(probes, artifactProbes(s)...)
	probes = append(probes, continuationProbes(s)...)
	probes = append(probes, decisionProbes(s)...)
	return probes
}

func recallProbes(context string, s *scratchpad.Scratchpad) []Probe {
	var probes []Probe
	for _, m := range metricPattern.FindAllStringSubmatch(context, -1) {
		if len(probes) >= MaxProbesPerType {
			break
		}
		name := strings.TrimSpace(m[1])
		value := m[2]
		probes = append(probes, Probe{
			Type:           TypeRecall,
			Question:       fmt.Sprintf("What is the value of %s mentioned in the analysis?", name),
			ExpectedAnswer: value,
			Weight:         1.0,
		})
	}

	if s.Title != "" && len(probes) < MaxProbesPerType {
		probes = append(probes, Probe{
			Type:           TypeRecall,
			Question:       "What is the main thesis being analyzed?",
			ExpectedAnswer: truncate(s.Title, 200),
			Weight:         1.5,
		})
	}

	if len(probes) > MaxProbesPerType {
		probes = probes[:MaxProbesPerType]
	}
	return probes
}

func artifactProbes(s *scratchpad.Scratchpad) []Probe {
	var probes []Probe
	for _, ke := range s.KeyEvidence {
		if len(probes) >= MaxProbesPerType {
			break
		}
		probes = append(probes, Probe{
			Type:           TypeArtifact,
			Question:       fmt.Sprintf("Is there key evidence from %s about: %s...?", ke.Source, truncate(ke.Content, 50)),
			ExpectedAnswer: truncate(ke.Content, 100),
			Weight:         2.0,
		})
	}
	return probes
}

func continuationProbes(s *scratchpad.Scratchpad) []Probe {
	var probes []Probe
	for _, q := range s.SectionItems(sectionQuestions) {
		if len(probes) >= MaxProbesPerType {
			break
		}
		probes = append(probes, Probe{
			Type:           TypeContinuation,
			Question:       fmt.Sprintf("What open question remains about: %s...?", truncate(q, 50)),
			ExpectedAnswer: q,
			Weight:         1.0,
		})
	}
	if len(probes) == 0 {
		probes = append(probes, Probe{
			Type:           TypeContinuation,
			Question:       "What is the next logical step in this analysis?",
			ExpectedAnswer: "continue_analysis",
			Weight:         0.5,
		})
	}
	return probes
}

func decisionProbes(s *scratchpad.Scratchpad) []Probe {
	var probes []Probe

	bucket := "low"
	switch {
	case s.CurrentConfidence > 0.7:
		bucket = "high"
	case s.CurrentConfidence > 0.4:
		bucket = "medium"
	}
	probes = append(probes, Probe{
		Type:           TypeDecision,
		Question:       "What is the current confidence level in the thesis (high/medium/low)?",
		ExpectedAnswer: bucket,
		Weight:         1.5,
	})

	if decisions := s.SectionItems(sectionDecisions); len(decisions) > 0 {
		probes = append(probes, Probe{
			Type:           TypeDecision,
			Question:       "What is the current decision/recommendation?",
			ExpectedAnswer: decisions[len(decisions)-1],
			Weight:         2.0,
		})
	}

	if len(probes) > MaxProbesPerType {
		probes = probes[:MaxProbesPerType]
	}
	return probes
}

// Run asks the oracle each probe question against the post-compression
// context and scores the replies.
func Run(ctx context.Context, o oracle.Oracle, compressedContext string, probes []Probe) Summary {
	var summary Summary
	for _, p := range probes {
		prompt := fmt.Sprintf(`Based ONLY on the following context, answer the question.
If the information is not present in the context, say "NOT_FOUND".

<context>
%s
</context>

Question: %s

Answer concisely (1-2 sentences max):`, compressedContext, p.Question)

		text, _, err := o.Invoke(ctx, "", prompt, 200)
		if err != nil {
			summary.Results = append(summary.Results, Result{
				Probe:        p,
				ActualAnswer: "ERROR: " + err.Error(),
				Score:        0.0,
				Reasoning:    "probe execution failed",
				Passed:       false,
			})
			continue
		}

		score, reasoning := scoreResponse(p, strings.TrimSpace(text))
		summary.Results = append(summary.Results, Result{
			Probe:        p,
			ActualAnswer: text,
			Score:        score,
			Reasoning:    reasoning,
			Passed:       score >= PassThreshold,
		})
	}
	return summary
}

// stopWords mirrors the retrieval pack's exact stop-word set used to reduce
// probe answers to their content words before scoring overlap.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true, "had": true,
	"do": true, "does": true, "did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true, "shall": true, "to": true,
	"of": true, "in": true, "for": true, "on": true, "with": true, "at": true, "by": true,
	"from": true, "as": true, "into": true, "through": true, "during": true, "before": true,
	"after": true, "above": true, "below": true, "between": true, "under": true, "again": true,
	"further": true, "then": true, "once": true, "and": true, "but": true, "or": true,
	"nor": true, "so": true, "yet": true, "both": true, "either": true, "neither": true,
	"not": true, "only": true, "own": true, "same": true, "than": true, "too": true,
	"very": true, "just": true,
}

// scoreResponse implements the exact bucketed scoring rule: NOT_FOUND -> 0,
// substring match either way -> 1.0, else content-word overlap ratio against
// the bucket thresholds 0.8/0.5/0.3/>0.
func scoreResponse(p Probe, actual string) (float64, string) {
	actualLower := strings.ToLower(strings.TrimSpace(actual))
	expectedLower := strings.ToLower(strings.TrimSpace(p.ExpectedAnswer))

	if strings.Contains(actualLower, "not_found") || strings.Contains(actualLower, "not present") {
		return 0.0, "information not found in compressed context"
	}

	if strings.Contains(actualLower, expectedLower) || strings.Contains(expectedLower, actualLower) {
		return 1.0, "exact match found"
	}

	expectedTerms := contentWords(expectedLower)
	actualTerms := contentWords(actualLower)

	if len(expectedTerms) == 0 {
		return 0.5, "expected answer too generic to evaluate"
	}

	overlap := 0
	for t := range expectedTerms {
		if actualTerms[t] {
			overlap++
		}
	}
	ratio := float64(overlap) / float64(len(expectedTerms))

	switch {
	case ratio >= 0.8:
		return 0.9, fmt.Sprintf("high term overlap (%d/%d terms)", overlap, len(expectedTerms))
	case ratio >= 0.5:
		return 0.7, fmt.Sprintf("moderate term overlap (%d/%d terms)", overlap, len(expectedTerms))
	case ratio >= 0.3:
		return 0.5, fmt.Sprintf("partial term overlap (%d/%d terms)", overlap, len(expectedTerms))
	case ratio > 0:
		return 0.3, fmt.Sprintf("low term overlap (%d/%d terms)", overlap, len(expectedTerms))
	default:
		return 0.1, "no term overlap - answer may be semantically related"
	}
}

func contentWords(s string) map[string]bool {
	words := strings.Fields(s)
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if !stopWords[w] {
			set[w] = true
		}
	}
	return set
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// sectionQuestions/sectionDecisions avoid importing the marker package's
// enum directly at every call site in this file.
const (
	sectionQuestions = "questions"
	sectionDecisions = "decisions"
)
