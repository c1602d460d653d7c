// Package confidence implements the three-dimensional confidence model:
// independent reasoning_quality, evidence_quality, and conclusion_confidence
// scores whose arithmetic mean is the composite. Updates are pure functions
// of a model value and a single critique pass's marker counts, which is what
// gives the model its "bounce, not just decline" recovery property — a
// pass's fallacy count only ever affects that pass's update, never the
// running total.
package confidence

// AnalysisMode toggles whether HINDSIGHT/SURVIVORSHIP markers penalize
// reasoning_quality or are recorded as retrospective insights instead.
type AnalysisMode string

const (
	ModeForward       AnalysisMode = "forward"
	ModeRetrospective AnalysisMode = "retrospective"
)

// Model is the three-dimensional confidence state.
type Model struct {
	ReasoningQuality      float64      `json:"reasoning_quality"`
	EvidenceQuality       float64      `json:"evidence_quality"`
	ConclusionConfidence  float64      `json:"conclusion_confidence"`
	Mode                  AnalysisMode `json:"analysis_mode"`
	FallaciesFound        int          `json:"fallacies_found"`
	EvidenceGaps          int          `json:"evidence_gaps"`
	RetrospectiveInsights int          `json:"retrospective_insights"`
}

// Initial returns the starting model: both quality scores at full
// confidence (1.0), conclusion confidence neutral (0.5), for the given mode.
func Initial(mode AnalysisMode) Model {
	return Model{
		ReasoningQuality:     1.0,
		EvidenceQuality:      1.0,
		ConclusionConfidence: 0.5,
		Mode:                 mode,
	}
}

// Composite is the arithmetic mean of the three scores. Deliberately not a
// product: a product-of-penalties formula was tried and rejected as too
// punitive against sessions with several independent weak signals.
func (m Model) Composite() float64 {
	return (m.ReasoningQuality + m.EvidenceQuality + m.ConclusionConfidence) / 3.0
}

// Update applies one critique pass's cycle-local fallacy and evidence-gap
// counts, plus whatever conclusion confidence the critique declared, and
// returns the new model. declaredConclusion is nil when the critique
// declared neither the numeric triple nor the legacy single value, in which
// case conclusion_confidence is left unchanged.
func Update(m Model, cycleFallacies, cycleGaps int, declaredConclusion *float64) Model {
	m.ReasoningQuality = applyRule(m.ReasoningQuality, cycleFallacies)
	m.EvidenceQuality = applyRule(m.EvidenceQuality, cycleGaps)
	m.FallaciesFound = cycleFallacies
	m.EvidenceGaps = cycleGaps

	if declaredConclusion != nil {
		m.ConclusionConfidence = clamp01(*declaredConclusion)
	}

	return m
}

// applyRule implements the shared update rule for both reasoning_quality and
// evidence_quality:
//
//	0 markers      -> +0.1 recovery, clamped to 1.0
//	1-2 markers    -> max(0.5, 0.9 - 0.15*n)
//	3+ markers     -> max(0.3, 0.9 - 0.15*n)
func applyRule(current float64, count int) float64 {
	switch {
	case count == 0:
		return clamp01(current + 0.1)
	case count <= 2:
		return max(0.5, 0.9-0.15*float64(count))
	default:
		return max(0.3, 0.9-0.15*float64(count))
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
