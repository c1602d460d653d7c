// Package termination implements the cycle controller's stop condition: a
// strict-order five-step check run once per completed cycle. The order is
// an intentional, preserved design choice (see the harness's design notes on
// the Python reference's check_termination): max-cycles first because it is
// an absolute ceiling regardless of confidence shape, then the
// MinCyclesBeforeTermination floor before any confidence-shape check fires
// at all, then saturation, then diminishing returns, then
// high-confidence-stable last because it is the happiest of the three shape
// checks and should not preempt a more specific one.
package termination

import "thesisharness/internal/scratchpad"

// Reason names why the cycle controller stopped looping.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonMaxCycles            Reason = "max_cycles_reached"
	ReasonConfidenceSaturated  Reason = "confidence_saturated"
	ReasonDiminishingReturns   Reason = "diminishing_returns"
	ReasonHighConfidenceStable Reason = "high_confidence_stable"
)

// MaxCycles is the package default cycle ceiling, used when a run does not
// specify its own via cycle.Options.MaxCycles.
const MaxCycles = 8

// MinCyclesBeforeTermination is the floor below which no confidence-shape
// check is allowed to fire, regardless of how the branch-creation floor
// (scratchpad.Config.MinCyclesBeforeBranch) happens to be configured. The
// two floors are independent by nature even though they currently share the
// same default of two cycles.
const MinCyclesBeforeTermination = 2

// Check evaluates the five-step termination rule against the scratchpad's
// current state, bounding the max-cycles step on maxCycles rather than the
// package default. ok is true iff a reason fired; reason is ReasonNone
// otherwise.
func Check(s *scratchpad.Scratchpad, maxCycles int) (reason Reason, ok bool) {
	cfg := s.Config()

	if s.CycleCount >= maxCycles {
		return ReasonMaxCycles, true
	}

	if s.CycleCount < MinCyclesBeforeTermination {
		return ReasonNone, false
	}

	if saturated(s.ConfidenceHistory, cfg.SaturationDelta) {
		return ReasonConfidenceSaturated, true
	}

	if diminishingReturns(s.InsightCounts, cfg.DiminishingReturnsRatio) {
		return ReasonDiminishingReturns, true
	}

	if s.CurrentConfidence >= cfg.HighConfidenceThreshold && s.OpenQuestionCount() < cfg.OpenQuestionsCeiling {
		return ReasonHighConfidenceStable, true
	}

	return ReasonNone, false
}

// saturated reports whether the last three confidence values show two
// consecutive deltas both smaller in magnitude than delta, meaning the
// trajectory has flattened out.
func saturated(history []float64, delta float64) bool {
	if len(history) < 3 {
		return false
	}
	n := len(history)
	d1 := history[n-2] - history[n-3]
	d2 := history[n-1] - history[n-2]
	return abs(d1) < delta && abs(d2) < delta
}

// diminishingReturns reports whether the most recent cycle's new-insight
// count fell to less than ratio times the cycle before it, given the prior
// cycle actually found something (a zero-to-zero transition is not a
// diminishing return, it is simply dry).
func diminishingReturns(counts []int, ratio float64) bool {
	if len(counts) < 2 {
		return false
	}
	n := len(counts)
	prev, last := counts[n-2], counts[n-1]
	if prev <= 0 {
		return false
	}
	return float64(last) < ratio*float64(prev)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
