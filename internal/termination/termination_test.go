package termination

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"thesisharness/internal/confidence"
	"thesisharness/internal/scratchpad"
)

func newPad() *scratchpad.Scratchpad {
	return scratchpad.New("s1", "Test Thesis", confidence.ModeForward, scratchpad.DefaultConfig())
}

func TestCheck_BelowMinCyclesNeverFires(t *testing.T) {
	s := newPad()
	s.IncrementCycle()
	s.ConfidenceHistory = []float64{0.5}
	reason, ok := Check(s, MaxCycles)
	assert.False(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestCheck_MaxCyclesWinsRegardlessOfShape(t *testing.T) {
	s := newPad()
	for i := 0; i < MaxCycles; i++ {
		s.IncrementCycle()
	}
	s.CurrentConfidence = 0.1
	reason, ok := Check(s, MaxCycles)
	assert.True(t, ok)
	assert.Equal(t, ReasonMaxCycles, reason)
}

func TestCheck_ConfidenceSaturated(t *testing.T) {
	s := newPad()
	s.IncrementCycle()
	s.IncrementCycle()
	s.ConfidenceHistory = []float64{0.5, 0.51, 0.52}
	reason, ok := Check(s, MaxCycles)
	assert.True(t, ok)
	assert.Equal(t, ReasonConfidenceSaturated, reason)
}

func TestCheck_DiminishingReturns(t *testing.T) {
	s := newPad()
	s.IncrementCycle()
	s.IncrementCycle()
	s.ConfidenceHistory = []float64{0.3, 0.6, 0.68}
	s.InsightCounts = []int{10, 2}
	reason, ok := Check(s, MaxCycles)
	assert.True(t, ok)
	assert.Equal(t, ReasonDiminishingReturns, reason)
}

func TestCheck_DryCycleIsNotDiminishingReturns(t *testing.T) {
	s := newPad()
	s.IncrementCycle()
	s.IncrementCycle()
	s.ConfidenceHistory = []float64{0.3, 0.6, 0.68}
	s.InsightCounts = []int{0, 0}
	s.CurrentConfidence = 0.68
	reason, ok := Check(s, MaxCycles)
	assert.False(t, ok, "zero-to-zero insight counts should not trip diminishing returns")
	assert.Equal(t, ReasonNone, reason)
}

func TestCheck_HighConfidenceStable(t *testing.T) {
	s := newPad()
	s.IncrementCycle()
	s.IncrementCycle()
	s.ConfidenceHistory = []float64{0.3, 0.6, 0.8}
	s.InsightCounts = []int{5, 5}
	s.CurrentConfidence = 0.8
	reason, ok := Check(s, MaxCycles)
	assert.True(t, ok)
	assert.Equal(t, ReasonHighConfidenceStable, reason)
}

func TestCheck_OpenQuestionsBlockHighConfidenceStable(t *testing.T) {
	s := newPad()
	s.IncrementCycle()
	s.IncrementCycle()
	s.ConfidenceHistory = []float64{0.3, 0.6, 0.8}
	s.InsightCounts = []int{5, 5}
	s.CurrentConfidence = 0.8
	s.AddClaim(scratchpad.Claim{Text: "seed"})
	s.ExtractAndMerge("[QUESTION]one [QUESTION]two")
	reason, ok := Check(s, MaxCycles)
	assert.False(t, ok)
	assert.Equal(t, ReasonNone, reason)
}

func TestCheck_StrictOrderMaxCyclesBeforeSaturation(t *testing.T) {
	s := newPad()
	for i := 0; i < MaxCycles; i++ {
		s.IncrementCycle()
	}
	s.ConfidenceHistory = []float64{0.5, 0.501, 0.502}
	reason, ok := Check(s, MaxCycles)
	assert.True(t, ok)
	assert.Equal(t, ReasonMaxCycles, reason, "max cycles must win even when saturation would also fire")
}
