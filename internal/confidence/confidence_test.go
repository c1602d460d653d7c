package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitial_StartsAtFullQualityNeutralConclusion(t *testing.T) {
	m := Initial(ModeForward)
	assert.Equal(t, 1.0, m.ReasoningQuality)
	assert.Equal(t, 1.0, m.EvidenceQuality)
	assert.Equal(t, 0.5, m.ConclusionConfidence)
}

func TestComposite_IsArithmeticMean(t *testing.T) {
	m := Model{ReasoningQuality: 0.6, EvidenceQuality: 0.9, ConclusionConfidence: 0.3}
	assert.InDelta(t, (0.6+0.9+0.3)/3.0, m.Composite(), 1e-9)
}

func TestUpdate_ZeroMarkersRecoverByExactlyPointOne(t *testing.T) {
	m := Model{ReasoningQuality: 0.5, EvidenceQuality: 0.4, ConclusionConfidence: 0.5}
	next := Update(m, 0, 0, nil)
	assert.InDelta(t, 0.6, next.ReasoningQuality, 1e-9)
	assert.InDelta(t, 0.5, next.EvidenceQuality, 1e-9)
}

func TestUpdate_RecoveryClampsAtOne(t *testing.T) {
	m := Model{ReasoningQuality: 0.95, EvidenceQuality: 1.0}
	next := Update(m, 0, 0, nil)
	assert.Equal(t, 1.0, next.ReasoningQuality)
	assert.Equal(t, 1.0, next.EvidenceQuality)
}

func TestUpdate_OneToTwoMarkersUsesLinearRule(t *testing.T) {
	m := Model{ReasoningQuality: 1.0, EvidenceQuality: 1.0}
	next := Update(m, 1, 2, nil)
	assert.InDelta(t, 0.75, next.ReasoningQuality, 1e-9)
	assert.InDelta(t, 0.6, next.EvidenceQuality, 1e-9)
}

func TestUpdate_OneToTwoMarkersNeverDropsBelowPointFive(t *testing.T) {
	m := Model{ReasoningQuality: 0.5, EvidenceQuality: 0.5}
	next := Update(m, 2, 2, nil)
	assert.InDelta(t, 0.6, next.ReasoningQuality, 1e-9)
	assert.InDelta(t, 0.6, next.EvidenceQuality, 1e-9)
}

func TestUpdate_ThreeOrMoreMarkersNeverDropsBelowPointThree(t *testing.T) {
	m := Model{ReasoningQuality: 1.0, EvidenceQuality: 1.0}
	next := Update(m, 10, 10, nil)
	assert.InDelta(t, 0.3, next.ReasoningQuality, 1e-9)
	assert.InDelta(t, 0.3, next.EvidenceQuality, 1e-9)
}

func TestUpdate_NilDeclarationLeavesConclusionConfidenceUnchanged(t *testing.T) {
	m := Model{ConclusionConfidence: 0.42}
	next := Update(m, 0, 0, nil)
	assert.Equal(t, 0.42, next.ConclusionConfidence)
}

func TestUpdate_DeclaredConclusionIsClampedAndApplied(t *testing.T) {
	m := Model{ConclusionConfidence: 0.42}
	over := 1.5
	next := Update(m, 0, 0, &over)
	assert.Equal(t, 1.0, next.ConclusionConfidence)

	under := -0.5
	next = Update(m, 0, 0, &under)
	assert.Equal(t, 0.0, next.ConclusionConfidence)
}

func TestUpdate_FallacyCountIsPassLocalNotCumulative(t *testing.T) {
	// A pass's fallacy count only ever affects that pass's own update, not a
	// running total: back-to-back zero-marker passes recover every time even
	// after a high-fallacy pass, never "remembering" the earlier penalty.
	m := Model{ReasoningQuality: 1.0}
	depressed := Update(m, 10, 0, nil)
	assert.InDelta(t, 0.3, depressed.ReasoningQuality, 1e-9)

	recovered := Update(depressed, 0, 0, nil)
	assert.InDelta(t, 0.4, recovered.ReasoningQuality, 1e-9)
}
