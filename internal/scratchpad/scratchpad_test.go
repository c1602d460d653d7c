package scratchpad

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesisharness/internal/confidence"
	"thesisharness/internal/marker"
)

func newPad() *Scratchpad {
	return New("s1", "Test Thesis", confidence.ModeForward, DefaultConfig())
}

func TestExtractAndMerge_DedupesRepeatedItemsWithinAndAcrossCalls(t *testing.T) {
	s := newPad()
	s.ExtractAndMerge("[INSIGHT]same point [INSIGHT]same point [INSIGHT]different point")
	assert.Equal(t, []string{"same point", "different point"}, s.SectionItems(marker.SectionInsights))

	s.ExtractAndMerge("[INSIGHT]same point [INSIGHT]a third point")
	assert.Equal(t, []string{"same point", "different point", "a third point"}, s.SectionItems(marker.SectionInsights))
}

func TestIncrementCycle_IsMonotonicAndOnlyWayCycleCountMoves(t *testing.T) {
	s := newPad()
	assert.Equal(t, 0, s.CycleCount)
	for i := 1; i <= 5; i++ {
		assert.Equal(t, i, s.IncrementCycle())
	}
	assert.Equal(t, 5, s.CycleCount)
}

func TestUpdateConfidence_CurrentConfidenceIsAlwaysModelComposite(t *testing.T) {
	s := newPad()
	s.UpdateConfidence(1, 2, nil)
	assert.InDelta(t, s.ConfidenceModel.Composite(), s.CurrentConfidence, 1e-9)

	declared := 0.8
	s.UpdateConfidence(0, 0, &declared)
	assert.InDelta(t, s.ConfidenceModel.Composite(), s.CurrentConfidence, 1e-9)
	assert.Equal(t, s.CurrentConfidence, s.ConfidenceHistory[len(s.ConfidenceHistory)-1])
}

func TestCompress_KeyEvidenceAndBranchesNeverTruncated(t *testing.T) {
	s := newPad()
	s.AddKeyEvidence("anchor fact", "10-K", 0.9, DirectionSupports)
	s.AddBranch(Branch{ID: "b1", Thesis: "alt thesis", IsActive: true})

	for i := 0; i < 20; i++ {
		s.ExtractAndMerge("[RISK]risk item " + string(rune('a'+i)))
	}
	s.Compress()

	require.Len(t, s.KeyEvidence, 1)
	assert.Equal(t, "anchor fact", s.KeyEvidence[0].Content)
	require.Len(t, s.Branches, 1)
	assert.Equal(t, "b1", s.Branches[0].ID)
}

func TestCompress_Tier1TruncatesNonPreservedSectionsToRecentFive(t *testing.T) {
	s := newPad()
	for i := 0; i < 20; i++ {
		s.ExtractAndMerge("[RISK]risk " + string(rune('a'+i)))
	}
	s.Compress()
	assert.Len(t, s.SectionItems(marker.SectionRisks), s.Config().Tier1RecentItems)
	assert.Equal(t, "risk t", s.SectionItems(marker.SectionRisks)[len(s.SectionItems(marker.SectionRisks))-1])
}

func TestCompress_PreservedSectionsSurviveTier1AndOnlyShrinkUnderTier2(t *testing.T) {
	s := newPad()
	for i := 0; i < 8; i++ {
		s.AddClaim(Claim{Text: "claim " + string(rune('a'+i))})
	}
	s.Compress()
	// still under budget after tier 1 alone (claims section small), so tier 2
	// never runs and all 8 claims survive.
	assert.Len(t, s.SectionItems(marker.SectionClaims), 8)
}

func TestSerializationRoundTrip_ReproducesScratchpadExactly(t *testing.T) {
	s := newPad()
	s.AddClaim(Claim{ID: "CLAIM-1", Text: "core claim", Type: ClaimCoreThesis})
	s.AddKeyEvidence("anchor", "filing", 0.7, DirectionChallenges)
	s.AddBranch(Branch{ID: "b1", Thesis: "alt", Confidence: 0.6, IsActive: true})
	s.ExtractAndMerge("[INSIGHT]one [RISK]two [QUESTION]three")
	s.IncrementCycle()
	s.UpdateConfidence(1, 0, nil)
	s.RecordCycleInsights(3)

	clone, err := s.Clone()
	require.NoError(t, err)

	assert.True(t, s.Equal(clone))
	assert.Equal(t, s.SessionID, clone.SessionID)
	assert.Equal(t, s.CycleCount, clone.CycleCount)
	assert.Equal(t, s.CurrentConfidence, clone.CurrentConfidence)
	assert.Equal(t, s.SectionItems(marker.SectionInsights), clone.SectionItems(marker.SectionInsights))
	assert.Equal(t, s.KeyEvidence, clone.KeyEvidence)
	assert.Equal(t, s.Branches, clone.Branches)
	assert.Equal(t, s.Config(), clone.Config())
}

func TestEqual_DetectsDivergence(t *testing.T) {
	s := newPad()
	clone, err := s.Clone()
	require.NoError(t, err)
	assert.True(t, s.Equal(clone))

	clone.ExtractAndMerge("[INSIGHT]only on the clone")
	assert.False(t, s.Equal(clone))
}

func TestMergeFrom_UnionsSectionsKeyEvidenceAndBranchesWithoutDuplicating(t *testing.T) {
	s := newPad()
	s.ExtractAndMerge("[INSIGHT]shared")
	s.AddKeyEvidence("shared evidence", "src", 0.5, DirectionNeutral)

	clone, err := s.Clone()
	require.NoError(t, err)
	clone.ExtractAndMerge("[INSIGHT]shared [INSIGHT]only in clone")
	clone.AddKeyEvidence("shared evidence", "src", 0.5, DirectionNeutral)
	clone.AddKeyEvidence("clone-only evidence", "src2", 0.4, DirectionSupports)
	clone.AddBranch(Branch{ID: "clone-branch", Thesis: "clone thesis", IsActive: true})

	s.MergeFrom(clone)

	assert.Equal(t, []string{"shared", "only in clone"}, s.SectionItems(marker.SectionInsights))
	require.Len(t, s.KeyEvidence, 2)
	require.Len(t, s.Branches, 1)
	assert.Equal(t, "clone-branch", s.Branches[0].ID)
}

func TestAnalyzeTrajectory_FlagsNonMonotonicDipsAndMagnitude(t *testing.T) {
	s := newPad()
	s.ConfidenceHistory = []float64{0.5, 0.7, 0.55, 0.9}
	traj := s.AnalyzeTrajectory()
	assert.False(t, traj.IsMonotonic)
	assert.InDelta(t, 0.15, traj.MaxDip, 1e-9)
}

func TestAnalyzeTrajectory_MonotonicWhenNeverDipping(t *testing.T) {
	s := newPad()
	s.ConfidenceHistory = []float64{0.3, 0.5, 0.6}
	traj := s.AnalyzeTrajectory()
	assert.True(t, traj.IsMonotonic)
	assert.Equal(t, 0.0, traj.MaxDip)
}

func TestOpenQuestionCount_ReflectsQuestionsSection(t *testing.T) {
	s := newPad()
	assert.Equal(t, 0, s.OpenQuestionCount())
	s.ExtractAndMerge("[QUESTION]one [QUESTION]two")
	assert.Equal(t, 2, s.OpenQuestionCount())
}

func TestDequeueBranchProposals_DrainsAndClearsFIFO(t *testing.T) {
	s := newPad()
	s.ExtractAndMerge("[BRANCH]first [BRANCH]second")
	proposals := s.DequeueBranchProposals()
	assert.Equal(t, []string{"first", "second"}, proposals)
	assert.Empty(t, s.DequeueBranchProposals())
}
