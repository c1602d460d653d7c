package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesisharness/internal/confidence"
	"thesisharness/internal/oracle"
	"thesisharness/internal/scratchpad"
)

func newPad() *scratchpad.Scratchpad {
	s := scratchpad.New("s1", "Margins expand as unit economics improve", confidence.ModeForward, scratchpad.DefaultConfig())
	s.AddKeyEvidence("gross margin rose to 42%", "10-Q filing", 0.8, scratchpad.DirectionSupports)
	return s
}

func TestCreateProbes_ArtifactFromKeyEvidence(t *testing.T) {
	s := newPad()
	probes := CreateProbes("context text", s)

	var sawArtifact bool
	for _, p := range probes {
		if p.Type == TypeArtifact {
			sawArtifact = true
			assert.Equal(t, 2.0, p.Weight)
		}
	}
	assert.True(t, sawArtifact)
}

func TestCreateProbes_ContinuationFallsBackWhenNoQuestions(t *testing.T) {
	s := newPad()
	probes := CreateProbes("", s)
	var found bool
	for _, p := range probes {
		if p.Type == TypeContinuation {
			found = true
			assert.Equal(t, "continue_analysis", p.ExpectedAnswer)
		}
	}
	assert.True(t, found)
}

func TestScoreResponse_ExactMatch(t *testing.T) {
	p := Probe{ExpectedAnswer: "42%"}
	score, _ := scoreResponse(p, "The gross margin is 42%.")
	assert.Equal(t, 1.0, score)
}

func TestScoreResponse_NotFound(t *testing.T) {
	p := Probe{ExpectedAnswer: "42%"}
	score, _ := scoreResponse(p, "NOT_FOUND")
	assert.Equal(t, 0.0, score)
}

func TestScoreResponse_PartialOverlap(t *testing.T) {
	p := Probe{ExpectedAnswer: "gross margin expansion driven by pricing power"}
	score, _ := scoreResponse(p, "pricing power and margins")
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)
}

func TestRun_ScoresEachProbe(t *testing.T) {
	s := newPad()
	probes := CreateProbes("", s)
	o := &oracle.Scripted{Replies: []string{"gross margin rose to 42%"}}

	summary := Run(context.Background(), o, "compressed context", probes)
	require.Len(t, summary.Results, len(probes))
	assert.GreaterOrEqual(t, summary.OverallScore(), 0.0)
	assert.LessOrEqual(t, summary.OverallScore(), 1.0)
}
