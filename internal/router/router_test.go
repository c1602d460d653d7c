package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute_EmptyLibraryIsTriviallyNetNew(t *testing.T) {
	r := New(nil)
	result := r.Route("Should Acme acquire Widgets Inc?", nil)
	require.Equal(t, RouteNetNew, result.RouteType)
	assert.Equal(t, 800, result.Budget.ThesisTokens) // 0.10 * 8000
	assert.Equal(t, 2400, result.Budget.DataTokens)   // 0.30 * 8000
	assert.Equal(t, 4800, result.Budget.ReasoningTokens)
	assert.Equal(t, result.Budget.Total(), 8000)
}

func TestAllocate_FitBudget(t *testing.T) {
	r := New(nil)
	b := r.allocate(RouteFit)
	assert.Equal(t, 3200, b.ThesisTokens)
	assert.Equal(t, 0, b.PatternTokens)
	assert.Equal(t, 2400, b.DataTokens)
	assert.Equal(t, 2400, b.ReasoningTokens)
}

func TestAllocate_AdjacentBudget(t *testing.T) {
	r := New(nil)
	b := r.allocate(RouteAdjacent)
	assert.Equal(t, 0, b.ThesisTokens)
	assert.Equal(t, 2400, b.PatternTokens)
	assert.Equal(t, 3200, b.DataTokens)
	assert.Equal(t, 2400, b.ReasoningTokens)
}
