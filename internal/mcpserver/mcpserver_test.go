package mcpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesisharness/internal/config"
	"thesisharness/internal/oracle"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
)

func newTestServer() *Server {
	cfg := config.Default()
	cfg.Oracle.APIKey = "test-key"
	return New(store.New(), priorlib.NewEmpty(), cfg)
}

func TestHandleRunHarness_CompletesAndStoresSession(t *testing.T) {
	srv := newTestServer()
	srv.NewOracle = func(string) oracle.Oracle {
		return &oracle.Scripted{Replies: []string{"Plain text with no markers at all."}}
	}

	_, out, err := srv.handleRunHarness(context.Background(), nil, RunHarnessInput{
		Title:  "Test thesis",
		Claims: []ClaimInput{{ID: "CLAIM-1", Text: "x", Type: "claim", Snippet: "x"}},
	})

	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "high_confidence_stable", out.TerminationReason)
	assert.Equal(t, 1, srv.Store.Len())
}

func TestHandleRunHarness_MissingAPIKeyErrors(t *testing.T) {
	srv := newTestServer()
	srv.Config.Oracle.APIKey = ""

	_, out, err := srv.handleRunHarness(context.Background(), nil, RunHarnessInput{Title: "t"})

	require.Error(t, err)
	assert.Nil(t, out)
}

func TestHandleRunHarness_MissingTitleErrors(t *testing.T) {
	srv := newTestServer()

	_, out, err := srv.handleRunHarness(context.Background(), nil, RunHarnessInput{})

	require.Error(t, err)
	assert.Nil(t, out)
}

func TestHandleGetScratchpad_UnknownSessionErrors(t *testing.T) {
	srv := newTestServer()

	_, out, err := srv.handleGetScratchpad(context.Background(), nil, GetScratchpadInput{SessionID: "bogus"})

	require.Error(t, err)
	assert.Nil(t, out)
}

func TestHandleGetScratchpad_ReturnsRenderedSession(t *testing.T) {
	srv := newTestServer()
	srv.NewOracle = func(string) oracle.Oracle {
		return &oracle.Scripted{Replies: []string{"Plain text with no markers at all."}}
	}

	_, ran, err := srv.handleRunHarness(context.Background(), nil, RunHarnessInput{Title: "Another thesis"})
	require.NoError(t, err)

	_, out, err := srv.handleGetScratchpad(context.Background(), nil, GetScratchpadInput{SessionID: ran.SessionID})
	require.NoError(t, err)
	assert.Equal(t, ran.SessionID, out.SessionID)
	assert.NotEmpty(t, out.Rendered)
}

func TestHandleListSessions_ReturnsAllStoredIDs(t *testing.T) {
	srv := newTestServer()
	srv.NewOracle = func(string) oracle.Oracle {
		return &oracle.Scripted{Replies: []string{"Plain text with no markers at all."}}
	}

	_, first, err := srv.handleRunHarness(context.Background(), nil, RunHarnessInput{Title: "First"})
	require.NoError(t, err)
	_, second, err := srv.handleRunHarness(context.Background(), nil, RunHarnessInput{Title: "Second"})
	require.NoError(t, err)

	_, out, err := srv.handleListSessions(context.Background(), nil, ListSessionsInput{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{first.SessionID, second.SessionID}, out.SessionIDs)
}
