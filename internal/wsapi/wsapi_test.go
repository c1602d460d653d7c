package wsapi_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"thesisharness/internal/config"
	"thesisharness/internal/oracle"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
	"thesisharness/internal/wsapi"
)

func newTestServer(t *testing.T) (*wsapi.Server, *httptest.Server, *websocket.Conn) {
	t.Helper()
	cfg := config.Default()
	cfg.Oracle.APIKey = "test-key"
	srv := wsapi.NewServer(store.New(), priorlib.NewEmpty(), cfg)

	hs := httptest.NewServer(srv.Routes())
	t.Cleanup(hs.Close)

	wsURL := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws/harness"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return srv, hs, conn
}

func TestHandleHarness_Ping(t *testing.T) {
	_, _, conn := newTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))

	var resp map[string]any
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "pong", resp["event"])
	_, hasData := resp["data"]
	assert.False(t, hasData)
}

func TestHandleHarness_RunStreamsProgressThenCompletes(t *testing.T) {
	srv, _, conn := newTestServer(t)
	srv.NewOracle = func(string) oracle.Oracle {
		return &oracle.Scripted{Replies: []string{"Plain text with no markers at all."}}
	}

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action": "run",
		"title":  "Streaming thesis",
		"claims": []map[string]any{{"id": "CLAIM-1", "text": "x", "type": "claim", "snippet": "x"}},
	}))

	var events []string
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		var resp map[string]any
		require.NoError(t, conn.ReadJSON(&resp))
		event, _ := resp["event"].(string)
		events = append(events, event)
		if event == "complete" || event == "error" {
			break
		}
	}

	assert.Contains(t, events, "initialized")
	assert.Contains(t, events, "cycle_start")
	assert.Equal(t, "complete", events[len(events)-1])
	assert.Equal(t, 1, srv.Store.Len())
}

func TestHandleHarness_RunMissingAPIKeySendsError(t *testing.T) {
	srv, _, conn := newTestServer(t)
	srv.Config.Oracle.APIKey = ""

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "run", "title": "t"}))

	var resp map[string]any
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp["event"])
}

func TestHandleHarness_UnknownActionSendsError(t *testing.T) {
	_, _, conn := newTestServer(t)

	require.NoError(t, conn.WriteJSON(map[string]any{"action": "bogus"}))

	var resp map[string]any
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "error", resp["event"])
}
