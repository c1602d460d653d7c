// Package wsapi implements the harness's streaming HTTP surface: a single
// WebSocket endpoint that runs a session and pushes named progress events as
// each pass completes, instead of blocking until the whole run is done the
// way internal/httpapi's /harness/run does. Grounded on the retrieval
// pack's own WebSocket infrastructure (smilemakc-mbflow's
// internal/infrastructure/websocket package) for the upgrade/read-loop
// shape, and on server_lite.py's websocket_harness() for the action
// protocol and event names.
package wsapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"thesisharness/internal/config"
	"thesisharness/internal/oracle"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
)

// writeWait bounds how long a single event write may take before the
// connection is considered dead, mirroring the pack's websocket client.
const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server wires the session store, prior-belief library, and process config
// into the /ws/harness handler.
type Server struct {
	Store   *store.Store
	Library *priorlib.Library
	Config  *config.Config

	// NewOracle builds the oracle a single run uses, given its resolved API
	// key. Overridable in tests to avoid a real transport.
	NewOracle func(apiKey string) oracle.Oracle
}

// NewServer constructs a Server.
func NewServer(st *store.Store, lib *priorlib.Library, cfg *config.Config) *Server {
	return &Server{
		Store:   st,
		Library: lib,
		Config:  cfg,
		NewOracle: func(apiKey string) oracle.Oracle {
			return oracle.NewRetrying(oracle.NewHTTPClient(apiKey))
		},
	}
}

// Routes returns a mux serving only /ws/harness. cmd/httpserver does not use
// it; it registers HandleHarness on internal/httpapi's mux instead.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/harness", s.HandleHarness)
	return mux
}

// eventWriter serializes writes to a single connection: the cycle
// controller's OnProgress callback may fire from multiple goroutines when
// branch cycles run in parallel, but a gorilla/websocket connection permits
// only one concurrent writer.
type eventWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

type wsEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

func (w *eventWriter) send(event string, data map[string]any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := w.conn.WriteJSON(wsEvent{Event: event, Data: data}); err != nil {
		log.Warn().Err(err).Str("event", event).Msg("websocket write failed")
	}
}

// HandleHarness upgrades the connection and loops reading one JSON command
// per message: {"action": "run", ...} or {"action": "ping"}.
func (s *Server) HandleHarness(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ew := &eventWriter{conn: conn}

	for {
		var cmd wsCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}

		switch cmd.Action {
		case "run":
			s.runHarness(r.Context(), cmd, ew)
		case "ping":
			ew.send("pong", nil)
		default:
			ew.send("error", map[string]any{"message": "unknown action: " + cmd.Action})
		}
	}
}
