// Package httpapi implements the harness's synchronous HTTP surface: health,
// ingest, and a blocking harness run. It is the request/response twin of
// internal/wsapi's streaming run, both grounded on the retrieval pack's own
// FastAPI server (server_lite.py) but rebuilt on net/http, since nothing in
// the pack pulls in a Go web framework for a surface this small.
package httpapi

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"thesisharness/internal/config"
	"thesisharness/internal/ingest"
	"thesisharness/internal/oracle"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
)

// Server wires the session store, prior-belief library, and process config
// into HTTP handlers. Each request builds its own oracle from the request's
// (or the process's) API key, since the harness has no server-wide model
// client to share across sessions with different keys.
type Server struct {
	Store   *store.Store
	Library *priorlib.Library
	Config  *config.Config
	Fetcher *ingest.Fetcher

	// NewOracle builds the oracle a single request uses, given its resolved
	// API key. Overridable in tests to avoid a real transport.
	NewOracle func(apiKey string) oracle.Oracle
}

// NewServer constructs a Server. lib may be an empty library
// (priorlib.NewEmpty()); the router tolerates that as trivially NET_NEW.
func NewServer(st *store.Store, lib *priorlib.Library, cfg *config.Config) *Server {
	return &Server{
		Store:   st,
		Library: lib,
		Config:  cfg,
		Fetcher: ingest.NewFetcher(),
		NewOracle: func(apiKey string) oracle.Oracle {
			return oracle.NewRetrying(oracle.NewHTTPClient(apiKey))
		},
	}
}

// Routes returns the mux the caller mounts under cmd/httpserver's listener.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /harness/run", s.handleHarnessRun)
	return mux
}

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Sessions  int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Sessions:  s.Store.Len(),
	})
}

// resolveAPIKey prefers a request-supplied key, falling back to the
// process config's key, matching the grounding file's get_api_key().
func (s *Server) resolveAPIKey(requestKey string) (string, bool) {
	if requestKey != "" {
		return requestKey, true
	}
	if s.Config.Oracle.APIKey != "" {
		return s.Config.Oracle.APIKey, true
	}
	return "", false
}

func logRequest(r *http.Request, status int, start time.Time) {
	log.Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Dur("elapsed", time.Since(start)).
		Msg("http request")
}
