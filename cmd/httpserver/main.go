// Command httpserver runs the thesis harness's REST and WebSocket surfaces
// on one listener: internal/httpapi's synchronous /ingest and /harness/run
// alongside internal/wsapi's streaming /ws/harness. Wiring follows the
// teacher's cmd/server/main.go (construct each collaborator in sequence,
// log as each comes up, fail fast on error) with zerolog in place of the
// teacher's stdlib log, to match the structured logging internal/httpapi
// and internal/wsapi already use.
package main

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"thesisharness/internal/config"
	"thesisharness/internal/httpapi"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
	"thesisharness/internal/wsapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	configureLogging(cfg.Logging)

	st := openStore(cfg)
	defer func() {
		if err := st.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close session database")
		}
	}()

	lib := loadLibrary(cfg)

	srv := httpapi.NewServer(st, lib, cfg)
	stream := wsapi.NewServer(st, lib, cfg)

	mux := srv.Routes()
	mux.HandleFunc("GET /ws/harness", stream.HandleHarness)

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("environment", cfg.Server.Environment).
		Bool("prior_library", cfg.Features.PriorLibrary).
		Bool("semantic_search", cfg.Features.SemanticSearch).
		Msg("thesis harness listening")

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // a single pass invocation can run long
	}

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// configureLogging sets the global zerolog level and, when
// cfg.Format is "text", switches to a human-readable writer. Any other
// format ("json") keeps zerolog's default JSON output for log aggregation.
func configureLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// openStore returns a SQLite-backed store when cfg.Server.SessionDBPath is
// set, otherwise the in-memory-only store used by default.
func openStore(cfg *config.Config) *store.Store {
	if cfg.Server.SessionDBPath == "" {
		return store.New()
	}
	st, err := store.NewSQLite(cfg.Server.SessionDBPath)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.Server.SessionDBPath).Msg("failed to open session database, falling back to in-memory store")
		return store.New()
	}
	return st
}

// loadLibrary builds the prior-belief library from TH_PRIOR_LIBRARY_DIR
// when prior_library is enabled, falling back to an empty library when the
// feature is off or no directory is configured. Embeddings are attached
// only when semantic_search is on, since chromem-go's default embedder
// does network calls the harness shouldn't make on every boot.
func loadLibrary(cfg *config.Config) *priorlib.Library {
	if !cfg.Features.PriorLibrary {
		return priorlib.NewEmpty()
	}

	dir := os.Getenv("TH_PRIOR_LIBRARY_DIR")
	if dir == "" {
		log.Info().Msg("prior_library enabled but TH_PRIOR_LIBRARY_DIR unset, starting empty")
		return priorlib.NewEmpty()
	}

	lib, err := priorlib.LoadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to load prior library, starting empty")
		return priorlib.NewEmpty()
	}

	if cfg.Features.SemanticSearch {
		if err := lib.WithEmbeddings(nil); err != nil {
			log.Warn().Err(err).Msg("failed to attach embeddings, falling back to keyword search")
		}
	}

	return lib
}
