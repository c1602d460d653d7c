// Command mcp runs the thesis harness as an MCP server communicating over
// stdio, for hosts like Claude Desktop that spawn a child process per the
// Model Context Protocol rather than talking HTTP. Wiring mirrors the
// teacher's cmd/server/main.go; the tool set is internal/mcpserver's three
// tools rather than the teacher's ~40.
package main

import (
	"context"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"thesisharness/internal/config"
	"thesisharness/internal/mcpserver"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
)

func main() {
	if os.Getenv("DEBUG") == "true" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	st := openStore(cfg)
	lib := loadLibrary(cfg)

	srv := mcpserver.New(st, lib, cfg)

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "thesis-harness",
		Version: cfg.Server.Version,
	}, nil)

	srv.RegisterTools(mcpServer)
	log.Println("registered tools: run-harness, get-scratchpad, list-sessions")

	transport := &mcp.StdioTransport{}

	ctx := context.Background()
	if err := mcpServer.Run(ctx, transport); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

// openStore returns a SQLite-backed store when TH_SERVER_SESSION_DB_PATH
// is set, otherwise the in-memory-only store. A process lifetime per MCP
// client makes persistence the difference between losing in-flight
// sessions on a host restart and resuming them.
func openStore(cfg *config.Config) *store.Store {
	if cfg.Server.SessionDBPath == "" {
		return store.New()
	}
	st, err := store.NewSQLite(cfg.Server.SessionDBPath)
	if err != nil {
		log.Printf("warning: failed to open session database at %s: %v, falling back to in-memory store", cfg.Server.SessionDBPath, err)
		return store.New()
	}
	return st
}

func loadLibrary(cfg *config.Config) *priorlib.Library {
	if !cfg.Features.PriorLibrary {
		return priorlib.NewEmpty()
	}

	dir := os.Getenv("TH_PRIOR_LIBRARY_DIR")
	if dir == "" {
		return priorlib.NewEmpty()
	}

	lib, err := priorlib.LoadDir(dir)
	if err != nil {
		log.Printf("warning: failed to load prior library from %s: %v", dir, err)
		return priorlib.NewEmpty()
	}

	if cfg.Features.SemanticSearch {
		if err := lib.WithEmbeddings(nil); err != nil {
			log.Printf("warning: failed to attach embeddings: %v", err)
		}
	}

	return lib
}
