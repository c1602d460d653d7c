// Package mcpserver exposes the thesis harness over the Model Context
// Protocol: three tools (run-harness, get-scratchpad, list-sessions) a
// host like Claude Desktop can call over stdio. Grounded on the teacher's
// internal/server package — the same mcp.AddTool registration-table shape
// and typed-struct-in/typed-struct-out handler signature — reduced from
// the teacher's ~40 reasoning tools to the three this harness actually
// needs.
package mcpserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"thesisharness/internal/config"
	"thesisharness/internal/oracle"
	"thesisharness/internal/priorlib"
	"thesisharness/internal/store"
)

// Server coordinates the shared session store, prior-belief library, and
// process config behind the three MCP tool handlers.
type Server struct {
	Store   *store.Store
	Library *priorlib.Library
	Config  *config.Config

	// NewOracle builds the oracle a single run-harness call uses, given its
	// resolved API key. Overridable in tests to avoid a real transport.
	NewOracle func(apiKey string) oracle.Oracle
}

// New constructs a Server.
func New(st *store.Store, lib *priorlib.Library, cfg *config.Config) *Server {
	return &Server{
		Store:   st,
		Library: lib,
		Config:  cfg,
		NewOracle: func(apiKey string) oracle.Oracle {
			return oracle.NewRetrying(oracle.NewHTTPClient(apiKey))
		},
	}
}

// RegisterTools registers run-harness, get-scratchpad, and list-sessions
// on mcpServer.
func (s *Server) RegisterTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "run-harness",
		Description: "Run a full multi-pass thesis analysis session to completion and return the synthesized conclusion",
	}, s.handleRunHarness)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "get-scratchpad",
		Description: "Fetch the rendered scratchpad for a previously run session by id",
	}, s.handleGetScratchpad)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        "list-sessions",
		Description: "List the ids of sessions currently held in the server's session store",
	}, s.handleListSessions)
}

func (s *Server) resolveAPIKey(requestKey string) (string, bool) {
	if requestKey != "" {
		return requestKey, true
	}
	if s.Config.Oracle.APIKey != "" {
		return s.Config.Oracle.APIKey, true
	}
	return "", false
}
