package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type GetScratchpadInput struct {
	SessionID string `json:"session_id"`
}

type GetScratchpadOutput struct {
	SessionID string `json:"session_id"`
	Rendered  string `json:"rendered"`
}

func (s *Server) handleGetScratchpad(_ context.Context, _ *mcp.CallToolRequest, input GetScratchpadInput) (*mcp.CallToolResult, *GetScratchpadOutput, error) {
	pad, ok := s.Store.Get(input.SessionID)
	if !ok {
		return nil, nil, fmt.Errorf("no session with id %q", input.SessionID)
	}

	return nil, &GetScratchpadOutput{
		SessionID: input.SessionID,
		Rendered:  pad.Render(),
	}, nil
}

type ListSessionsInput struct{}

type ListSessionsOutput struct {
	SessionIDs []string `json:"session_ids"`
}

func (s *Server) handleListSessions(_ context.Context, _ *mcp.CallToolRequest, _ ListSessionsInput) (*mcp.CallToolResult, *ListSessionsOutput, error) {
	return nil, &ListSessionsOutput{SessionIDs: s.Store.List()}, nil
}
