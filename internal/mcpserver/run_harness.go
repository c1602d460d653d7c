package mcpserver

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"thesisharness/internal/confidence"
	"thesisharness/internal/cycle"
	"thesisharness/internal/harnesserr"
	"thesisharness/internal/ids"
	"thesisharness/internal/pass"
	"thesisharness/internal/router"
	"thesisharness/internal/scratchpad"
)

// ClaimInput mirrors scratchpad.Claim for the run-harness tool's typed
// input schema, which the SDK derives by reflection and cannot build
// directly off an internal package's struct.
type ClaimInput struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Type    string `json:"type,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

type RunHarnessInput struct {
	Title  string       `json:"title"`
	Claims []ClaimInput `json:"claims,omitempty"`
	APIKey string       `json:"api_key,omitempty"`
}

type Budget struct {
	ThesisTokens    int `json:"thesis_tokens"`
	PatternTokens   int `json:"pattern_tokens"`
	DataTokens      int `json:"data_tokens"`
	ReasoningTokens int `json:"reasoning_tokens"`
}

type RouterInfo struct {
	RouteType       string   `json:"route_type"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
	MatchedTheses   []string `json:"matched_theses"`
	MatchedPatterns []string `json:"matched_patterns"`
	Budget          Budget   `json:"budget"`
}

type RunHarnessOutput struct {
	SessionID            string                        `json:"session_id"`
	Title                string                        `json:"title"`
	FinalSynthesis       string                        `json:"final_synthesis"`
	FinalConfidence      float64                       `json:"final_confidence"`
	ConfidenceTrajectory []float64                     `json:"confidence_trajectory"`
	TrajectoryAnalysis   scratchpad.TrajectoryAnalysis `json:"trajectory_analysis"`
	TerminationReason    string                        `json:"termination_reason"`
	TotalDurationMs      int64                         `json:"total_duration_ms"`
	TotalTokens          int                           `json:"total_tokens"`
	RouterInfo           *RouterInfo                   `json:"router_info,omitempty"`
}

// handleRunHarness drives one session to completion synchronously. There is
// no streaming equivalent over MCP stdio the way internal/wsapi streams
// over a socket, so the tool blocks until the run terminates.
func (s *Server) handleRunHarness(ctx context.Context, _ *mcp.CallToolRequest, input RunHarnessInput) (*mcp.CallToolResult, *RunHarnessOutput, error) {
	apiKey, ok := s.resolveAPIKey(input.APIKey)
	if !ok {
		return nil, nil, &harnesserr.AuthError{Detail: "API key required (pass api_key or set ANTHROPIC_API_KEY)"}
	}
	if input.Title == "" {
		return nil, nil, fmt.Errorf("title is required")
	}

	claims := make([]scratchpad.Claim, len(input.Claims))
	for i, c := range input.Claims {
		claims[i] = scratchpad.Claim{ID: c.ID, Text: c.Text, Type: scratchpad.ClaimType(c.Type), Snippet: c.Snippet}
	}

	o := s.NewOracle(apiKey)
	runner := pass.NewRunner(o)
	rt := router.New(s.Library)
	controller := cycle.New(runner, rt)

	sessionID := ids.Prefixed("session")
	start := time.Now()

	report, err := controller.Run(ctx, cycle.Options{
		SessionID: sessionID,
		Title:     input.Title,
		Claims:    claims,
		Mode:      confidence.ModeForward,
		Config:    s.Config.Harness.Convert(),
	})
	if err != nil {
		return nil, nil, err
	}

	s.Store.Put(sessionID, report.Scratchpad)

	var finalSynthesis string
	var totalTokens int
	for _, p := range report.PassResults {
		totalTokens += p.TokensUsed
		if p.PassType == pass.TypeSynthesis {
			finalSynthesis = p.Content
		}
	}

	var routerInfo *RouterInfo
	if report.RouterResult.RouteType != "" {
		theses := make([]string, len(report.RouterResult.MatchedTheses))
		for i, t := range report.RouterResult.MatchedTheses {
			theses[i] = t.ID
		}
		patterns := make([]string, len(report.RouterResult.MatchedPatterns))
		for i, p := range report.RouterResult.MatchedPatterns {
			patterns[i] = p.ID
		}
		routerInfo = &RouterInfo{
			RouteType:       string(report.RouterResult.RouteType),
			Confidence:      report.RouterResult.Confidence,
			Reasoning:       report.RouterResult.Reasoning,
			MatchedTheses:   theses,
			MatchedPatterns: patterns,
			Budget: Budget{
				ThesisTokens:    report.RouterResult.Budget.ThesisTokens,
				PatternTokens:   report.RouterResult.Budget.PatternTokens,
				DataTokens:      report.RouterResult.Budget.DataTokens,
				ReasoningTokens: report.RouterResult.Budget.ReasoningTokens,
			},
		}
	}

	return nil, &RunHarnessOutput{
		SessionID:            sessionID,
		Title:                input.Title,
		FinalSynthesis:       finalSynthesis,
		FinalConfidence:      report.FinalConfidence,
		ConfidenceTrajectory: report.Scratchpad.ConfidenceHistory,
		TrajectoryAnalysis:   report.Trajectory,
		TerminationReason:    string(report.TerminationReason),
		TotalDurationMs:      time.Since(start).Milliseconds(),
		TotalTokens:          totalTokens,
		RouterInfo:           routerInfo,
	}, nil
}
