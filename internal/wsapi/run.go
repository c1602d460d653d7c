package wsapi

import (
	"context"
	"time"

	"thesisharness/internal/confidence"
	"thesisharness/internal/cycle"
	"thesisharness/internal/harnesserr"
	"thesisharness/internal/ids"
	"thesisharness/internal/pass"
	"thesisharness/internal/router"
	"thesisharness/internal/scratchpad"
)

type wsClaim struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

type wsCommand struct {
	Action    string    `json:"action"`
	APIKey    string    `json:"api_key,omitempty"`
	Title     string    `json:"title,omitempty"`
	Claims    []wsClaim `json:"claims,omitempty"`
	MaxCycles int       `json:"max_cycles,omitempty"`
}

// runHarness drives one session, forwarding every intermediate progress
// event from the cycle controller verbatim, then sending a single "complete"
// (or "error") event built from the finished report — mirroring the
// grounding file's pattern of building its final websocket message around
// harness.run() rather than through on_progress itself.
func (s *Server) runHarness(ctx context.Context, cmd wsCommand, ew *eventWriter) {
	apiKey := cmd.APIKey
	if apiKey == "" {
		apiKey = s.Config.Oracle.APIKey
	}
	if apiKey == "" {
		ew.send("error", map[string]any{"message": (&harnesserr.AuthError{Detail: "API key required"}).Error()})
		return
	}

	title := cmd.Title
	if title == "" {
		title = "Untitled"
	}

	claims := make([]scratchpad.Claim, len(cmd.Claims))
	for i, c := range cmd.Claims {
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
		Title:     title,
		Claims:    claims,
		Mode:      confidence.ModeForward,
		Config:    s.Config.Harness.Convert(),
		MaxCycles: cmd.MaxCycles,
		OnProgress: func(event string, data map[string]any) {
			if event == "complete" {
				return
			}
			ew.send(event, data)
		},
	})
	if err != nil {
		ew.send("error", map[string]any{"message": err.Error()})
		return
	}

	s.Store.Put(sessionID, report.Scratchpad)
	ew.send("complete", buildCompleteData(sessionID, start, report))
}

func buildCompleteData(sessionID string, start time.Time, report cycle.Report) map[string]any {
	var routerInfo map[string]any
	if report.RouterResult.RouteType != "" {
		theses := make([]string, len(report.RouterResult.MatchedTheses))
		for i, t := range report.RouterResult.MatchedTheses {
			theses[i] = t.ID
		}
		patterns := make([]string, len(report.RouterResult.MatchedPatterns))
		for i, p := range report.RouterResult.MatchedPatterns {
			patterns[i] = p.ID
		}
		routerInfo = map[string]any{
			"route_type":       string(report.RouterResult.RouteType),
			"confidence":       report.RouterResult.Confidence,
			"reasoning":        report.RouterResult.Reasoning,
			"matched_theses":   theses,
			"matched_patterns": patterns,
			"budget": map[string]any{
				"thesis_tokens":    report.RouterResult.Budget.ThesisTokens,
				"pattern_tokens":   report.RouterResult.Budget.PatternTokens,
				"data_tokens":      report.RouterResult.Budget.DataTokens,
				"reasoning_tokens": report.RouterResult.Budget.ReasoningTokens,
			},
		}
	}

	var finalSynthesis string
	var totalTokens int
	for _, p := range report.PassResults {
		totalTokens += p.TokensUsed
		if p.PassType == pass.TypeSynthesis {
			finalSynthesis = p.Content
		}
	}

	return map[string]any{
		"session_id":            sessionID,
		"final_synthesis":       finalSynthesis,
		"final_confidence":      report.FinalConfidence,
		"confidence_trajectory": report.Scratchpad.ConfidenceHistory,
		"trajectory_analysis":   report.Trajectory,
		"termination_reason":    string(report.TerminationReason),
		"total_duration_ms":     time.Since(start).Milliseconds(),
		"total_tokens":          totalTokens,
		"scratchpad_rendered":   report.Scratchpad.Render(),
		"router_info":           routerInfo,
	}
}
