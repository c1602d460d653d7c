package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"thesisharness/internal/confidence"
	"thesisharness/internal/cycle"
	"thesisharness/internal/harnesserr"
	"thesisharness/internal/ids"
	"thesisharness/internal/pass"
	"thesisharness/internal/router"
	"thesisharness/internal/scratchpad"
)

type harnessRequest struct {
	Title          string      `json:"title"`
	Claims         []claimJSON `json:"claims"`
	InitialContext string      `json:"initial_context,omitempty"`
	MaxCycles      int         `json:"max_cycles,omitempty"`
	APIKey         string      `json:"api_key,omitempty"`
}

type budgetJSON struct {
	ThesisTokens    int `json:"thesis_tokens"`
	PatternTokens   int `json:"pattern_tokens"`
	DataTokens      int `json:"data_tokens"`
	ReasoningTokens int `json:"reasoning_tokens"`
}

type routerInfoJSON struct {
	RouteType       string     `json:"route_type"`
	Confidence      float64    `json:"confidence"`
	Reasoning       string     `json:"reasoning"`
	MatchedTheses   []string   `json:"matched_theses"`
	MatchedPatterns []string   `json:"matched_patterns"`
	Budget          budgetJSON `json:"budget"`
}

type passJSON struct {
	PassType   string  `json:"pass_type"`
	Confidence float64 `json:"confidence"`
	DurationMs int64   `json:"duration_ms"`
	TokensUsed int     `json:"tokens_used"`
}

type harnessResponse struct {
	SessionID            string                        `json:"session_id"`
	Title                string                        `json:"title"`
	FinalSynthesis       string                        `json:"final_synthesis"`
	FinalConfidence      float64                       `json:"final_confidence"`
	ConfidenceTrajectory []float64                     `json:"confidence_trajectory"`
	TrajectoryAnalysis   scratchpad.TrajectoryAnalysis `json:"trajectory_analysis"`
	TerminationReason    string                        `json:"termination_reason"`
	TotalDurationMs      int64                         `json:"total_duration_ms"`
	TotalTokens          int                           `json:"total_tokens"`
	Passes               []passJSON                    `json:"passes"`
	ScratchpadRendered   string                        `json:"scratchpad_rendered"`
	RouterInfo           *routerInfoJSON               `json:"router_info,omitempty"`
}

// handleHarnessRun drives one full session synchronously and returns the
// complete result, mirroring the grounding file's blocking POST /harness/run
// (as opposed to internal/wsapi's streaming equivalent).
func (s *Server) handleHarnessRun(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { logRequest(r, status, start) }()

	var req harnessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		status = http.StatusBadRequest
		writeError(w, status, "invalid request body")
		return
	}

	apiKey, ok := s.resolveAPIKey(req.APIKey)
	if !ok {
		status = http.StatusBadRequest
		writeError(w, status, (&harnesserr.AuthError{Detail: "API key required (pass api_key or set ANTHROPIC_API_KEY)"}).Error())
		return
	}

	claims := make([]scratchpad.Claim, len(req.Claims))
	for i, c := range req.Claims {
		claims[i] = scratchpad.Claim{ID: c.ID, Text: c.Text, Type: scratchpad.ClaimType(c.Type), Snippet: c.Snippet}
	}

	o := s.NewOracle(apiKey)
	runner := pass.NewRunner(o)
	rt := router.New(s.Library)
	controller := cycle.New(runner, rt)

	sessionID := ids.Prefixed("session")
	report, err := controller.Run(r.Context(), cycle.Options{
		SessionID: sessionID,
		Title:     req.Title,
		Claims:    claims,
		Mode:      confidence.ModeForward,
		Config:    s.Config.Harness.Convert(),
		MaxCycles: req.MaxCycles,
	})
	if err != nil {
		status = http.StatusBadGateway
		writeError(w, status, err.Error())
		return
	}

	s.Store.Put(sessionID, report.Scratchpad)

	writeJSON(w, status, buildHarnessResponse(sessionID, req.Title, start, report))
}

func buildHarnessResponse(sessionID, title string, start time.Time, report cycle.Report) harnessResponse {
	var finalSynthesis string
	var totalTokens int
	passesJSON := make([]passJSON, len(report.PassResults))
	for i, p := range report.PassResults {
		passesJSON[i] = passJSON{
			PassType:   string(p.PassType),
			Confidence: p.Confidence,
			DurationMs: p.DurationMs,
			TokensUsed: p.TokensUsed,
		}
		totalTokens += p.TokensUsed
		if p.PassType == pass.TypeSynthesis {
			finalSynthesis = p.Content
		}
	}

	var routerInfo *routerInfoJSON
	if report.RouterResult.RouteType != "" {
		theses := make([]string, len(report.RouterResult.MatchedTheses))
		for i, t := range report.RouterResult.MatchedTheses {
			theses[i] = t.ID
		}
		patterns := make([]string, len(report.RouterResult.MatchedPatterns))
		for i, p := range report.RouterResult.MatchedPatterns {
			patterns[i] = p.ID
		}
		routerInfo = &routerInfoJSON{
			RouteType:       string(report.RouterResult.RouteType),
			Confidence:      report.RouterResult.Confidence,
			Reasoning:       report.RouterResult.Reasoning,
			MatchedTheses:   theses,
			MatchedPatterns: patterns,
			Budget: budgetJSON{
				ThesisTokens:    report.RouterResult.Budget.ThesisTokens,
				PatternTokens:   report.RouterResult.Budget.PatternTokens,
				DataTokens:      report.RouterResult.Budget.DataTokens,
				ReasoningTokens: report.RouterResult.Budget.ReasoningTokens,
			},
		}
	}

	return harnessResponse{
		SessionID:            sessionID,
		Title:                title,
		FinalSynthesis:       finalSynthesis,
		FinalConfidence:      report.FinalConfidence,
		ConfidenceTrajectory: report.Scratchpad.ConfidenceHistory,
		TrajectoryAnalysis:   report.Trajectory,
		TerminationReason:    string(report.TerminationReason),
		TotalDurationMs:      time.Since(start).Milliseconds(),
		TotalTokens:          totalTokens,
		Passes:               passesJSON,
		ScratchpadRendered:   report.Scratchpad.Render(),
		RouterInfo:           routerInfo,
	}
}
