package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"thesisharness/internal/harnesserr"
	"thesisharness/internal/ids"
	"thesisharness/internal/ingest"
)

type ingestRequest struct {
	URL    string `json:"url,omitempty"`
	Text   string `json:"text,omitempty"`
	Title  string `json:"title,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

type claimJSON struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

type ingestResponse struct {
	SessionID string      `json:"session_id"`
	Title     string      `json:"title"`
	Text      string      `json:"text"`
	Claims    []claimJSON `json:"claims"`
}

// handleIngest turns a URL or pasted text into a title/text/claims triple,
// mirroring the grounding file's POST /ingest.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := http.StatusOK
	defer func() { logRequest(r, status, start) }()

	var req ingestRequest
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

	var text, title string
	var err error
	switch {
	case req.URL != "":
		text, title, err = s.Fetcher.Fetch(r.Context(), req.URL)
		if err != nil {
			status = http.StatusBadGateway
			writeError(w, status, err.Error())
			return
		}
	case req.Text != "":
		text = req.Text
		title = req.Title
		if title == "" {
			title = "Pasted Content"
		}
	default:
		status = http.StatusBadRequest
		writeError(w, status, "url or text required")
		return
	}

	o := s.NewOracle(apiKey)
	claims, err := ingest.ExtractClaims(r.Context(), o, title, text)
	if err != nil {
		status = http.StatusBadGateway
		writeError(w, status, fmt.Sprintf("extracting claims: %v", err))
		return
	}

	claimsJSON := make([]claimJSON, len(claims))
	for i, c := range claims {
		claimsJSON[i] = claimJSON{ID: c.ID, Text: c.Text, Type: string(c.Type), Snippet: c.Snippet}
	}

	writeJSON(w, status, ingestResponse{
		SessionID: ids.Prefixed("ingest"),
		Title:     title,
		Text:      text,
		Claims:    claimsJSON,
	})
}
