package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"thesisharness/internal/oracle"
	"thesisharness/internal/scratchpad"
)

const extractClaimsSystemPrompt = `Extract 3-7 key claims from source material.

Return ONLY valid JSON array:
[
  {
    "id": "CLAIM-1",
    "text": "Summary (1-2 sentences)",
    "type": "core_thesis|framework|meta|counter",
    "snippet": "Exact verbatim quote"
  }
]`

const maxExtractionInputChars = 8000
const extractClaimsMaxOutputTokens = 2048

var jsonFence = regexp.MustCompile("```json?\\s*|\\s*```")

type rawClaim struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Type    string `json:"type"`
	Snippet string `json:"snippet"`
}

// ExtractClaims asks the oracle to pull 3-7 key claims out of source text.
// Each claim's snippet is passed through as the oracle returned it; it is
// not checked against, or located in, the original text.
func ExtractClaims(ctx context.Context, o oracle.Oracle, title, text string) ([]scratchpad.Claim, error) {
	truncated := text
	if len(truncated) > maxExtractionInputChars {
		truncated = truncated[:maxExtractionInputChars]
	}
	userPrompt := fmt.Sprintf("# %s\n\n%s", title, truncated)

	reply, _, err := o.Invoke(ctx, extractClaimsSystemPrompt, userPrompt, extractClaimsMaxOutputTokens)
	if err != nil {
		return nil, fmt.Errorf("extracting claims: %w", err)
	}

	jsonStr := strings.TrimSpace(jsonFence.ReplaceAllString(reply, ""))

	var raw []rawClaim
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("parsing claim extraction reply: %w", err)
	}

	claims := make([]scratchpad.Claim, 0, len(raw))
	for i, c := range raw {
		id := c.ID
		if id == "" {
			id = fmt.Sprintf("CLAIM-%d", i+1)
		}
		claims = append(claims, scratchpad.Claim{
			ID:      id,
			Text:    c.Text,
			Type:    claimType(c.Type),
			Snippet: c.Snippet,
		})
	}
	return claims, nil
}

func claimType(raw string) scratchpad.ClaimType {
	switch raw {
	case string(scratchpad.ClaimCoreThesis), string(scratchpad.ClaimFramework), string(scratchpad.ClaimMeta), string(scratchpad.ClaimCounter):
		return scratchpad.ClaimType(raw)
	default:
		return scratchpad.ClaimClaim
	}
}
