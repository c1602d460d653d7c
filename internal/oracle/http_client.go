// HTTP oracle client: a direct-API transport posting to an Anthropic-style
// messages endpoint, grounded on the retrieval pack's own _call_claude
// direct-HTTP implementation (as opposed to an SDK client). Wrapped in a
// token-bucket limiter so many concurrent sessions sharing one process
// don't thunder against the provider — the engine itself has no rate
// limiter (spec §5); this sits in the transport, outside that boundary.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient is a minimal Anthropic Messages API client.
type HTTPClient struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// NewHTTPClient constructs a client for the given API key, defaulting to
// the Claude Sonnet model the retrieval pack's oracle implementation used.
func NewHTTPClient(apiKey string) *HTTPClient {
	return &HTTPClient{
		APIKey:     apiKey,
		Model:      "claude-sonnet-4-20250514",
		BaseURL:    "https://api.anthropic.com/v1/messages",
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Invoke implements Oracle by POSTing to the Messages API.
func (c *HTTPClient) Invoke(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, int, error) {
	reqBody, err := json.Marshal(messagesRequest{
		Model:     c.Model,
		MaxTokens: maxOutputTokens,
		System:    systemPrompt,
		Messages:  []message{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, err
	}
	if resp.StatusCode >= 400 {
		return "", 0, fmt.Errorf("oracle transport returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, err
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return text, parsed.Usage.OutputTokens, nil
}

// RateLimited wraps an Oracle with a token-bucket limiter so concurrent
// sessions in one process don't exceed a configured call rate.
type RateLimited struct {
	Inner   Oracle
	limiter *rate.Limiter
}

// NewRateLimited wraps inner with a limiter allowing ratePerSecond calls per
// second and a burst of the same size.
func NewRateLimited(inner Oracle, ratePerSecond float64) *RateLimited {
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{Inner: inner, limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

func (r *RateLimited) Invoke(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, int, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", 0, err
	}
	return r.Inner.Invoke(ctx, systemPrompt, userPrompt, maxOutputTokens)
}
