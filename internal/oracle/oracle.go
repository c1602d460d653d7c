// Package oracle defines the harness's one required external collaborator:
// an opaque LLM request/response transport. The engine depends only on the
// Oracle interface; this package also supplies a concrete direct-HTTP
// implementation plus a retrying, rate-limited decorator, but no engine code
// imports those concrete types directly.
package oracle

import (
	"context"
	"time"
)

// Oracle is the abstract LLM transport: invoke a prompt pair under an output
// token cap and get back text plus the token count actually used. Callers
// must preserve verbatim bracketed tags and multi-line content — the
// engine's marker extraction depends on the oracle not mangling output.
type Oracle interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (text string, outputTokens int, err error)
}

// Func adapts a plain function to the Oracle interface, used heavily by
// tests to script deterministic replies per pass.
type Func func(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, int, error)

func (f Func) Invoke(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, int, error) {
	return f(ctx, systemPrompt, userPrompt, maxOutputTokens)
}

// Scripted is a test double that returns one canned reply per call, in
// order, repeating the last reply once the list is exhausted. It lets
// end-to-end scenario tests (S1-S6) script exact critique/expansion text
// without a real transport.
type Scripted struct {
	Replies []string
	calls   int
}

func (s *Scripted) Invoke(_ context.Context, _, _ string, _ int) (string, int, error) {
	if len(s.Replies) == 0 {
		return "", 0, nil
	}
	idx := s.calls
	if idx >= len(s.Replies) {
		idx = len(s.Replies) - 1
	}
	s.calls++
	reply := s.Replies[idx]
	return reply, len(reply) / 4, nil
}

// BackoffBase is the exponential backoff base delay: attempt n waits
// 2^n * BackoffBase before retrying, per the harness's timeout/retry policy.
const BackoffBase = 2 * time.Second

// DefaultMaxAttempts is the default retry attempt count before a transport
// failure surfaces as a user-visible error.
const DefaultMaxAttempts = 3
