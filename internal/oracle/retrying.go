package oracle

import (
	"context"
	"time"

	"thesisharness/internal/harnesserr"
)

// Retrying wraps an Oracle with exponential backoff retry: attempt n waits
// 2^n * BackoffBase before trying again, up to MaxAttempts, before
// surfacing a *harnesserr.TransportError for the failing pass.
type Retrying struct {
	Inner       Oracle
	MaxAttempts int
	Sleep       func(time.Duration) // overridable in tests
	PassName    string
}

// NewRetrying wraps inner with the harness's default retry policy.
func NewRetrying(inner Oracle) *Retrying {
	return &Retrying{
		Inner:       inner,
		MaxAttempts: DefaultMaxAttempts,
		Sleep:       time.Sleep,
	}
}

func (r *Retrying) Invoke(ctx context.Context, systemPrompt, userPrompt string, maxOutputTokens int) (string, int, error) {
	maxAttempts := r.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := BackoffBase * time.Duration(1<<uint(attempt))
			select {
			case <-ctx.Done():
				return "", 0, ctx.Err()
			default:
			}
			sleep(backoff)
		}

		text, tokens, err := r.Inner.Invoke(ctx, systemPrompt, userPrompt, maxOutputTokens)
		if err == nil {
			return text, tokens, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", 0, ctx.Err()
		}
	}

	return "", 0, &harnesserr.TransportError{Pass: r.PassName, Err: lastErr}
}

// WithPass returns a copy of r scoped to a specific pass name, so the
// TransportError it ultimately raises identifies which pass failed.
func (r *Retrying) WithPass(pass string) *Retrying {
	clone := *r
	clone.PassName = pass
	return &clone
}
