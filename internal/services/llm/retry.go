package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
	sleep    func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 5, base: time.Second, ceiling: 10 * time.Second, sleep: time.Sleep}
}

// delay doubles base per completed attempt up to ceiling. A server-provided
// Retry-After wins when it is set.
func (p retryPolicy) delay(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return hint
	}
	d := p.base
	for i := 1; i < attempt && d < p.ceiling; i++ {
		d *= 2
	}
	return min(d, p.ceiling)
}

// chat runs the exchange under the retry policy and maps the final failure
// onto the services error markers.
func (c *Client) chat(ctx context.Context, op string, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{Model: c.cfg.Model, Messages: messages})
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "llm", op, "encode request", err)
	}
	var last error
	for attempt := 1; attempt <= c.policy.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		content, err := c.exchange(ctx, op, body)
		if err == nil {
			return content, nil
		}
		last = err
		if !retryable(err) || attempt == c.policy.attempts {
			break
		}
		var hint time.Duration
		var ae *attemptError
		if errors.As(err, &ae) {
			hint = ae.retryAfter
		}
		if wait := c.policy.delay(attempt, hint); wait > 0 {
			c.policy.sleep(wait)
		}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	return "", services.Wrap(classify(last), "llm", op, "chat completion failed", last)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ae *attemptError
	if !errors.As(err, &ae) {
		return false
	}
	switch {
	case ae.empty:
		return true
	case ae.err != nil:
		return true
	case ae.status == http.StatusRequestTimeout, ae.status == http.StatusTooManyRequests:
		return true
	default:
		return ae.status >= 500
	}
}

// classify picks the marker that tells callers whether to retry later.
func classify(err error) error {
	var ae *attemptError
	if !errors.As(err, &ae) {
		return services.ErrExternalTool
	}
	switch {
	case ae.status == http.StatusUnauthorized, ae.status == http.StatusForbidden:
		return services.ErrConfiguration
	case ae.status == http.StatusTooManyRequests:
		return services.ErrThrottled
	case ae.err != nil, ae.status == http.StatusRequestTimeout, ae.status >= 500:
		return services.ErrTransient
	default:
		return services.ErrExternalTool
	}
}
