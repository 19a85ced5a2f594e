package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// chatCompletionResponse keeps the fields providers actually fill. Some
// OpenRouter backends answer in the legacy completions shape (text) or stream
// shape (delta) even for non-streaming calls.
type chatCompletionResponse struct {
	Choices []struct {
		FinishReason string `json:"finish_reason"`
		Text         string `json:"text"`
		Message      struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// reply picks the first non-empty content across the response shapes.
func (r chatCompletionResponse) reply() (content, finish, refusal string) {
	if len(r.Choices) == 0 {
		return "", "", ""
	}
	choice := r.Choices[0]
	for _, candidate := range []string{choice.Message.Content, choice.Text, choice.Delta.Content} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s, choice.FinishReason, choice.Message.Refusal
		}
	}
	return "", choice.FinishReason, choice.Message.Refusal
}

// attemptError describes one failed exchange with enough detail for the
// retry policy to classify it.
type attemptError struct {
	op         string
	status     int
	retryAfter time.Duration
	empty      bool
	detail     string
	err        error
}

func (e *attemptError) Error() string {
	switch {
	case e.err != nil:
		return fmt.Sprintf("llm %s: %v", e.op, e.err)
	case e.empty:
		return fmt.Sprintf("llm %s: empty completion (%s)", e.op, e.detail)
	default:
		return fmt.Sprintf("llm %s: status %d: %s", e.op, e.status, e.detail)
	}
}

func (e *attemptError) Unwrap() error { return e.err }

// exchange performs one request. Transport failures, non-2xx replies, and
// empty completions all come back as *attemptError.
func (c *Client) exchange(ctx context.Context, op string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm %s: build request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &attemptError{op: op, err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &attemptError{op: op, err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &attemptError{
			op:         op,
			status:     resp.StatusCode,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
			detail:     errorDetail(raw),
		}
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &attemptError{op: op, status: resp.StatusCode, detail: "malformed JSON: " + truncate(string(raw), 160)}
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", &attemptError{op: op, status: http.StatusBadGateway, detail: decoded.Error.Message}
	}
	content, finish, refusal := decoded.reply()
	if content == "" {
		detail := "finish_reason=" + strconv.Quote(finish)
		if refusal != "" {
			detail += " refusal=" + strconv.Quote(truncate(refusal, 120))
		}
		return "", &attemptError{op: op, status: resp.StatusCode, empty: true, detail: detail}
	}
	return content, nil
}

// errorDetail pulls a provider message out of an error body, falling back to
// a clipped copy of the raw text.
func errorDetail(raw []byte) string {
	var body struct {
		Error any `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		switch v := body.Error.(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if msg, ok := v["message"].(string); ok && msg != "" {
				return msg
			}
		}
	}
	text := strings.Join(strings.Fields(string(raw)), " ")
	if text == "" {
		return "empty body"
	}
	return truncate(text, 160)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
