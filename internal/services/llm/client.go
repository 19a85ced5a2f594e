package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"
	defaultModel   = "meta-llama/llama-3.1-8b-instruct"
	defaultTimeout = 60 * time.Second
)

// SummaryPrompt instructs the model to summarize a timestamped transcript.
const SummaryPrompt = "I am providing you contents of transcript with timestamps of a video. " +
	"provide a summary and key points of the file uploaded without including the timestamps " +
	"and with no extra text or explanation"

// Config names the OpenRouter endpoint and credentials.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client summarizes transcripts through an OpenAI-compatible chat endpoint.
type Client struct {
	cfg    Config
	http   *http.Client
	policy retryPolicy
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetryMaxAttempts caps the attempts per request. Values below one mean one.
func WithRetryMaxAttempts(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.policy.attempts = n
	}
}

// WithRetryBackoff sets the first backoff step and its ceiling.
func WithRetryBackoff(base, ceiling time.Duration) Option {
	return func(c *Client) {
		c.policy.base = max(base, 0)
		c.policy.ceiling = max(ceiling, 0)
	}
}

// WithSleeper replaces the wait between attempts.
func WithSleeper(fn func(time.Duration)) Option {
	return func(c *Client) {
		if fn != nil {
			c.policy.sleep = fn
		}
	}
}

// NewClient fills in endpoint defaults and applies opts.
func NewClient(cfg Config, opts ...Option) *Client {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = defaultModel
	}
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: timeout},
		policy: defaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromConfig builds a client from the [llm] config section.
func FromConfig(cfg config.LLM, opts ...Option) *Client {
	return NewClient(Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, opts...)
}

// Summarize returns a summary with key points for transcript text.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "summarize", "prompt", "transcript is empty", nil)
	}
	if c.cfg.APIKey == "" {
		return "", missingKey("summarize")
	}
	return c.chat(ctx, "summarize", []chatMessage{
		{Role: "system", Content: SummaryPrompt},
		{Role: "user", Content: text},
	})
}

// HealthCheck sends a one-word prompt to confirm the key and model work.
// It never retries past the configured attempt cap.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return missingKey("health")
	}
	reply, err := c.chat(ctx, "health", []chatMessage{
		{Role: "system", Content: "Reply with the single word OK."},
		{Role: "user", Content: "ping"},
	})
	if err != nil {
		return err
	}
	if !strings.Contains(strings.ToUpper(reply), "OK") {
		return fmt.Errorf("%w: llm health: unexpected reply %q", services.ErrExternalTool, truncate(reply, 64))
	}
	return nil
}

func missingKey(op string) error {
	return services.Wrap(services.ErrConfiguration, "llm", op,
		"API key missing; set llm.api_key or OPENROUTER_API_KEY", nil)
}
