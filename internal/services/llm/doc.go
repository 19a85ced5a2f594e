// Package llm provides an OpenRouter chat client used to summarize
// transcripts.
//
// Requires api_key; base_url, model, referer, title, and timeout fall back to
// OpenRouter defaults. Summarize is the consumer's entry point and
// HealthCheck backs the preflight probe.
//
// Requests are retried on 408, 429, 5xx, transport failures, and empty
// completions with doubling backoff (1s up to 10s, five attempts by default).
// Retry-After overrides the computed wait. The error that survives retries
// carries a services marker: rejected keys are configuration errors, 429 is
// throttled, server and network trouble is transient, and anything else is an
// external tool failure.
package llm
