// Package config loads, normalizes, and validates TranscriBelt configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and S3_BUCKET_NAME. The Config type centralizes every knob
// the daemon roles and CLI need so the ingress, workers, and summary consumer
// agree on directories, backends, and credentials.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
