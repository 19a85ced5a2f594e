package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateAPI,
		c.validateRateLimit,
		c.validateState,
		c.validateWorkflow,
		c.validateMedia,
		c.validateCaptions,
		c.validateStorage,
		c.validateMessaging,
		c.validateSummary,
		c.validateNotifications,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.MaxUploadMB <= 0 {
		return errors.New("api.max_upload_mb must be positive")
	}
	if c.API.PublicURL != "" {
		parsed, err := url.Parse(c.API.PublicURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("api.public_url %q must be an absolute URL", c.API.PublicURL)
		}
	}
	return ensurePositiveMap(map[string]int{
		"api.read_timeout_seconds":  c.API.ReadTimeoutSeconds,
		"api.write_timeout_seconds": c.API.WriteTimeoutSeconds,
	})
}

func (c *Config) validateRateLimit() error {
	if !c.RateLimit.Enabled {
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"rate_limit.requests":       c.RateLimit.Requests,
		"rate_limit.window_seconds": c.RateLimit.WindowSeconds,
	})
}

func (c *Config) validateState() error {
	switch c.State.Driver {
	case StateDriverSQLite:
	case StateDriverPostgres:
		if c.State.DSN == "" {
			return errors.New("state.dsn is required when state.driver is postgres (or set TRANSCRIBELT_STATE_DSN)")
		}
	default:
		return fmt.Errorf("state.driver %q is not supported (use sqlite or postgres)", c.State.Driver)
	}
	if c.State.StatusTTLSeconds <= 0 {
		return errors.New("state.status_ttl_seconds must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.workers":             c.Workflow.Workers,
		"workflow.queue_poll_interval": c.Workflow.QueuePollInterval,
		"workflow.heartbeat_interval":  c.Workflow.HeartbeatInterval,
		"workflow.heartbeat_timeout":   c.Workflow.HeartbeatTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateMedia() error {
	if err := ensurePositiveMap(map[string]int{
		"media.audio_sample_rate":              c.Media.AudioSampleRate,
		"media.command_timeout_seconds":        c.Media.CommandTimeoutSeconds,
		"transcription.timeout_seconds":        c.Transcription.TimeoutSeconds,
		"notifications.request_timeout":        c.Notifications.RequestTimeout,
		"llm.timeout_seconds":                  c.LLM.TimeoutSeconds,
		"messaging.visibility_timeout_seconds": c.Messaging.VisibilityTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Transcription.Engine != EngineWhisperX {
		return fmt.Errorf("transcription.engine %q is not supported (use whisperx)", c.Transcription.Engine)
	}
	return nil
}

func (c *Config) validateCaptions() error {
	for _, scale := range c.Captions.FontScales {
		if scale <= 0 {
			return errors.New("captions.font_scales must contain only positive values")
		}
	}
	if c.Captions.WordSpacing < 0 || c.Captions.BottomMargin < 0 || c.Captions.BoxPadding < 0 {
		return errors.New("captions.word_spacing, bottom_margin, and box_padding must be >= 0")
	}
	for name, value := range map[string]string{
		"captions.text_color":      c.Captions.TextColor,
		"captions.highlight_color": c.Captions.HighlightColor,
		"captions.box_color":       c.Captions.BoxColor,
	} {
		if !isHexColor(value) {
			return fmt.Errorf("%s %q must be a #RRGGBB color", name, value)
		}
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageFilesystem:
		if c.Storage.Root == "" {
			return errors.New("storage.root must be set for the filesystem backend")
		}
	case StorageS3:
		// Missing bucket or region is reported by the object store at publish
		// time as a configuration error, so the ingress can still start.
	default:
		return fmt.Errorf("storage.backend %q is not supported (use filesystem or s3)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateMessaging() error {
	switch c.Messaging.Backend {
	case MessagingSQLite, MessagingSQS, MessagingNone:
	default:
		return fmt.Errorf("messaging.backend %q is not supported (use sqlite, sqs, or none)", c.Messaging.Backend)
	}
	if c.Messaging.BatchSize > maxMessagingBatchSize {
		return fmt.Errorf("messaging.batch_size must be <= %d", maxMessagingBatchSize)
	}
	if c.Messaging.WaitSeconds > maxMessagingWaitSeconds {
		return fmt.Errorf("messaging.wait_seconds must be <= %d", maxMessagingWaitSeconds)
	}
	return nil
}

func (c *Config) validateSummary() error {
	switch c.Summary.Backend {
	case SummarySQLite, SummaryDynamoDB:
		return nil
	default:
		return fmt.Errorf("summary.backend %q is not supported (use sqlite or dynamodb)", c.Summary.Backend)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic == "" {
		return nil
	}
	parsed, err := url.Parse(c.Notifications.NtfyTopic)
	if err != nil || parsed.Scheme == "" {
		return fmt.Errorf("notifications.ntfy_topic %q must be a full URL", c.Notifications.NtfyTopic)
	}
	return nil
}

func isHexColor(value string) bool {
	value = strings.TrimPrefix(value, "#")
	if len(value) != 6 {
		return false
	}
	for _, r := range value {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
