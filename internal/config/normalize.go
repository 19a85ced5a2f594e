package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAPI()
	c.normalizeState()
	c.normalizeMedia()
	c.normalizeCaptions()
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	c.normalizeMessaging()
	c.normalizeSummary()
	c.normalizeLLM()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.staging_dir", &c.Paths.StagingDir, defaultStagingDir},
		{"paths.work_dir", &c.Paths.WorkDir, defaultWorkDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizeAPI() {
	c.API.Bind = strings.TrimSpace(c.API.Bind)
	if c.API.Bind == "" {
		c.API.Bind = defaultAPIBind
	}
	c.API.PublicURL = strings.TrimRight(strings.TrimSpace(c.API.PublicURL), "/")
}

func (c *Config) normalizeState() {
	c.State.Driver = strings.ToLower(strings.TrimSpace(c.State.Driver))
	switch c.State.Driver {
	case "", "sqlite3":
		c.State.Driver = StateDriverSQLite
	case "postgresql", "pg":
		c.State.Driver = StateDriverPostgres
	}
	c.State.DSN = strings.TrimSpace(c.State.DSN)
	if c.State.DSN == "" {
		c.State.DSN = lookupEnv("TRANSCRIBELT_STATE_DSN")
	}
}

func (c *Config) normalizeMedia() {
	c.Media.FFmpegBinary = defaultString(c.Media.FFmpegBinary, defaultFFmpegBinary)
	c.Media.FFprobeBinary = defaultString(c.Media.FFprobeBinary, defaultFFprobeBinary)
	c.Media.VideoCodec = defaultString(c.Media.VideoCodec, defaultVideoCodec)
	c.Transcription.Engine = strings.ToLower(defaultString(c.Transcription.Engine, EngineWhisperX))
	c.Transcription.Binary = defaultString(c.Transcription.Binary, defaultWhisperXBinary)
	c.Transcription.Model = defaultString(c.Transcription.Model, defaultWhisperXModel)
	c.Transcription.Device = strings.ToLower(defaultString(c.Transcription.Device, defaultWhisperXDevice))
	c.Transcription.ComputeType = defaultString(c.Transcription.ComputeType, defaultWhisperXComputeType)
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
}

func (c *Config) normalizeCaptions() {
	if len(c.Captions.FontScales) == 0 {
		c.Captions.FontScales = DefaultFontScales()
	}
	c.Captions.TextColor = defaultString(c.Captions.TextColor, defaultTextColor)
	c.Captions.HighlightColor = defaultString(c.Captions.HighlightColor, defaultHighlightColor)
	c.Captions.BoxColor = defaultString(c.Captions.BoxColor, defaultBoxColor)
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(defaultString(c.Storage.Backend, StorageFilesystem))
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = lookupEnv("S3_BUCKET_NAME")
	}
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = lookupEnv("AWS_REGION")
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	if c.Storage.Backend == StorageFilesystem {
		root, err := expandPath(defaultString(c.Storage.Root, defaultObjectRoot))
		if err != nil {
			return fmt.Errorf("storage.root: %w", err)
		}
		c.Storage.Root = root
	}
	return nil
}

func (c *Config) normalizeMessaging() {
	c.Messaging.Backend = strings.ToLower(defaultString(c.Messaging.Backend, MessagingSQLite))
	c.Messaging.QueueName = defaultString(c.Messaging.QueueName, defaultMessagingQueueName)
	c.Messaging.QueueURL = strings.TrimSpace(c.Messaging.QueueURL)
	if c.Messaging.QueueURL == "" {
		c.Messaging.QueueURL = lookupEnv("SQS_QUEUE_URL")
	}
	c.Messaging.Region = strings.TrimSpace(c.Messaging.Region)
	if c.Messaging.Region == "" {
		c.Messaging.Region = defaultString(c.Storage.Region, lookupEnv("AWS_REGION"))
	}
	if c.Messaging.BatchSize <= 0 {
		c.Messaging.BatchSize = defaultMessagingBatchSize
	}
	if c.Messaging.WaitSeconds < 0 {
		c.Messaging.WaitSeconds = 0
	}
	if c.Messaging.VisibilityTimeoutSeconds <= 0 {
		c.Messaging.VisibilityTimeoutSeconds = defaultVisibilityTimeout
	}
}

func (c *Config) normalizeSummary() {
	c.Summary.Backend = strings.ToLower(defaultString(c.Summary.Backend, SummarySQLite))
	c.Summary.TableName = strings.TrimSpace(c.Summary.TableName)
	if c.Summary.TableName == "" {
		c.Summary.TableName = defaultString(lookupEnv("DYNAMODB_TABLE_NAME"), defaultSummaryTableName)
	}
	c.Summary.Region = strings.TrimSpace(c.Summary.Region)
	if c.Summary.Region == "" {
		c.Summary.Region = defaultString(c.Storage.Region, lookupEnv("AWS_REGION"))
	}
}

func (c *Config) normalizeLLM() {
	c.LLM.BaseURL = defaultString(c.LLM.BaseURL, defaultLLMBaseURL)
	c.LLM.Model = defaultString(c.LLM.Model, defaultLLMModel)
	c.LLM.Referer = defaultString(c.LLM.Referer, defaultLLMReferer)
	c.LLM.Title = defaultString(c.LLM.Title, defaultLLMTitle)
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = lookupEnv("OPENROUTER_API_KEY")
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = lookupEnv("TRANSCRIBELT_NTFY_TOPIC")
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func defaultString(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func lookupEnv(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
