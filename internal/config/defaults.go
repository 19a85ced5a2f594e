package config

// Backend and driver identifiers accepted by the configuration.
const (
	StateDriverSQLite   = "sqlite"
	StateDriverPostgres = "postgres"

	StorageFilesystem = "filesystem"
	StorageS3         = "s3"

	MessagingSQLite = "sqlite"
	MessagingSQS    = "sqs"
	MessagingNone   = "none"

	SummarySQLite   = "sqlite"
	SummaryDynamoDB = "dynamodb"

	EngineWhisperX = "whisperx"
)

const (
	defaultConfigPath             = "~/.config/transcribelt/config.toml"
	projectConfigName             = "transcribelt.toml"
	defaultStateDir               = "~/.local/share/transcribelt/state"
	defaultStagingDir             = "~/.local/share/transcribelt/staging"
	defaultWorkDir                = "~/.local/share/transcribelt/work"
	defaultLogDir                 = "~/.local/share/transcribelt/logs"
	defaultObjectRoot             = "~/.local/share/transcribelt/artifacts"
	defaultAPIBind                = "127.0.0.1:8000"
	defaultMaxUploadMB            = 512
	defaultAPIReadTimeout         = 300
	defaultAPIWriteTimeout        = 300
	defaultRateLimitRequests      = 5
	defaultRateLimitWindow        = 60
	defaultStatusTTLSeconds       = 3600
	defaultWorkers                = 2
	defaultQueuePollInterval      = 2
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultFFmpegBinary           = "ffmpeg"
	defaultFFprobeBinary          = "ffprobe"
	defaultAudioSampleRate        = 16000
	defaultVideoCodec             = "libx264"
	defaultMediaTimeout           = 3600
	defaultWhisperXBinary         = "whisperx"
	defaultWhisperXModel          = "base"
	defaultWhisperXLanguage       = "en"
	defaultWhisperXDevice         = "cpu"
	defaultWhisperXComputeType    = "int8"
	defaultTranscriptionTimeout   = 3600
	defaultWordSpacing            = 5
	defaultBottomMargin           = 50
	defaultBoxPadding             = 10
	defaultTextColor              = "#FFFFFF"
	defaultHighlightColor         = "#00FFFF"
	defaultBoxColor               = "#000000"
	defaultMessagingQueueName     = "summaries"
	defaultMessagingBatchSize     = 10
	defaultMessagingWaitSeconds   = 20
	defaultVisibilityTimeout      = 300
	defaultSummaryTableName       = "transcribelt-summaries"
	defaultLLMBaseURL             = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel               = "meta-llama/llama-3.1-8b-instruct"
	defaultLLMReferer             = "https://github.com/MayankTamakuwala/TranscriBelt"
	defaultLLMTitle               = "TranscriBelt Summarizer"
	defaultLLMTimeoutSeconds      = 60
	defaultNotifyRequestTimeout   = 10
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	maxMessagingBatchSize         = 10
	maxMessagingWaitSeconds       = 20
	defaultFontScaleStepsPerPoint = 10
	maxFontScale                  = 5.9
)

// DefaultFontScales returns the descending candidate scales 5.9, 5.8, ... 0.1.
func DefaultFontScales() []float64 {
	steps := int(maxFontScale * defaultFontScaleStepsPerPoint)
	scales := make([]float64, 0, steps)
	for i := steps; i >= 1; i-- {
		scales = append(scales, float64(i)/defaultFontScaleStepsPerPoint)
	}
	return scales
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir:   defaultStateDir,
			StagingDir: defaultStagingDir,
			WorkDir:    defaultWorkDir,
			LogDir:     defaultLogDir,
		},
		API: API{
			Bind:                defaultAPIBind,
			MaxUploadMB:         defaultMaxUploadMB,
			ReadTimeoutSeconds:  defaultAPIReadTimeout,
			WriteTimeoutSeconds: defaultAPIWriteTimeout,
		},
		RateLimit: RateLimit{
			Enabled:       true,
			Requests:      defaultRateLimitRequests,
			WindowSeconds: defaultRateLimitWindow,
		},
		State: State{
			Driver:           StateDriverSQLite,
			StatusTTLSeconds: defaultStatusTTLSeconds,
		},
		Workflow: Workflow{
			Workers:                 defaultWorkers,
			QueuePollInterval:       defaultQueuePollInterval,
			HeartbeatInterval:       defaultHeartbeatInterval,
			HeartbeatTimeout:        defaultHeartbeatTimeout,
			RejectUnorderedSegments: true,
		},
		Media: Media{
			FFmpegBinary:          defaultFFmpegBinary,
			FFprobeBinary:         defaultFFprobeBinary,
			AudioSampleRate:       defaultAudioSampleRate,
			VideoCodec:            defaultVideoCodec,
			CommandTimeoutSeconds: defaultMediaTimeout,
		},
		Transcription: Transcription{
			Engine:         EngineWhisperX,
			Binary:         defaultWhisperXBinary,
			Model:          defaultWhisperXModel,
			Language:       defaultWhisperXLanguage,
			Device:         defaultWhisperXDevice,
			ComputeType:    defaultWhisperXComputeType,
			TimeoutSeconds: defaultTranscriptionTimeout,
		},
		Captions: Captions{
			FontScales:     DefaultFontScales(),
			WordSpacing:    defaultWordSpacing,
			BottomMargin:   defaultBottomMargin,
			BoxPadding:     defaultBoxPadding,
			TextColor:      defaultTextColor,
			HighlightColor: defaultHighlightColor,
			BoxColor:       defaultBoxColor,
		},
		Storage: Storage{
			Backend: StorageFilesystem,
			Root:    defaultObjectRoot,
		},
		Messaging: Messaging{
			Backend:                  MessagingSQLite,
			QueueName:                defaultMessagingQueueName,
			BatchSize:                defaultMessagingBatchSize,
			WaitSeconds:              defaultMessagingWaitSeconds,
			VisibilityTimeoutSeconds: defaultVisibilityTimeout,
		},
		Summary: Summary{
			Backend: SummarySQLite,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobCompleted:   true,
			JobFailed:      true,
			SummaryReady:   true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
