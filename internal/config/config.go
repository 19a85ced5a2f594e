package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directories the daemon reads and writes.
type Paths struct {
	StateDir   string `toml:"state_dir"`
	StagingDir string `toml:"staging_dir"`
	WorkDir    string `toml:"work_dir"`
	LogDir     string `toml:"log_dir"`
}

// API contains ingress HTTP settings.
type API struct {
	Bind                string `toml:"bind"`
	PublicURL           string `toml:"public_url"`
	MaxUploadMB         int    `toml:"max_upload_mb"`
	TrustProxyHeaders   bool   `toml:"trust_proxy_headers"`
	ReadTimeoutSeconds  int    `toml:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `toml:"write_timeout_seconds"`
}

// RateLimit contains the per-client submission window.
type RateLimit struct {
	Enabled       bool `toml:"enabled"`
	Requests      int  `toml:"requests"`
	WindowSeconds int  `toml:"window_seconds"`
}

// State selects the shared state database (status snapshots, rate-limit
// counters, local message queue, local summary records).
type State struct {
	Driver           string `toml:"driver"`
	DSN              string `toml:"dsn"`
	StatusTTLSeconds int    `toml:"status_ttl_seconds"`
}

// Workflow contains worker pool timing.
type Workflow struct {
	Workers                 int  `toml:"workers"`
	QueuePollInterval       int  `toml:"queue_poll_interval"`
	HeartbeatInterval       int  `toml:"heartbeat_interval"`
	HeartbeatTimeout        int  `toml:"heartbeat_timeout"`
	RejectUnorderedSegments bool `toml:"reject_unordered_segments"`
	KeepWorkspace           bool `toml:"keep_workspace"`
}

// Media contains ffmpeg settings shared by extraction, rendering, and muxing.
type Media struct {
	FFmpegBinary          string `toml:"ffmpeg_binary"`
	FFprobeBinary         string `toml:"ffprobe_binary"`
	AudioSampleRate       int    `toml:"audio_sample_rate"`
	VideoCodec            string `toml:"video_codec"`
	CommandTimeoutSeconds int    `toml:"command_timeout_seconds"`
}

// Transcription configures the speech-to-text engine.
type Transcription struct {
	Engine         string `toml:"engine"`
	Binary         string `toml:"binary"`
	Model          string `toml:"model"`
	Language       string `toml:"language"`
	Device         string `toml:"device"`
	ComputeType    string `toml:"compute_type"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Captions configures burned-in caption layout.
type Captions struct {
	FontScales     []float64 `toml:"font_scales"`
	WordSpacing    int       `toml:"word_spacing"`
	BottomMargin   int       `toml:"bottom_margin"`
	BoxPadding     int       `toml:"box_padding"`
	TextColor      string    `toml:"text_color"`
	HighlightColor string    `toml:"highlight_color"`
	BoxColor       string    `toml:"box_color"`
}

// Storage selects the artifact object store.
type Storage struct {
	Backend  string `toml:"backend"`
	Root     string `toml:"root"`
	Bucket   string `toml:"bucket"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// Messaging selects the downstream queue that hands text artifacts to the
// summary consumer.
type Messaging struct {
	Backend                  string `toml:"backend"`
	QueueName                string `toml:"queue_name"`
	QueueURL                 string `toml:"queue_url"`
	Region                   string `toml:"region"`
	BatchSize                int    `toml:"batch_size"`
	WaitSeconds              int    `toml:"wait_seconds"`
	VisibilityTimeoutSeconds int    `toml:"visibility_timeout_seconds"`
}

// Summary selects where summary records live.
type Summary struct {
	Backend   string `toml:"backend"`
	TableName string `toml:"table_name"`
	Region    string `toml:"region"`
}

// LLM contains OpenRouter connection settings for the summarizer.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
	SummaryReady   bool   `toml:"summary_ready"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for TranscriBelt.
//
// Configuration sections by subsystem:
//   - Paths: state, staging, work, and log directories
//   - API: ingress bind address and upload limits
//   - RateLimit: per-client submission window
//   - State: shared state database driver and DSN
//   - Workflow: worker count and heartbeat timing
//   - Media, Transcription, Captions: pipeline engines
//   - Storage, Messaging, Summary: artifact publication and the downstream consumer
//   - LLM: summarizer connection
//   - Notifications, Logging
type Config struct {
	Paths         Paths         `toml:"paths"`
	API           API           `toml:"api"`
	RateLimit     RateLimit     `toml:"rate_limit"`
	State         State         `toml:"state"`
	Workflow      Workflow      `toml:"workflow"`
	Media         Media         `toml:"media"`
	Transcription Transcription `toml:"transcription"`
	Captions      Captions      `toml:"captions"`
	Storage       Storage       `toml:"storage"`
	Messaging     Messaging     `toml:"messaging"`
	Summary       Summary       `toml:"summary"`
	LLM           LLM           `toml:"llm"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and environment fallbacks applied.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file).DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return nil, "", false, fmt.Errorf("parse config: %s", strict.String())
			}
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.StagingDir, c.Paths.WorkDir, c.Paths.LogDir}
	if c.Storage.Backend == StorageFilesystem {
		dirs = append(dirs, c.Storage.Root)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath is the job queue database file inside the state directory.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// StateDSN returns the shared state database DSN, defaulting to a sqlite
// file inside the state directory.
func (c *Config) StateDSN() string {
	if dsn := strings.TrimSpace(c.State.DSN); dsn != "" {
		return dsn
	}
	return filepath.Join(c.Paths.StateDir, "state.db")
}

// LockPath is the flock file the worker role holds while draining the queue.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "worker.lock")
}

// DaemonLogFile is the log file transcribeltd writes inside paths.log_dir.
const DaemonLogFile = "transcribeltd.log"

// DaemonLogPath is where the daemon's log lands.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, DaemonLogFile)
}

// JobStagingDir is where an upload for jobID is written before enqueue.
func (c *Config) JobStagingDir(jobID string) string {
	return filepath.Join(c.Paths.StagingDir, jobID)
}

// JobWorkDir is the scratch directory a worker uses while running jobID.
func (c *Config) JobWorkDir(jobID string) string {
	return filepath.Join(c.Paths.WorkDir, jobID)
}

// MaxUploadBytes returns the ingress body limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.API.MaxUploadMB) << 20
}

// StatusTTL returns how long status snapshots stay readable.
func (c *Config) StatusTTL() time.Duration {
	return time.Duration(c.State.StatusTTLSeconds) * time.Second
}

// RateLimitWindow returns the fixed window length.
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}

// HeartbeatInterval returns how often running jobs refresh their heartbeat.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Workflow.HeartbeatInterval) * time.Second
}

// HeartbeatTimeout returns the age after which a running job is considered lost.
func (c *Config) HeartbeatTimeout() time.Duration {
	return time.Duration(c.Workflow.HeartbeatTimeout) * time.Second
}

// PollInterval returns the idle delay between queue claims.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.QueuePollInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	if redacted.LLM.APIKey != "" {
		redacted.LLM.APIKey = "********"
	}
	if redacted.State.DSN != "" && redacted.State.Driver == StateDriverPostgres {
		redacted.State.DSN = "********"
	}
	return toml.Marshal(redacted)
}
