package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENROUTER_API_KEY", "AWS_REGION", "S3_BUCKET_NAME", "SQS_QUEUE_URL",
		"DYNAMODB_TABLE_NAME", "TRANSCRIBELT_STATE_DSN", "TRANSCRIBELT_NTFY_TOPIC",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "transcribelt", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}

	wantState := filepath.Join(tempHome, ".local", "share", "transcribelt", "state")
	if cfg.Paths.StateDir != wantState {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, wantState)
	}
	if cfg.QueueDBPath() != filepath.Join(wantState, "queue.db") {
		t.Fatalf("unexpected queue db path: %q", cfg.QueueDBPath())
	}
	if cfg.StateDSN() != filepath.Join(wantState, "state.db") {
		t.Fatalf("unexpected state dsn: %q", cfg.StateDSN())
	}
	if cfg.Storage.Root != filepath.Join(tempHome, ".local", "share", "transcribelt", "artifacts") {
		t.Fatalf("unexpected storage root: %q", cfg.Storage.Root)
	}
	if cfg.Summary.TableName != "transcribelt-summaries" {
		t.Fatalf("unexpected default table name: %q", cfg.Summary.TableName)
	}
	if !cfg.Workflow.RejectUnorderedSegments {
		t.Fatal("expected unordered segments to be rejected by default")
	}
	if got := cfg.MaxUploadBytes(); got != 512<<20 {
		t.Fatalf("unexpected upload limit: %d", got)
	}
}

func TestDefaultFontScalesDescendFromLargest(t *testing.T) {
	scales := config.DefaultFontScales()
	if len(scales) != 59 {
		t.Fatalf("expected 59 candidate scales, got %d", len(scales))
	}
	if scales[0] != 5.9 || scales[len(scales)-1] != 0.1 {
		t.Fatalf("unexpected scale bounds: first=%v last=%v", scales[0], scales[len(scales)-1])
	}
	for i := 1; i < len(scales); i++ {
		if scales[i] >= scales[i-1] {
			t.Fatalf("scales not descending at %d: %v >= %v", i, scales[i], scales[i-1])
		}
	}
}

func TestEnvironmentFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENROUTER_API_KEY", " or-key ")
	t.Setenv("AWS_REGION", "us-west-2")
	t.Setenv("S3_BUCKET_NAME", "bucket-a")
	t.Setenv("SQS_QUEUE_URL", "https://sqs.us-west-2.amazonaws.com/1/q")
	t.Setenv("DYNAMODB_TABLE_NAME", "summaries-table")
	t.Setenv("TRANSCRIBELT_NTFY_TOPIC", "https://ntfy.sh/topic")

	path := filepath.Join(t.TempDir(), "config.toml")
	body := "[storage]\nbackend = \"s3\"\n[messaging]\nbackend = \"sqs\"\n[summary]\nbackend = \"dynamodb\"\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config to exist")
	}
	if cfg.LLM.APIKey != "or-key" {
		t.Fatalf("expected trimmed api key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Storage.Bucket != "bucket-a" || cfg.Storage.Region != "us-west-2" {
		t.Fatalf("unexpected storage settings: %+v", cfg.Storage)
	}
	if cfg.Messaging.QueueURL == "" || cfg.Messaging.Region != "us-west-2" {
		t.Fatalf("unexpected messaging settings: %+v", cfg.Messaging)
	}
	if cfg.Summary.TableName != "summaries-table" || cfg.Summary.Region != "us-west-2" {
		t.Fatalf("unexpected summary settings: %+v", cfg.Summary)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/topic" {
		t.Fatalf("unexpected ntfy topic: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"postgres without dsn", func(c *config.Config) { c.State.Driver = "postgres"; c.State.DSN = "" }, "state.dsn"},
		{"unknown storage", func(c *config.Config) { c.Storage.Backend = "ftp" }, "storage.backend"},
		{"heartbeat order", func(c *config.Config) { c.Workflow.HeartbeatTimeout = c.Workflow.HeartbeatInterval }, "heartbeat_timeout"},
		{"batch too large", func(c *config.Config) { c.Messaging.BatchSize = 11 }, "batch_size"},
		{"bad color", func(c *config.Config) { c.Captions.HighlightColor = "cyan" }, "highlight_color"},
		{"zero workers", func(c *config.Config) { c.Workflow.Workers = 0 }, "workflow.workers"},
		{"relative public url", func(c *config.Config) { c.API.PublicURL = "/downloads" }, "api.public_url"},
		{"negative scale", func(c *config.Config) { c.Captions.FontScales = []float64{1, -1} }, "font_scales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Storage.Root = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths]\nlibrary_dir = \"/tmp\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(path); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.API.Bind != "127.0.0.1:8000" {
		t.Fatalf("unexpected bind from sample: %q", cfg.API.Bind)
	}

	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode encoded config: %v", err)
	}
	if decoded.Workflow.Workers != cfg.Workflow.Workers {
		t.Fatalf("workers mismatch after encode: %d vs %d", decoded.Workflow.Workers, cfg.Workflow.Workers)
	}
}

func TestEncodeRedactsSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.LLM.APIKey = "super-secret"
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if strings.Contains(string(encoded), "super-secret") {
		t.Fatal("expected api key to be redacted")
	}
}

func TestEnsureDirectoriesCreatesPaths(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Storage.Root = filepath.Join(base, "artifacts")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories returned error: %v", err)
	}
	for _, dir := range []string{cfg.Paths.StateDir, cfg.Paths.StagingDir, cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Storage.Root} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", dir, err)
		}
	}
}
