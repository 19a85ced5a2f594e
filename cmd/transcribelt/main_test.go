package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/api"
	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/daemon"
	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t)
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	ctx := context.Background()
	d, err := daemon.New(ctx, cfg, daemon.Roles{daemon.RoleIngress: true}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(ctx); err != nil {
		d.Close()
		t.Fatalf("daemon Start: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	return &cliTestEnv{cfg: cfg, configPath: configPath, server: "http://" + d.Addr()}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"--config", e.configPath, "--server", e.server, "--env-file", ""}, args...)
	return runCLI(t, full...)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeVideo(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "clip.mp4")
	testsupport.WriteVideo(t, path, 4096)
	return path
}

func TestSubmitThenStatusAndJobs(t *testing.T) {
	env := setupCLITestEnv(t)
	video := writeVideo(t, t.TempDir())

	out, err := env.run(t, "--json", "submit", video)
	if err != nil {
		t.Fatalf("submit: %v\n%s", err, out)
	}
	var submitted api.SubmitResponse
	if err := json.Unmarshal([]byte(out), &submitted); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if submitted.JobID == "" || submitted.Message != api.AcceptedMessage {
		t.Fatalf("unexpected submit response: %+v", submitted)
	}

	out, err = env.run(t, "--json", "status", submitted.JobID)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	var st api.JobStatus
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Status != api.StatusQueued {
		t.Fatalf("expected queued, got %+v", st)
	}

	out, err = env.run(t, "jobs", "list")
	if err != nil {
		t.Fatalf("jobs list: %v\n%s", err, out)
	}
	if !strings.Contains(out, submitted.JobID) {
		t.Fatalf("expected job in list:\n%s", out)
	}

	out, err = env.run(t, "jobs", "list", "--stage", "completed")
	if err != nil {
		t.Fatalf("jobs list --stage: %v", err)
	}
	if !strings.Contains(out, "No jobs") {
		t.Fatalf("expected no completed jobs:\n%s", out)
	}

	out, err = env.run(t, "jobs", "show", submitted.JobID)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	if !strings.Contains(out, submitted.JobID) {
		t.Fatalf("expected job id in show output:\n%s", out)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)
	_, err := env.run(t, "status", "missing-job")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected 404 error, got %v", err)
	}
}

func TestSubmitRejectsNonVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(t.TempDir(), "notes.mp4")
	if err := os.WriteFile(path, []byte("plain text, not a container"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	_, err := env.run(t, "submit", path)
	if err == nil || !strings.Contains(err.Error(), "415") {
		t.Fatalf("expected 415 error, got %v", err)
	}
}

func TestJobsHealthAndPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "jobs", "health")
	if err != nil {
		t.Fatalf("jobs health: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Integrity check: yes") {
		t.Fatalf("expected integrity ok:\n%s", out)
	}

	out, err = env.run(t, "jobs", "prune", "--older-than", "1h")
	if err != nil {
		t.Fatalf("jobs prune: %v", err)
	}
	if !strings.Contains(out, "Removed 0") {
		t.Fatalf("unexpected prune output: %s", out)
	}
}

func TestCommentsLifecycle(t *testing.T) {
	env := setupCLITestEnv(t)
	records := summary.NewSQLStore(testsupport.MustOpenStateDB(t, env.cfg))
	if err := records.PutSummary(context.Background(), "job-9", "Plain summary"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}

	out, err := env.run(t, "summary", "job-9", "--raw")
	if err != nil || !strings.Contains(out, "Plain summary") {
		t.Fatalf("summary: %v\n%s", err, out)
	}

	out, err = env.run(t, "--json", "comments", "add", "job-9", "check this", "--quote", "Plain", "--end", "5")
	if err != nil {
		t.Fatalf("comments add: %v\n%s", err, out)
	}
	var created summary.Comment
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		t.Fatalf("decode comment: %v", err)
	}
	if created.RefText == nil || created.RefText.Text != "Plain" {
		t.Fatalf("expected quoted text, got %+v", created)
	}

	if out, err = env.run(t, "comments", "edit", "job-9", created.CommentID, "checked"); err != nil {
		t.Fatalf("comments edit: %v\n%s", err, out)
	}
	out, err = env.run(t, "comments", "list", "job-9")
	if err != nil || !strings.Contains(out, "checked (edited)") {
		t.Fatalf("comments list: %v\n%s", err, out)
	}

	out, err = env.run(t, "comments", "delete", "job-9", created.CommentID)
	if err != nil || !strings.Contains(out, "0 remaining") {
		t.Fatalf("comments delete: %v\n%s", err, out)
	}
}

func TestHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out, "Roles:       ingress") {
		t.Fatalf("unexpected health output:\n%s", out)
	}
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	out, err := runCLI(t, "--env-file", "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected sample config: %v", err)
	}
	if _, err := runCLI(t, "--env-file", "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal without --overwrite")
	}
	if _, err := runCLI(t, "--env-file", "", "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigShowRedactsSecrets(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "sk-secret-value")
	out, err := runCLI(t, "--env-file", "", "--config", env.configPath, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "sk-secret-value") {
		t.Fatalf("api key leaked:\n%s", out)
	}
}

func TestTestNotifyWithoutTopic(t *testing.T) {
	env := setupCLITestEnv(t)
	t.Setenv("TRANSCRIBELT_NTFY_TOPIC", "")
	out, err := runCLI(t, "--env-file", "", "--config", env.configPath, "test-notify")
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	if !strings.Contains(out, "Notifications disabled") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestLogsFiltersByJob(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "daemon.log")
	content := `{"msg":"job submitted","job_id":"job-a"}` + "\n" +
		`{"msg":"job submitted","job_id":"job-b"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	out, err := runCLI(t, "--env-file", "", "logs", "--path", path, "--job", "job-b")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "job-a") || !strings.Contains(out, "job-b") {
		t.Fatalf("unexpected log output:\n%s", out)
	}
}

func TestJobsSweepDryRun(t *testing.T) {
	env := setupCLITestEnv(t)
	orphan := filepath.Join(env.cfg.Paths.StagingDir, "job-orphan")
	testsupport.WriteFile(t, filepath.Join(orphan, "input.mp4"), 128)

	out, err := env.run(t, "jobs", "sweep", "--dry-run", "--older-than", "0s")
	if err != nil {
		t.Fatalf("jobs sweep: %v\n%s", err, out)
	}
	if !strings.Contains(out, "job-orphan") || !strings.Contains(out, "Would remove 1") {
		t.Fatalf("unexpected sweep output:\n%s", out)
	}
	if _, err := os.Stat(orphan); err != nil {
		t.Fatalf("dry run removed the orphan: %v", err)
	}
}
