package deps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	return path
}

func TestResolveReportsPathAndVersion(t *testing.T) {
	dir := t.TempDir()
	versioned := writeScript(t, dir, "versioned", "echo\necho 'ffmpeg version 7.1 Copyright'\n")
	silent := writeScript(t, dir, "silent", "exit 0\n")

	results := Resolve(context.Background(), []Binary{
		{Name: "Versioned", Command: versioned, VersionFlag: "-version"},
		{Name: "Silent", Command: silent, VersionFlag: "-version"},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Empty", Command: "  "},
	})
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if !results[0].Available || results[0].Path != versioned || results[0].Version != "ffmpeg version 7.1 Copyright" {
		t.Fatalf("unexpected versioned status %#v", results[0])
	}
	if !results[1].Available || results[1].Version != "" {
		t.Fatalf("silent binary should be available without version: %#v", results[1])
	}
	if results[2].Available || results[2].Detail == "" || results[2].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected missing status %#v", results[2])
	}
	if results[3].Available || results[3].Detail != "command not configured" {
		t.Fatalf("unexpected empty-command status %#v", results[3])
	}
}

func TestPipelineFollowsConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Media.FFmpegBinary = "/opt/ffmpeg"
	bins := Pipeline(&cfg)
	if len(bins) != 3 {
		t.Fatalf("expected ffmpeg, ffprobe, whisperx; got %#v", bins)
	}
	if bins[0].Command != "/opt/ffmpeg" || bins[2].Name != "WhisperX" {
		t.Fatalf("unexpected binaries %#v", bins)
	}
	if Lookup("Nope", "clearly-not-present-binary").Available {
		t.Fatal("expected missing binary")
	}
}
