package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "extract_audio", "ffmpeg", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract_audio", "ffmpeg", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindOfMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"validation", services.Wrap(services.ErrValidation, "ingress", "upload", "bad type", nil), services.KindValidation},
		{"throttle", fmt.Errorf("client: %w", services.ErrThrottled), services.KindThrottle},
		{"configuration inside stage", services.NewStageError("publish", services.Wrap(services.ErrConfiguration, "publish", "s3", "bucket missing", nil)), services.KindConfiguration},
		{"stage", services.NewStageError("transcribe", errors.New("engine crashed")), services.KindStage},
		{"transient", services.Wrap(services.ErrTransient, "publish", "upload", "", errors.New("reset")), services.KindTransient},
		{"unexpected", errors.New("mystery"), services.KindUnexpected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.KindOf(tc.err); got != tc.want {
				t.Fatalf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewStageErrorDoesNotDoubleWrap(t *testing.T) {
	inner := services.NewStageError("mux", errors.New("ffmpeg exit 1"))
	outer := services.NewStageError("publish", inner)
	if outer != inner {
		t.Fatalf("expected existing stage error to be returned unchanged")
	}
	if services.NewStageError("mux", nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestUserMessageStripsMarkers(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "ingress", "sniff", "Unsupported video format", nil)
	msg := services.UserMessage(err)
	if strings.Contains(msg, services.ErrValidation.Error()) {
		t.Fatalf("expected marker to be stripped, got %q", msg)
	}
	if !strings.Contains(msg, "Unsupported video format") {
		t.Fatalf("unexpected message %q", msg)
	}
	if services.UserMessage(nil) != "" {
		t.Fatal("expected empty message for nil")
	}
}

func TestUserMessageHidesStageCause(t *testing.T) {
	raw := services.NewStageError("extract_audio", services.Wrap(services.ErrExternalTool, "", "ffmpeg", "exit status 1", nil))
	if msg := services.UserMessage(raw); msg != "extract_audio: processing failed" {
		t.Fatalf("unexpected message %q", msg)
	}

	curated := services.NewStageFailure("extract_audio", "Audio extraction failed", errors.New("stderr: /tmp/x/input.mp4: moov atom not found"))
	if msg := services.UserMessage(curated); msg != "extract_audio: Audio extraction failed" {
		t.Fatalf("unexpected message %q", msg)
	}
	if services.KindOf(curated) != services.KindStage {
		t.Fatalf("unexpected kind %s", services.KindOf(curated))
	}
}

func TestDetailsCarriesStage(t *testing.T) {
	cause := errors.New("no frames")
	details := services.Details(services.NewStageError("render_captions", cause))
	if details.Kind != services.KindStage {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Stage != "render_captions" {
		t.Fatalf("unexpected stage %q", details.Stage)
	}
	if !errors.Is(details.Cause, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if details.Hint == "" {
		t.Fatal("expected hint")
	}
}
