package artifacts_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/artifacts"
	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

type recordingSender struct {
	sent []messaging.Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg messaging.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func setup(t *testing.T, sender messaging.Sender) (*artifacts.Publisher, *queue.Store, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	job := testsupport.NewJob(t, store, cfg, "job-1")
	objects, err := objectstore.NewFilesystem(cfg.Storage.Root)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return artifacts.New(objects, sender, store, nil), store, job.ID
}

func TestPublishTextSendsExactlyOneMessage(t *testing.T) {
	sender := &recordingSender{}
	pub, store, jobID := setup(t, sender)
	srt := filepath.Join(t.TempDir(), "captions_job-1.srt")
	testsupport.WriteFile(t, srt, 64)

	for i := 0; i < 2; i++ {
		artifact, err := pub.Publish(context.Background(), jobID, srt, queue.ArtifactText)
		if err != nil {
			t.Fatalf("Publish #%d: %v", i+1, err)
		}
		if artifact.Key != "job-1/captions_job-1.srt" {
			t.Fatalf("unexpected key %q", artifact.Key)
		}
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.FolderID != jobID || msg.Key != "job-1/captions_job-1.srt" || msg.Bucket == "" || msg.URL == "" {
		t.Fatalf("unexpected message %+v", msg)
	}

	recorded, err := store.ArtifactByName(context.Background(), "captions_job-1.srt")
	if err != nil || recorded == nil {
		t.Fatalf("artifact not recorded: %v", err)
	}
}

func TestPublishVideoDoesNotNotify(t *testing.T) {
	sender := &recordingSender{}
	pub, _, jobID := setup(t, sender)
	video := filepath.Join(t.TempDir(), "captioned_abc.mp4")
	testsupport.WriteFile(t, video, 256)

	artifact, err := pub.Publish(context.Background(), jobID, video, queue.ArtifactVideo)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if artifact.ContentType != "video/mp4" || artifact.Size != 256 {
		t.Fatalf("unexpected artifact %+v", artifact)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("video must not notify, got %d messages", len(sender.sent))
	}
}

func TestPublishSendFailureIsTransient(t *testing.T) {
	sender := &recordingSender{err: errors.New("queue unavailable")}
	pub, _, jobID := setup(t, sender)
	srt := filepath.Join(t.TempDir(), "captions_job-1.srt")
	testsupport.WriteFile(t, srt, 8)

	_, err := pub.Publish(context.Background(), jobID, srt, queue.ArtifactText)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	if got := artifacts.DownloadURL("", "a.mp4"); got != "/download/a.mp4" {
		t.Fatalf("relative url = %q", got)
	}
	if got := artifacts.DownloadURL("https://captions.example.com/", "a.mp4"); got != "https://captions.example.com/download/a.mp4" {
		t.Fatalf("absolute url = %q", got)
	}
}
