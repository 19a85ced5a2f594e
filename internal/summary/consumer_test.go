package summary_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
	"github.com/MayankTamakuwala/TranscriBelt/internal/statedb"
	"github.com/MayankTamakuwala/TranscriBelt/internal/summary"
	"github.com/MayankTamakuwala/TranscriBelt/internal/testsupport"
)

type fakeSummarizer struct {
	calls  int
	err    error
	panics bool
	failOn string
}

func (f *fakeSummarizer) Summarize(_ context.Context, text string) (string, error) {
	f.calls++
	if f.panics {
		panic("model exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return "", errors.New("upstream 503")
	}
	return "summary of: " + text, nil
}

type consumerEnv struct {
	db         *statedb.DB
	objects    *objectstore.Filesystem
	records    *summary.SQLStore
	summarizer *fakeSummarizer
	consumer   *summary.Consumer
}

func newConsumerEnv(t *testing.T) *consumerEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenStateDB(t, cfg)
	objects, err := objectstore.NewFilesystem(cfg.Storage.Root)
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	env := &consumerEnv{
		db:         db,
		objects:    objects,
		records:    summary.NewSQLStore(db),
		summarizer: &fakeSummarizer{},
	}
	env.consumer = summary.NewConsumer(objects, env.summarizer, env.records, nil)
	return env
}

func (e *consumerEnv) putText(t *testing.T, key, text string) {
	t.Helper()
	if _, err := e.objects.Put(context.Background(), key, strings.NewReader(text), int64(len(text)), "text/plain"); err != nil {
		t.Fatalf("Put %s: %v", key, err)
	}
}

func delivery(t *testing.T, id string, msg messaging.Message) messaging.Delivery {
	t.Helper()
	body, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return messaging.Delivery{ID: id, Receipt: "r-" + id, Body: body, ReceiveCount: 1}
}

func TestHandleBatchStoresSummaryForCompleteMessage(t *testing.T) {
	env := newConsumerEnv(t)
	env.putText(t, "job-1/captions_job-1.srt", "hello world")

	d := delivery(t, "m1", messaging.Message{Bucket: env.objects.Bucket(), Key: "job-1/captions_job-1.srt", URL: "file:///x", FolderID: "job-1"})
	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{d})

	if result.StatusCode != 200 || result.Body != "Processing complete" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Processed != 1 || len(result.Abandoned) != 0 {
		t.Fatalf("expected one processed message, got %+v", result)
	}
	rec, err := env.records.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Summary != "summary of: hello world" || len(rec.Comments) != 0 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestHandleBatchSkipsMessageWithoutFolderID(t *testing.T) {
	env := newConsumerEnv(t)
	d := messaging.Delivery{ID: "m1", Receipt: "r1", Body: `{"bucket":"b","key":"k","url":"u"}`}

	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{d})
	if result.StatusCode != 200 || result.Skipped != 1 || len(result.Abandoned) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
	if env.summarizer.calls != 0 {
		t.Fatal("summarizer should not run for incomplete messages")
	}
}

func TestHandleBatchAbandonsOnSummarizerFailure(t *testing.T) {
	env := newConsumerEnv(t)
	env.putText(t, "job-2/captions_job-2.srt", "text")
	env.summarizer.err = services.Wrap(services.ErrTransient, "llm", "complete", "upstream unavailable", nil)

	d := delivery(t, "m2", messaging.Message{Bucket: env.objects.Bucket(), Key: "job-2/captions_job-2.srt", URL: "u", FolderID: "job-2"})
	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{d})

	if result.StatusCode != 200 || len(result.Abandoned) != 1 || result.Abandoned[0] != "r-m2" {
		t.Fatalf("expected abandoned receipt, got %+v", result)
	}
	if _, err := env.records.Get(context.Background(), "job-2"); !errors.Is(err, summary.ErrRecordNotFound) {
		t.Fatalf("expected no record, got %v", err)
	}
}

func TestHandleBatchRecoversPanicsPerMessage(t *testing.T) {
	env := newConsumerEnv(t)
	env.putText(t, "job-3/captions_job-3.srt", "text")
	env.summarizer.panics = true

	bad := delivery(t, "m3", messaging.Message{Bucket: env.objects.Bucket(), Key: "job-3/captions_job-3.srt", URL: "u", FolderID: "job-3"})
	skipped := messaging.Delivery{ID: "m4", Receipt: "r4", Body: "{"}
	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{bad, skipped})

	if len(result.Abandoned) != 1 || result.Skipped != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestHandleBatchSkipsMissingObject(t *testing.T) {
	env := newConsumerEnv(t)
	d := delivery(t, "m5", messaging.Message{Bucket: env.objects.Bucket(), Key: "gone/captions.srt", URL: "u", FolderID: "gone"})

	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{d})
	if result.Skipped != 1 || env.summarizer.calls != 0 {
		t.Fatalf("unexpected result %+v (calls=%d)", result, env.summarizer.calls)
	}
}

func TestHandleBatchSkipsMessageForOtherBucket(t *testing.T) {
	env := newConsumerEnv(t)
	env.putText(t, "job-6/captions_job-6.srt", "text")

	d := delivery(t, "m6", messaging.Message{Bucket: "someone-elses-bucket", Key: "job-6/captions_job-6.srt", URL: "u", FolderID: "job-6"})
	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{d})

	if result.Skipped != 1 || len(result.Abandoned) != 0 || env.summarizer.calls != 0 {
		t.Fatalf("unexpected result %+v (calls=%d)", result, env.summarizer.calls)
	}
	if _, err := env.records.Get(context.Background(), "job-6"); !errors.Is(err, summary.ErrRecordNotFound) {
		t.Fatalf("expected no record, got %v", err)
	}
}

func TestHandleBatchSkipsOversizedTranscript(t *testing.T) {
	env := newConsumerEnv(t)
	env.putText(t, "job-7/captions_job-7.srt", strings.Repeat("a", 4<<20+1))

	d := delivery(t, "m7", messaging.Message{Bucket: env.objects.Bucket(), Key: "job-7/captions_job-7.srt", URL: "u", FolderID: "job-7"})
	result := env.consumer.HandleBatch(context.Background(), []messaging.Delivery{d})

	if result.Skipped != 1 || env.summarizer.calls != 0 {
		t.Fatalf("unexpected result %+v (calls=%d)", result, env.summarizer.calls)
	}
}

func TestPollerKeepsAbandonedMessages(t *testing.T) {
	env := newConsumerEnv(t)
	env.putText(t, "ok/captions_ok.srt", "fine transcript")
	env.putText(t, "bad/captions_bad.srt", "flaky transcript")
	env.summarizer.failOn = "flaky"

	q := messaging.NewLocal(env.db, "summaries", time.Minute)
	ctx := context.Background()
	for _, folder := range []string{"ok", "bad"} {
		msg := messaging.Message{Bucket: env.objects.Bucket(), Key: folder + "/captions_" + folder + ".srt", URL: "u", FolderID: folder}
		if err := q.Send(ctx, msg); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	poller := summary.NewPoller(q, env.consumer, 10, 0, nil)
	n, err := poller.PollOnce(ctx)
	if err != nil || n != 2 {
		t.Fatalf("PollOnce = %d, %v", n, err)
	}
	depth, err := q.Depth(ctx)
	if err != nil {
		t.Fatalf("Depth: %v", err)
	}
	if depth != 1 {
		t.Fatalf("expected abandoned message to stay queued, depth=%d", depth)
	}
	if _, err := env.records.Get(ctx, "ok"); err != nil {
		t.Fatalf("expected summary for ok: %v", err)
	}
}
