package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/logging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/messaging"
	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// Recorder persists artifact rows. *queue.Store satisfies it.
type Recorder interface {
	RecordArtifact(ctx context.Context, artifact queue.Artifact) (*queue.Artifact, bool, error)
}

// Publisher uploads job outputs and announces text artifacts downstream.
//
// Upload and notification are not atomic: an upload that succeeds followed by
// a failed send leaves the object stored with no message. The job then fails
// and the object is orphaned rather than summarized.
type Publisher struct {
	store    objectstore.Store
	sender   messaging.Sender
	recorder Recorder
	logger   *slog.Logger
}

// New builds a Publisher. sender may be nil when downstream messaging is off.
func New(store objectstore.Store, sender messaging.Sender, recorder Recorder, logger *slog.Logger) *Publisher {
	if sender == nil {
		sender = messaging.Discard{}
	}
	return &Publisher{
		store:    store,
		sender:   sender,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "artifacts"),
	}
}

// Publish uploads localPath under {jobID}/{basename}, records it, and for
// text artifacts sends exactly one downstream message. Publishing the same
// job and kind twice uploads again but neither re-records nor re-sends.
func (p *Publisher) Publish(ctx context.Context, jobID, localPath string, kind queue.ArtifactKind) (queue.Artifact, error) {
	if p == nil || p.store == nil {
		return queue.Artifact{}, services.Wrap(services.ErrConfiguration, "publish", "init", "Object store is not configured", nil)
	}
	if strings.TrimSpace(jobID) == "" {
		return queue.Artifact{}, errors.New("publish: job id is required")
	}
	name := filepath.Base(localPath)
	key := objectstore.JoinKey(jobID, name)
	contentType := objectstore.ContentTypeFor(name)

	f, err := os.Open(localPath)
	if err != nil {
		return queue.Artifact{}, fmt.Errorf("publish: open %s: %w", name, err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return queue.Artifact{}, fmt.Errorf("publish: stat %s: %w", name, err)
	}

	url, err := p.store.Put(ctx, key, f, info.Size(), contentType)
	if err != nil {
		if !errors.Is(err, services.ErrConfiguration) && !errors.Is(err, services.ErrTransient) {
			err = services.Wrap(services.ErrTransient, "publish", "upload", "Upload failed", err)
		}
		return queue.Artifact{}, err
	}

	stored, created, err := p.recorder.RecordArtifact(ctx, queue.Artifact{
		JobID:       jobID,
		Kind:        kind,
		Key:         key,
		Name:        name,
		URL:         url,
		Size:        info.Size(),
		ContentType: contentType,
	})
	if err != nil {
		return queue.Artifact{}, services.Wrap(services.ErrTransient, "publish", "record", "Could not record artifact", err)
	}
	p.logger.Info("artifact published",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, "artifact_published"),
		logging.String("kind", string(kind)),
		logging.String("key", key),
		logging.Int64("size_bytes", info.Size()),
		logging.Bool("first_publication", created),
	)
	if kind != queue.ArtifactText || !created {
		return *stored, nil
	}

	msg := messaging.Message{Bucket: p.store.Bucket(), Key: key, URL: url, FolderID: jobID}
	if err := p.sender.Send(ctx, msg); err != nil {
		if !errors.Is(err, services.ErrConfiguration) && !errors.Is(err, services.ErrTransient) {
			err = services.Wrap(services.ErrTransient, "publish", "notify", "Downstream send failed", err)
		}
		return *stored, err
	}
	p.logger.Info("downstream message sent",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, "downstream_sent"),
		logging.String("key", key),
	)
	return *stored, nil
}

// DownloadURL returns the client-facing link for an artifact name. Without a
// public base URL the link is relative to the ingress.
func DownloadURL(publicURL, name string) string {
	path := "/download/" + name
	base := strings.TrimRight(strings.TrimSpace(publicURL), "/")
	if base == "" {
		return path
	}
	return base + path
}
