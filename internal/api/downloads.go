package api

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/objectstore"
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// ErrArtifactNotFound is returned for an unknown download name.
var ErrArtifactNotFound = fmt.Errorf("%w: file not found", services.ErrNotFound)

// ArtifactResolver maps download names to stored objects. *queue.Store
// satisfies it.
type ArtifactResolver interface {
	ArtifactByName(ctx context.Context, name string) (*queue.Artifact, error)
}

// Download is an open artifact stream. The caller closes Body.
type Download struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.ReadCloser
}

// DownloadService streams published artifacts.
type DownloadService struct {
	artifacts ArtifactResolver
	objects   objectstore.Store
}

// NewDownloadService builds a DownloadService.
func NewDownloadService(artifacts ArtifactResolver, objects objectstore.Store) *DownloadService {
	return &DownloadService{artifacts: artifacts, objects: objects}
}

// Open resolves name and opens the stored object.
func (s *DownloadService) Open(ctx context.Context, name string) (Download, error) {
	name = strings.TrimSpace(name)
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return Download{}, ErrArtifactNotFound
	}
	artifact, err := s.artifacts.ArtifactByName(ctx, name)
	if err != nil {
		return Download{}, services.Wrap(services.ErrTransient, "download", "lookup", "Could not resolve file", err)
	}
	if artifact == nil {
		return Download{}, ErrArtifactNotFound
	}
	body, obj, err := s.objects.Get(ctx, artifact.Key)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			return Download{}, ErrArtifactNotFound
		}
		return Download{}, services.Wrap(services.ErrTransient, "download", "open", "Could not open file", err)
	}
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = obj.ContentType
	}
	if contentType == "" {
		contentType = objectstore.ContentTypeFor(name)
	}
	size := obj.Size
	if size <= 0 {
		size = artifact.Size
	}
	return Download{Name: name, ContentType: contentType, Size: size, Body: body}, nil
}
