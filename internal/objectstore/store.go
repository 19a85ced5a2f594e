package objectstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// ErrNoObject is returned when a key does not exist.
var ErrNoObject = fmt.Errorf("%w: no such object", services.ErrNotFound)

// Object describes a stored file.
type Object struct {
	Key          string    `json:"path"`
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// Listing is one level of a delimiter-style listing.
type Listing struct {
	Prefix  string   `json:"prefix"`
	Folders []string `json:"folders"`
	Files   []Object `json:"files"`
}

// Store persists artifacts under slash-separated keys.
type Store interface {
	// Put uploads r under key and returns a URL naming the object.
	Put(ctx context.Context, key string, r io.ReadSeeker, size int64, contentType string) (string, error)
	// Get opens key for reading. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, Object, error)
	// List returns the immediate children of prefix.
	List(ctx context.Context, prefix string) (Listing, error)
	// Bucket names the container objects live in.
	Bucket() string
}

// BucketReader is implemented by stores that can read from a bucket other
// than their own, such as one named in a publish message.
type BucketReader interface {
	GetFrom(ctx context.Context, bucket, key string) (io.ReadCloser, Object, error)
}

// Open builds the store selected by cfg.
func Open(cfg config.Storage) (Store, error) {
	switch cfg.Backend {
	case config.StorageFilesystem, "":
		return NewFilesystem(cfg.Root)
	case config.StorageS3:
		awsCfg := aws.NewConfig()
		if cfg.Region != "" {
			awsCfg = awsCfg.WithRegion(cfg.Region)
		}
		if cfg.Endpoint != "" {
			awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
		}
		sess, err := session.NewSession(awsCfg)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "storage", "aws session", "Could not create AWS session", err)
		}
		return NewS3(s3.New(sess), cfg.Bucket, cfg.Region, cfg.Endpoint), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "storage", "open", fmt.Sprintf("Unsupported storage backend %q", cfg.Backend), nil)
	}
}

// JoinKey builds a storage key from path elements.
func JoinKey(parts ...string) string {
	return strings.TrimPrefix(path.Join(parts...), "/")
}

var knownTypes = map[string]string{
	".mp4":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".srt":  "application/x-subrip",
	".txt":  "text/plain; charset=utf-8",
	".json": "application/json",
}

// ContentTypeFor guesses a content type from the key's extension. Media
// types are fixed so results do not depend on the host's mime tables.
func ContentTypeFor(key string) string {
	ext := strings.ToLower(path.Ext(key))
	if ct, ok := knownTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func cleanPrefix(prefix string) string {
	prefix = strings.TrimLeft(strings.TrimSpace(prefix), "/")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}
