package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Filesystem stores objects as files below a root directory.
type Filesystem struct {
	root string
}

// NewFilesystem creates root if needed.
func NewFilesystem(root string) (*Filesystem, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("objectstore: filesystem root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("objectstore: resolve root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("objectstore: create root %q: %w", abs, err)
	}
	return &Filesystem{root: abs}, nil
}

// Bucket returns the root directory.
func (f *Filesystem) Bucket() string {
	return f.root
}

// resolve maps key to a path inside root, rejecting traversal.
func (f *Filesystem) resolve(key string) (string, error) {
	slashed := strings.ReplaceAll(key, "\\", "/")
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", fmt.Errorf("objectstore: invalid key %q", key)
		}
	}
	clean := path.Clean("/" + slashed)
	if clean == "/" {
		return "", fmt.Errorf("objectstore: invalid key %q", key)
	}
	full := filepath.Join(f.root, filepath.FromSlash(clean))
	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("objectstore: key %q escapes root", key)
	}
	return full, nil
}

// Put writes r to a temp file and renames it into place.
func (f *Filesystem) Put(_ context.Context, key string, r io.ReadSeeker, _ int64, _ string) (string, error) {
	full, err := f.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("objectstore: ensure dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("objectstore: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("objectstore: write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("objectstore: sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("objectstore: close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("objectstore: commit %s: %w", key, err)
	}
	return "file://" + filepath.ToSlash(full), nil
}

// Get opens the file stored under key.
func (f *Filesystem) Get(_ context.Context, key string) (io.ReadCloser, Object, error) {
	full, err := f.resolve(key)
	if err != nil {
		return nil, Object{}, err
	}
	file, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, ErrNoObject
		}
		return nil, Object{}, fmt.Errorf("objectstore: open %s: %w", key, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, Object{}, fmt.Errorf("objectstore: stat %s: %w", key, err)
	}
	if info.IsDir() {
		_ = file.Close()
		return nil, Object{}, ErrNoObject
	}
	return file, objectFromInfo(JoinKey(key), info), nil
}

// List reads one directory level under prefix.
func (f *Filesystem) List(_ context.Context, prefix string) (Listing, error) {
	prefix = cleanPrefix(prefix)
	listing := Listing{Prefix: prefix, Folders: []string{}, Files: []Object{}}
	dir := f.root
	if prefix != "" {
		resolved, err := f.resolve(prefix)
		if err != nil {
			return listing, err
		}
		dir = resolved
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return listing, nil
		}
		return listing, fmt.Errorf("objectstore: list %q: %w", prefix, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			listing.Folders = append(listing.Folders, prefix+name+"/")
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		listing.Files = append(listing.Files, objectFromInfo(prefix+name, info))
	}
	sort.Strings(listing.Folders)
	sort.Slice(listing.Files, func(i, j int) bool { return listing.Files[i].Key < listing.Files[j].Key })
	return listing, nil
}

func objectFromInfo(key string, info fs.FileInfo) Object {
	return Object{
		Key:          key,
		Name:         path.Base(key),
		Size:         info.Size(),
		ContentType:  ContentTypeFor(key),
		LastModified: info.ModTime().UTC(),
	}
}
