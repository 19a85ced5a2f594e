package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// mp4Prefix is an ISO base media ftyp box, enough for the upload sniffer to
// classify the bytes as MP4.
var mp4Prefix = []byte("\x00\x00\x00\x18ftypisom\x00\x00\x02\x00isommp41")

// MP4Bytes returns size bytes that sniff as an MP4 container. Sizes shorter
// than the ftyp box are rounded up to it.
func MP4Bytes(size int) []byte {
	if size < len(mp4Prefix) {
		size = len(mp4Prefix)
	}
	out := bytes.Repeat([]byte{0x42}, size)
	copy(out, mp4Prefix)
	return out
}

// WriteFile writes size filler bytes to path, creating parent directories.
// A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()
	writeBytes(t, path, bytes.Repeat([]byte{0x42}, int(max(size, 1))))
}

// WriteVideo is WriteFile with an MP4 signature at the front.
func WriteVideo(t testing.TB, path string, size int) {
	t.Helper()
	writeBytes(t, path, MP4Bytes(size))
}

func writeBytes(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
