package api

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// SniffLen is how much of an upload is inspected for a container signature.
const SniffLen = 512

var (
	// ErrUnsupportedMedia rejects uploads that are not video.
	ErrUnsupportedMedia = fmt.Errorf("%w: unsupported media type", services.ErrValidation)
	// ErrTooLarge rejects uploads over the configured size cap.
	ErrTooLarge = fmt.Errorf("%w: upload exceeds size limit", services.ErrValidation)
	// ErrEmptyUpload rejects a request with no body.
	ErrEmptyUpload = fmt.Errorf("%w: empty upload", services.ErrValidation)
)

// Container describes a recognised video container.
type Container struct {
	Extension   string
	ContentType string
}

// CheckDeclaredType accepts video/* and application/octet-stream. An absent
// type is treated as octet-stream and left to sniffing.
func CheckDeclaredType(declared string) error {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return nil
	}
	mediaType, _, err := mime.ParseMediaType(declared)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedMedia, declared)
	}
	if strings.HasPrefix(mediaType, "video/") || mediaType == "application/octet-stream" {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedMedia, mediaType)
}

// SniffVideo inspects the first bytes of an upload and reports its container.
func SniffVideo(head []byte) (Container, error) {
	if len(head) == 0 {
		return Container{}, ErrEmptyUpload
	}
	switch {
	case len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")):
		if bytes.HasPrefix(head[8:], []byte("qt")) {
			return Container{Extension: ".mov", ContentType: "video/quicktime"}, nil
		}
		return Container{Extension: ".mp4", ContentType: "video/mp4"}, nil
	case bytes.HasPrefix(head, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		if bytes.Contains(head, []byte("webm")) {
			return Container{Extension: ".webm", ContentType: "video/webm"}, nil
		}
		return Container{Extension: ".mkv", ContentType: "video/x-matroska"}, nil
	case len(head) >= 12 && bytes.HasPrefix(head, []byte("RIFF")) && bytes.Equal(head[8:12], []byte("AVI ")):
		return Container{Extension: ".avi", ContentType: "video/x-msvideo"}, nil
	case isMPEGTS(head):
		return Container{Extension: ".ts", ContentType: "video/mp2t"}, nil
	}
	detected := http.DetectContentType(head)
	if strings.HasPrefix(detected, "video/") {
		ext := ".bin"
		switch detected {
		case "video/mp4":
			ext = ".mp4"
		case "video/webm":
			ext = ".webm"
		case "video/avi":
			ext = ".avi"
		case "video/mpeg":
			ext = ".mpg"
		}
		return Container{Extension: ext, ContentType: detected}, nil
	}
	return Container{}, fmt.Errorf("%w: detected %s", ErrUnsupportedMedia, detected)
}

// isMPEGTS checks for the 0x47 sync byte at the start of consecutive
// 188-byte packets.
func isMPEGTS(head []byte) bool {
	const packet = 188
	if len(head) <= packet*2 {
		return false
	}
	return head[0] == 0x47 && head[packet] == 0x47 && head[packet*2] == 0x47
}
