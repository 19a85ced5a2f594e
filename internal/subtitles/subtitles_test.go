package subtitles_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/MayankTamakuwala/TranscriBelt/internal/subtitles"
	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "00:00:00,000"},
		{10.5, "00:00:10,500"},
		{61.25, "00:01:01,250"},
		{3600 * 101, "101:00:00,000"},
		{-1, "00:00:00,000"},
		{10.4996, "00:00:10,499"},
		{1.001, "00:00:01,001"},
		{59.9999, "00:00:59,999"},
		{math.Inf(1), "00:00:00,000"},
		{math.NaN(), "00:00:00,000"},
	}
	for _, tt := range tests {
		if got := subtitles.FormatTimestamp(tt.in); got != tt.want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteSingleCue(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{{Start: 0, End: 10.5, Text: "  hello world "}}}
	var buf bytes.Buffer
	if err := subtitles.Write(&buf, subtitles.Build(tr)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:10,500\nhello world\n\n"
	if buf.String() != want {
		t.Fatalf("unexpected srt:\n%q\nwant\n%q", buf.String(), want)
	}
}

func TestWriteFileEmptyTranscript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions.srt")
	if err := subtitles.WriteFile(path, subtitles.Build(transcript.Transcript{})); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected empty file, got %d bytes", info.Size())
	}
}

func TestBuildNumbersFromOne(t *testing.T) {
	tr := transcript.Transcript{Segments: []transcript.Segment{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: "b"},
	}}
	cues := subtitles.Build(tr)
	if len(cues) != 2 || cues[0].Index != 1 || cues[1].Index != 2 {
		t.Fatalf("unexpected cues: %+v", cues)
	}
}
