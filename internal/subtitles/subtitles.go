// Package subtitles projects a transcript onto SubRip cues.
package subtitles

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/MayankTamakuwala/TranscriBelt/internal/transcript"
)

// Cue is one numbered SubRip entry.
type Cue struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// Build returns one cue per segment, numbered from 1.
func Build(t transcript.Transcript) []Cue {
	cues := make([]Cue, 0, len(t.Segments))
	for i, seg := range t.Segments {
		cues = append(cues, Cue{
			Index: i + 1,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}
	return cues
}

// FormatTimestamp renders seconds as HH:MM:SS,mmm. The value is rounded to
// the microsecond and then truncated to the millisecond, so 10.4996 prints
// as 10,499. Hours keep counting past 99. Negative and non-finite values
// print as zero.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int64(math.Round(seconds*1e6)) / 1000
	ms := total % 1000
	secs := (total / 1000) % 60
	mins := (total / 60000) % 60
	hours := total / 3600000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, mins, secs, ms)
}

// Write encodes cues in SubRip format. No cues writes nothing.
func Write(w io.Writer, cues []Cue) error {
	bw := bufio.NewWriter(w)
	for _, cue := range cues {
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			cue.Index, FormatTimestamp(cue.Start), FormatTimestamp(cue.End), cue.Text); err != nil {
			return fmt.Errorf("write cue %d: %w", cue.Index, err)
		}
	}
	return bw.Flush()
}

// WriteFile writes cues to path, creating or truncating it.
func WriteFile(path string, cues []Cue) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create subtitle file: %w", err)
	}
	if err := Write(f, cues); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync subtitle file: %w", err)
	}
	return f.Close()
}
