package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Word is a single timed token.
type Word struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Segment is a contiguous span of speech.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Contains reports whether t falls inside [Start, End).
func (s Segment) Contains(t float64) bool {
	return s.Start <= t && t < s.End
}

// Contains reports whether t falls inside [Start, End).
func (w Word) Contains(t float64) bool {
	return w.Start <= t && t < w.End
}

// Transcript is the ordered list of segments produced by a speech engine.
type Transcript struct {
	Language string    `json:"language,omitempty"`
	Segments []Segment `json:"segments"`
}

var (
	// ErrInvalidTiming marks a segment or word with negative or inverted bounds.
	ErrInvalidTiming = errors.New("invalid timing")
	// ErrUnordered marks segments that overlap or are out of order.
	ErrUnordered = errors.New("segments overlap or are out of order")
)

// Empty reports whether the transcript has no segments.
func (t Transcript) Empty() bool {
	return len(t.Segments) == 0
}

// Text joins segment text with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, seg := range t.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// Normalize NFC-normalizes and trims all text in place. Words that normalize
// to nothing are dropped.
func (t *Transcript) Normalize() {
	for i := range t.Segments {
		seg := &t.Segments[i]
		seg.Text = strings.TrimSpace(norm.NFC.String(seg.Text))
		words := seg.Words[:0]
		for _, w := range seg.Words {
			w.Text = strings.TrimSpace(norm.NFC.String(w.Text))
			if w.Text == "" {
				continue
			}
			words = append(words, w)
		}
		seg.Words = words
	}
}

// Validate checks timing bounds. When strict is set, segments must also be
// sorted by start and must not overlap.
func (t Transcript) Validate(strict bool) error {
	prevEnd := math.Inf(-1)
	for i, seg := range t.Segments {
		if !validSpan(seg.Start, seg.End) {
			return fmt.Errorf("segment %d [%.3f, %.3f]: %w", i, seg.Start, seg.End, ErrInvalidTiming)
		}
		for j, w := range seg.Words {
			if !validSpan(w.Start, w.End) {
				return fmt.Errorf("segment %d word %d [%.3f, %.3f]: %w", i, j, w.Start, w.End, ErrInvalidTiming)
			}
		}
		if strict && seg.Start < prevEnd {
			return fmt.Errorf("segment %d starts at %.3f before previous end %.3f: %w", i, seg.Start, prevEnd, ErrUnordered)
		}
		prevEnd = seg.End
	}
	return nil
}

func validSpan(start, end float64) bool {
	if !finite(start) || !finite(end) {
		return false
	}
	return start >= 0 && end >= start
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Save writes the transcript as JSON.
func (t Transcript) Save(path string) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}

// Load reads a transcript written by Save.
func Load(path string) (Transcript, error) {
	var t Transcript
	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read transcript: %w", err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("decode transcript: %w", err)
	}
	return t, nil
}
