package transcript

import (
	"encoding/json"
	"fmt"
	"io"
)

type whisperXWord struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
}

type whisperXSegment struct {
	Text  string         `json:"text"`
	Start float64        `json:"start"`
	End   float64        `json:"end"`
	Words []whisperXWord `json:"words"`
}

type whisperXPayload struct {
	Language string            `json:"language"`
	Segments []whisperXSegment `json:"segments"`
}

// ParseWhisperX decodes the JSON document written by `whisperx --output_format json`.
// Alignment leaves some tokens (digits, symbols) without timing; those inherit
// the end of the previous word, or the segment start when they lead.
func ParseWhisperX(r io.Reader) (Transcript, error) {
	var payload whisperXPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return Transcript{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	out := Transcript{Language: payload.Language, Segments: make([]Segment, 0, len(payload.Segments))}
	for _, raw := range payload.Segments {
		seg := Segment{Start: raw.Start, End: raw.End, Text: raw.Text}
		cursor := raw.Start
		for _, w := range raw.Words {
			word := Word{Text: w.Word, Start: cursor, End: cursor}
			if w.Start != nil {
				word.Start = *w.Start
			}
			if w.End != nil {
				word.End = *w.End
			}
			if word.End < word.Start {
				word.End = word.Start
			}
			cursor = word.End
			seg.Words = append(seg.Words, word)
		}
		out.Segments = append(out.Segments, seg)
	}
	return out, nil
}
