// Package media wraps ffmpeg and ffprobe for the caption pipeline: probing
// inputs, extracting or synthesizing audio, splitting video into PNG frames
// and back, and muxing the captioned video with its original audio.
//
// All process execution goes through Runner so tests can substitute a fake.
package media
