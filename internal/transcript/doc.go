// Package transcript holds the timed text produced by the speech engine and
// the checks applied before subtitles and captions are derived from it.
package transcript
