// Package transcription defines the speech-to-text engine boundary and ships
// a whisperx CLI adapter.
package transcription
