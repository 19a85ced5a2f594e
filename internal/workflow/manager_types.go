package workflow

import (
	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

// Job outcomes reported to metrics.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeLost      = "lost"
)

// checkpointMessages are the progress messages stored with each checkpoint.
var checkpointMessages = map[queue.Stage]string{
	queue.StageAudioExtracted: "Audio extracted",
	queue.StageTranscribed:    "Transcription finished",
	queue.StageSubtitlesBuilt: "Subtitles built",
}
