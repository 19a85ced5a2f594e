package queue

// Stage is a job's position in the pipeline state machine.
type Stage string

const (
	StageQueued         Stage = "queued"
	StageAudioExtracted Stage = "audio_extracted"
	StageTranscribed    Stage = "transcribed"
	StageSubtitlesBuilt Stage = "subtitles_built"
	StageCompleted      Stage = "completed"
	StageError          Stage = "error"
)

var allStages = []Stage{
	StageQueued,
	StageAudioExtracted,
	StageTranscribed,
	StageSubtitlesBuilt,
	StageCompleted,
	StageError,
}

// stageProgress pins every stage to its checkpoint value.
var stageProgress = map[Stage]float64{
	StageQueued:         0.0,
	StageAudioExtracted: 0.2,
	StageTranscribed:    0.5,
	StageSubtitlesBuilt: 0.8,
	StageCompleted:      1.0,
	StageError:          1.0,
}

// forward is the happy-path successor of each non-terminal stage.
var forward = map[Stage]Stage{
	StageQueued:         StageAudioExtracted,
	StageAudioExtracted: StageTranscribed,
	StageTranscribed:    StageSubtitlesBuilt,
	StageSubtitlesBuilt: StageCompleted,
}

// Stages returns every known stage in pipeline order.
func Stages() []Stage {
	out := make([]Stage, len(allStages))
	copy(out, allStages)
	return out
}

// ParseStage converts a raw string into a Stage.
func ParseStage(raw string) (Stage, bool) {
	stage := Stage(raw)
	_, ok := stageProgress[stage]
	return stage, ok
}

// Progress returns the checkpoint value for the stage.
func (s Stage) Progress() float64 {
	return stageProgress[s]
}

// IsTerminal reports whether no further transitions are allowed.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageError
}

// NextStage returns the forward successor of s.
func NextStage(s Stage) (Stage, bool) {
	next, ok := forward[s]
	return next, ok
}

// CanTransition reports whether moving a job from one stage to another is
// permitted: one step forward, or to error from any non-terminal stage.
func CanTransition(from, to Stage) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StageError {
		return true
	}
	next, ok := forward[from]
	return ok && next == to
}

// predecessors lists the stages that may transition into to.
func predecessors(to Stage) []Stage {
	var out []Stage
	for _, from := range allStages {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
