package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrThrottled     = errors.New("rate limit exceeded")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind buckets errors into the failure classes surfaced to clients and logs.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindThrottle      Kind = "throttle"
	KindStage         Kind = "stage_failure"
	KindConfiguration Kind = "configuration"
	KindTransient     Kind = "transient_io"
	KindNotFound      Kind = "not_found"
	KindUnexpected    Kind = "unexpected"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// StageError marks a failure raised by one pipeline stage. The job carrying it
// becomes terminal. Message is the client-facing text; Err keeps the cause,
// tool output included, for logs.
type StageError struct {
	Stage   string
	Message string
	Err     error
}

// NewStageError wraps err as a failure of the named stage. A nil err yields nil.
func NewStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StageError
	if errors.As(err, &existing) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// NewStageFailure is NewStageError with a client-facing message. Unlike
// NewStageError it returns a non-nil error even when err is nil.
func NewStageFailure(stage, message string, err error) error {
	var existing *StageError
	if errors.As(err, &existing) {
		return err
	}
	return &StageError{Stage: stage, Message: strings.TrimSpace(message), Err: err}
}

func (e *StageError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Stage, msg)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrorKind reports the classification used for status mapping.
func (e *StageError) ErrorKind() string { return string(KindStage) }

// KindOf maps err to the nearest taxonomy bucket. Configuration and validation
// markers win over the stage wrapper so a misconfigured stage is still reported
// as a configuration problem.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrThrottled):
		return KindThrottle
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return KindStage
	}
	if errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrExternalTool) {
		return KindTransient
	}
	return KindUnexpected
}

// ErrorDetails captures the structured fields logged for a failure.
type ErrorDetails struct {
	Kind      Kind
	Stage     string
	Operation string
	Message   string
	Hint      string
	Cause     error
}

// Details extracts structured information from err for logging.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: UserMessage(err)}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		details.Stage = stageErr.Stage
		details.Cause = stageErr.Err
	}
	switch details.Kind {
	case KindConfiguration:
		details.Hint = "check the configuration file and environment"
	case KindTransient:
		details.Hint = "retry later or check network and storage access"
	case KindStage:
		details.Hint = "inspect the stage output and input media"
	case KindValidation:
		details.Hint = "fix the request input"
	default:
		details.Hint = "check logs for details"
	}
	return details
}

// UserMessage returns the human-readable message suitable for status payloads.
// A stage failure yields only its stage and message, never the cause chain.
// Other errors have the sentinel prefixes added by Wrap stripped.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		msg := stageErr.Message
		if msg == "" {
			msg = "processing failed"
		}
		if stageErr.Stage == "" {
			return msg
		}
		return stageErr.Stage + ": " + msg
	}
	msg := strings.TrimSpace(err.Error())
	for _, marker := range []error{ErrExternalTool, ErrValidation, ErrThrottled, ErrConfiguration, ErrNotFound, ErrTimeout, ErrTransient} {
		msg = strings.ReplaceAll(msg, marker.Error()+": ", "")
	}
	if msg == "" {
		return "processing failed"
	}
	const limit = 512
	if runes := []rune(msg); len(runes) > limit {
		msg = string(runes[:limit]) + "..."
	}
	return msg
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
