package stage

import (
	"context"

	"github.com/MayankTamakuwala/TranscriBelt/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
// Execute may set job.ResultURL; the manager reads it when completing the job.
type Handler interface {
	Prepare(context.Context, *queue.Job) error
	Execute(context.Context, *queue.Job) error
	HealthCheck(context.Context) Health
}
