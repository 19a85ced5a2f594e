package stage

import (
	"github.com/MayankTamakuwala/TranscriBelt/internal/services"
)

// Failure tags err with marker and wraps it as a terminal failure of the
// named stage. Clients see only message; err stays on the chain for logs. A
// nil err still produces a failure carrying message.
func Failure(name string, marker error, operation, message string, err error) error {
	return services.NewStageFailure(name, message, services.Wrap(marker, "", operation, message, err))
}
