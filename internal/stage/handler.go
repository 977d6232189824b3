package stage

import (
	"context"

	"segue/internal/queue"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *queue.Session) error
	Execute(context.Context, *queue.Session) error
	HealthCheck(context.Context) Health
}
