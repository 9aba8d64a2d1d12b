package driven

import "context"

// JobRunner executes work in the background, outside the request that scheduled it.
type JobRunner interface {
	// Submit queues job. The job receives the runner's context, not the caller's.
	// Returns domain.ErrWorkerStopped once the runner has been stopped.
	Submit(ctx context.Context, name string, job func(ctx context.Context)) error
}
