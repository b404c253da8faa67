package worker

import (
	"context"
	"time"

	"catalog/internal/pkg/logger"
	"catalog/internal/worker/processor"
	"catalog/internal/worker/queue"
)

// JobProcessor handles one reserved job.
type JobProcessor interface {
	ProcessJob(ctx context.Context, job *queue.Job) (processor.Outcome, error)
}

type Deps struct {
	Queue     *queue.RedisQueue
	Processor JobProcessor
	Log       *logger.Logger

	// Name prefixes the per goroutine worker names that own active lists.
	// It must be stable across restarts so Recover finds abandoned jobs.
	Name            string
	Concurrency     int
	PopTimeout      time.Duration
	PromoteInterval time.Duration
	// JobTimeout bounds one job. Worker shutdown does not cancel a running job.
	JobTimeout time.Duration
}
