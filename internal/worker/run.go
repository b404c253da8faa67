package worker

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"catalog/internal/pkg/errors"
	"catalog/internal/pkg/logger"
	"catalog/internal/worker/processor"
	"catalog/internal/worker/queue"
)

// Run consumes render jobs until ctx is canceled. It starts Concurrency
// consumers and one loop that promotes retries whose backoff has elapsed.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	if d.Concurrency < 1 {
		d.Concurrency = 1
	}
	if d.PopTimeout <= 0 {
		d.PopTimeout = 5 * time.Second
	}
	if d.PromoteInterval <= 0 {
		d.PromoteInterval = time.Second
	}
	if d.Name == "" {
		d.Name = "worker"
	}
	if d.JobTimeout <= 0 {
		d.JobTimeout = 2 * time.Minute
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		promote(gctx, d.Queue, d.PromoteInterval, log)
		return nil
	})

	for i := 0; i < d.Concurrency; i++ {
		name := fmt.Sprintf("%s-%d", d.Name, i)
		g.Go(func() error {
			return consume(gctx, d, name, log.WithWorker(name))
		})
	}

	log.Info("worker started", "concurrency", d.Concurrency)
	err := g.Wait()
	log.Info("worker stopped")
	return err
}

func consume(ctx context.Context, d Deps, name string, log *logger.Logger) error {
	if n, err := d.Queue.Recover(ctx, name); err != nil {
		log.Warn("failed to recover abandoned jobs", "error", err.Error())
	} else if n > 0 {
		log.Info("recovered abandoned jobs", "count", n)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		job, err := d.Queue.Reserve(ctx, name, d.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("queue reserve error, retrying", "error", err.Error())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if job == nil {
			continue
		}

		handle(ctx, d, name, job, log)
	}
}

// handle runs one job and settles it on the queue. The job context is
// detached from ctx: stopping the worker ends Reserve, never a job that is
// already running. JobTimeout bounds it instead.
func handle(ctx context.Context, d Deps, name string, job *queue.Job, log *logger.Logger) {
	detached := context.WithoutCancel(ctx)
	jobCtx, cancel := context.WithTimeout(logger.ContextWithJobID(detached, job.ID), d.JobTimeout)
	defer cancel()
	jobLog := log.WithJobID(job.ID)
	settle := detached

	jobLog.Info("processing job", "attempt", job.Attempts+1)
	start := time.Now()

	outcome, err := process(jobCtx, d.Processor, job)
	duration := time.Since(start).Milliseconds()

	switch {
	case outcome == processor.OutcomeDelivered:
		jobLog.Info("job completed", "duration_ms", duration)
		ackJob(settle, d.Queue, name, job, jobLog)

	case outcome == processor.OutcomeDeliveryFailed:
		// The PDF was built and history written; a resend is not attempted.
		jobLog.Error("job delivery failed", "error", errText(err), "duration_ms", duration)
		ackJob(settle, d.Queue, name, job, jobLog)

	case errors.IsPermanent(err):
		jobLog.Error("job failed permanently", "error", errText(err), "duration_ms", duration)
		if qerr := d.Queue.DeadLetter(settle, name, job, err); qerr != nil {
			jobLog.Error("failed to dead letter job", "error", qerr.Error())
		}

	default:
		retrying, qerr := d.Queue.Fail(settle, name, job, err)
		if qerr != nil {
			jobLog.Error("failed to record job failure", "error", qerr.Error(), "cause", errText(err))
			return
		}
		if retrying {
			jobLog.Warn("job failed, retry scheduled", "error", errText(err), "attempt", job.Attempts, "duration_ms", duration)
		} else {
			jobLog.Error("job failed, attempts exhausted", "error", errText(err), "attempts", job.Attempts, "duration_ms", duration)
		}
	}
}

// process runs the job and turns a panic into a render failure so one bad
// document cannot take the worker down.
func process(ctx context.Context, p JobProcessor, job *queue.Job) (outcome processor.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = processor.OutcomeRenderFailed
			err = errors.Render(fmt.Errorf("panic: %v", r), "process", "job processing panicked")
		}
	}()
	return p.ProcessJob(ctx, job)
}

func ackJob(ctx context.Context, q *queue.RedisQueue, name string, job *queue.Job, log *logger.Logger) {
	if err := q.Ack(ctx, name, job); err != nil {
		log.Error("failed to ack job", "error", err.Error())
	}
}

func promote(ctx context.Context, q *queue.RedisQueue, every time.Duration, log *logger.Logger) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := q.PromoteDue(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("failed to promote delayed jobs", "error", err.Error())
				}
				continue
			}
			if n > 0 {
				log.Debug("promoted delayed jobs", "count", n)
			}
		}
	}
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
