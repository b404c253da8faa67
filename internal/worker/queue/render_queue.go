package queue

import (
	"context"
	"encoding/json"

	renderjob "catalog/internal/contracts/renderjob/v1"
	"catalog/internal/models"
	"catalog/internal/pkg/errors"
)

// RenderQueue enqueues datasheet render jobs.
type RenderQueue struct {
	q *RedisQueue
}

func NewRenderQueue(q *RedisQueue) *RenderQueue {
	return &RenderQueue{q: q}
}

// AddRenderJob validates job against the wire contract and enqueues it.
func (r *RenderQueue) AddRenderJob(ctx context.Context, job models.RenderJob) (string, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return "", errors.Wrap(err, "queue.AddRenderJob", "marshal render job")
	}
	if err := renderjob.Validate(payload); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeValidation, "queue.AddRenderJob", "render job violates contract")
	}
	return r.q.Enqueue(ctx, payload)
}
