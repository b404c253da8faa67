// Package queue is the Redis backed job queue shared by the API (producer)
// and the worker (consumer).
//
// Keys, for a queue named q:
//
//	q:wait            list of job ids ready to run (LPUSH in, BRPOPLPUSH out)
//	q:active:<worker> ids reserved by one worker
//	q:delayed         zset of ids waiting for their retry time
//	q:job:<id>        hash with payload, attempts and last error
//	q:dead            list of dead lettered jobs as JSON, capped
package queue

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"catalog/internal/pkg/errors"
)

// Options controls retry behaviour.
type Options struct {
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries    int
	Backoff       time.Duration
	DeadLetterMax int64
}

// Job is a reserved queue entry.
type Job struct {
	ID         string
	Payload    []byte
	Attempts   int
	EnqueuedAt time.Time
}

// DeadLetter is a job that exhausted its attempts or failed permanently.
type DeadLetter struct {
	ID       string          `json:"id"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}

type RedisQueue struct {
	rdb       *redis.Client
	queueName string
	opts      Options
	now       func() time.Time
}

func NewRedisQueue(rdb *redis.Client, queueName string, opts Options) *RedisQueue {
	if opts.DeadLetterMax <= 0 {
		opts.DeadLetterMax = 1000
	}
	return &RedisQueue{rdb: rdb, queueName: queueName, opts: opts, now: time.Now}
}

func (q *RedisQueue) waitKey() string           { return q.queueName + ":wait" }
func (q *RedisQueue) delayedKey() string        { return q.queueName + ":delayed" }
func (q *RedisQueue) deadKey() string           { return q.queueName + ":dead" }
func (q *RedisQueue) jobKey(id string) string   { return q.queueName + ":job:" + id }
func (q *RedisQueue) activeKey(w string) string { return q.queueName + ":active:" + w }

// Enqueue stores payload and makes it available to workers.
func (q *RedisQueue) Enqueue(ctx context.Context, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.jobKey(id),
			"payload", payload,
			"attempts", 0,
			"enqueued_at", q.now().UnixMilli(),
		)
		p.LPush(ctx, q.waitKey(), id)
		return nil
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeUnavailable, "queue.Enqueue", "enqueue job")
	}
	return id, nil
}

// Reserve blocks up to timeout for the next job and moves it to the
// worker's active list. It returns nil when nothing arrived.
func (q *RedisQueue) Reserve(ctx context.Context, worker string, timeout time.Duration) (*Job, error) {
	id, err := q.rdb.BRPopLPush(ctx, q.waitKey(), q.activeKey(worker), timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	fields, err := q.rdb.HGetAll(ctx, q.jobKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		// Job data is gone; drop the orphan id.
		q.rdb.LRem(ctx, q.activeKey(worker), 1, id)
		return nil, nil
	}

	job := &Job{ID: id, Payload: []byte(fields["payload"])}
	job.Attempts, _ = strconv.Atoi(fields["attempts"])
	if ms, err := strconv.ParseInt(fields["enqueued_at"], 10, 64); err == nil {
		job.EnqueuedAt = time.UnixMilli(ms)
	}
	return job, nil
}

// Ack removes a finished job.
func (q *RedisQueue) Ack(ctx context.Context, worker string, job *Job) error {
	_, err := q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.activeKey(worker), 1, job.ID)
		p.Del(ctx, q.jobKey(job.ID))
		return nil
	})
	return err
}

// Fail records a failed attempt. The job is scheduled again after the
// backoff while retries remain, otherwise it is dead lettered.
func (q *RedisQueue) Fail(ctx context.Context, worker string, job *Job, cause error) (retrying bool, err error) {
	attempts, err := q.rdb.HIncrBy(ctx, q.jobKey(job.ID), "attempts", 1).Result()
	if err != nil {
		return false, err
	}
	job.Attempts = int(attempts)

	if job.Attempts > q.opts.MaxRetries {
		return false, q.DeadLetter(ctx, worker, job, cause)
	}

	due := q.now().Add(q.opts.Backoff)
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, q.jobKey(job.ID), "last_error", errText(cause))
		p.LRem(ctx, q.activeKey(worker), 1, job.ID)
		p.ZAdd(ctx, q.delayedKey(), redis.Z{Score: float64(due.UnixMilli()), Member: job.ID})
		return nil
	})
	return err == nil, err
}

// DeadLetter moves job to the capped dead letter list.
func (q *RedisQueue) DeadLetter(ctx context.Context, worker string, job *Job, cause error) error {
	entry, err := json.Marshal(DeadLetter{
		ID:       job.ID,
		Payload:  rawPayload(job.Payload),
		Attempts: job.Attempts,
		Error:    errText(cause),
		FailedAt: q.now().UTC(),
	})
	if err != nil {
		return err
	}
	_, err = q.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LRem(ctx, q.activeKey(worker), 1, job.ID)
		p.Del(ctx, q.jobKey(job.ID))
		p.LPush(ctx, q.deadKey(), entry)
		p.LTrim(ctx, q.deadKey(), 0, q.opts.DeadLetterMax-1)
		return nil
	})
	return err
}

// PromoteDue moves delayed jobs whose retry time has passed back to the
// wait list. ZREM guards against two promoters moving the same id.
func (q *RedisQueue) PromoteDue(ctx context.Context) (int, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}

	moved := 0
	for _, id := range ids {
		n, err := q.rdb.ZRem(ctx, q.delayedKey(), id).Result()
		if err != nil {
			return moved, err
		}
		if n == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.waitKey(), id).Err(); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

// Recover returns jobs left in worker's active list by a previous run to
// the wait list.
func (q *RedisQueue) Recover(ctx context.Context, worker string) (int, error) {
	n := 0
	for {
		err := q.rdb.RPopLPush(ctx, q.activeKey(worker), q.waitKey()).Err()
		if err == redis.Nil {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Len returns the number of jobs waiting to run.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.waitKey()).Result()
}

// DeadLetters returns up to n of the most recent dead lettered jobs.
func (q *RedisQueue) DeadLetters(ctx context.Context, n int64) ([]DeadLetter, error) {
	raw, err := q.rdb.LRange(ctx, q.deadKey(), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var d DeadLetter
		if err := json.Unmarshal([]byte(r), &d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func rawPayload(b []byte) json.RawMessage {
	if json.Valid(b) {
		return b
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}
