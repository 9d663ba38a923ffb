// Package queue implements a Redis-backed job queue for asynchronous
// verification requests, so a caller can submit work and poll
// for a result instead of holding an HTTP connection open through a long
// BFS exploration.
//
// Grounded on the teacher's common/redis/client.go list operations
// (PushToList/BlockingPopList), generalized here from raw string payloads
// to a typed Job envelope, and on the choreography shape of
// common/queue/queue.go (topic-addressed publish/subscribe), simplified
// to a single list since jobs here have one consumer pool, not fan-out
// topics.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind names the operation a job asks the worker to perform. Only
// validation is ever queued: SPEC_FULL.md's simulate/project endpoints are
// synchronous, so there is no producer for any other kind.
type Kind string

const (
	KindValidate Kind = "VALIDATE"
)

// Job is one unit of queued work.
type Job struct {
	ID        string          `json:"id"`
	Kind      Kind            `json:"kind"`
	NetID     string          `json:"net_id"`
	Payload   json.RawMessage `json:"payload"`
	EnqueuedAt time.Time      `json:"enqueued_at"`
}

// Queue is a Redis-list-backed FIFO job queue.
type Queue struct {
	client  *redis.Client
	listKey string
}

// New wraps an existing redis.Client as a job queue over listKey.
func New(client *redis.Client, listKey string) *Queue {
	return &Queue{client: client, listKey: listKey}
}

// Enqueue serializes job and pushes it to the tail of the list.
func (q *Queue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.listKey, payload).Err(); err != nil {
		return fmt.Errorf("queue: rpush: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job, returning (nil, nil) if
// the wait times out without a job arriving.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.listKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: blpop: %w", err)
	}
	// BLPop returns [key, value]; the list key is echoed back first.
	if len(result) != 2 {
		return nil, fmt.Errorf("queue: unexpected blpop result shape: %v", result)
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue: unmarshal job: %w", err)
	}
	return &job, nil
}

// Len reports the current queue depth.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: llen: %w", err)
	}
	return n, nil
}
