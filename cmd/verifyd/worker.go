package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lyzr/workflowverify/internal/store/postgres"
	"github.com/lyzr/workflowverify/internal/store/queue"
	"github.com/lyzr/workflowverify/internal/validator"
)

// validateJobPayload is the §6.1-shaped envelope carried on a
// queue.KindValidate job: the run id the caller was handed back at enqueue
// time, plus the validator options to run with.
type validateJobPayload struct {
	RunID   uuid.UUID         `json:"run_id"`
	Options validator.Options `json:"options"`
}

// runWorker drains c.Queue in a loop, running each job against its net and
// persisting the result, until ctx is cancelled. Grounded on the teacher's
// cmd/workflow-runner/coordinator consumer-loop shape (BLPOP, dispatch by
// kind, log-and-continue on a single job's failure rather than crashing the
// loop).
func runWorker(ctx context.Context, c *Container) {
	c.Logger.Info("job worker started")
	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("job worker stopping")
			return
		default:
		}

		job, err := c.Queue.Dequeue(ctx, 5*time.Second)
		if err != nil {
			c.Logger.Error("dequeue failed", "error", err)
			continue
		}
		if job == nil {
			continue // blocking pop timed out with nothing queued
		}

		processJob(ctx, c, *job)
	}
}

func processJob(ctx context.Context, c *Container, job queue.Job) {
	switch job.Kind {
	case queue.KindValidate:
		processValidateJob(ctx, c, job)
	default:
		c.Logger.Warn("worker received a job kind it does not handle yet", "kind", job.Kind, "job_id", job.ID)
	}
}

func processValidateJob(ctx context.Context, c *Container, job queue.Job) {
	log := c.Logger.WithNetID(job.NetID).WithRunID(job.ID)

	var payload validateJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		log.Error("failed to decode validate job payload", "error", err)
		return
	}

	net, err := c.nets.get(job.NetID)
	if err != nil {
		log.Error("validate job references an unknown net", "error", err)
		return
	}

	result := validator.Validate(net, payload.Options)

	if c.Results == nil {
		log.Warn("result persistence disabled; discarding worker result")
		return
	}
	rec := postgres.ResultRecord{
		RunID:       payload.RunID,
		NetID:       job.NetID,
		Status:      result.Status,
		Result:      result,
		SubmittedAt: time.Now(),
	}
	if err := c.Results.Create(ctx, rec); err != nil {
		log.Error("failed to persist worker verification result", "error", err)
	}
}
