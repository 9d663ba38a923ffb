package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/lyzr/workflowverify/internal/config"
	"github.com/lyzr/workflowverify/internal/guard"
	"github.com/lyzr/workflowverify/internal/store/postgres"
	"github.com/lyzr/workflowverify/internal/store/queue"
	"github.com/lyzr/workflowverify/internal/telemetry/logger"
)

// Container holds every long-lived dependency the HTTP handlers need,
// constructed once at startup. Grounded on the teacher's
// cmd/orchestrator/container/container.go singleton-wiring shape.
type Container struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *postgres.DB
	Results   *postgres.ResultRepository
	Queue     *queue.Queue
	GuardEval *guard.Evaluator

	nets *netStore

	cleanup []func()
}

// NewContainer wires every component. Database and queue connectivity are
// best-effort: a verification service is still useful for compile/verify/
// simulate/project against in-memory nets even if persistence is down, so
// failures there are logged, not fatal.
func NewContainer(ctx context.Context) (*Container, error) {
	cfg, err := config.Load("verifyd")
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Service.LogLevel, cfg.Service.LogFormat)

	ev, err := guard.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("build guard evaluator: %w", err)
	}

	c := &Container{
		Config:    cfg,
		Logger:    log,
		GuardEval: ev,
		nets:      newNetStore(),
	}

	db, err := postgres.Open(ctx, cfg, log)
	if err != nil {
		log.Warn("database unavailable, result persistence disabled", "error", err)
	} else {
		c.DB = db
		c.Results = postgres.NewResultRepository(db)
		c.cleanup = append(c.cleanup, db.Close)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Queue.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Warn("redis unavailable, async job queue disabled", "error", err)
	} else {
		c.Queue = queue.New(redisClient, cfg.Queue.ListKey)
		c.cleanup = append(c.cleanup, func() { _ = redisClient.Close() })
	}

	return c, nil
}

// Shutdown runs every registered cleanup func in reverse registration order.
func (c *Container) Shutdown() {
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
}
