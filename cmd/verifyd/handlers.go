package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/lyzr/workflowverify/internal/compiler"
	"github.com/lyzr/workflowverify/internal/intent"
	"github.com/lyzr/workflowverify/internal/projector"
	"github.com/lyzr/workflowverify/internal/simulator"
	"github.com/lyzr/workflowverify/internal/store/postgres"
	"github.com/lyzr/workflowverify/internal/store/queue"
	"github.com/lyzr/workflowverify/internal/validator"
	"github.com/lyzr/workflowverify/internal/verrors"
)

// API mirrors the teacher's handler struct shape
// (cmd/orchestrator/handlers/run.go): a thin wrapper over the container's
// components, one method per route.
type API struct {
	c *Container
}

func newAPI(c *Container) *API { return &API{c: c} }

// CompileNet handles POST /nets/compile: compiles an intent spec into a
// net and registers it for subsequent verify/simulate/project calls.
func (a *API) CompileNet(c echo.Context) error {
	var spec intent.IntentSpec
	if err := c.Bind(&spec); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid intent spec payload")
	}

	net, err := compiler.Compile(spec)
	if err != nil {
		a.c.Logger.Warn("compile failed", "error", err)
		if verrors.Is(err, verrors.ErrInvalidIntent) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "compilation failed")
	}

	a.c.nets.put(net)
	return c.JSON(http.StatusCreated, net)
}

// VerifyNet handles POST /nets/:id/verify.
func (a *API) VerifyNet(c echo.Context) error {
	netID := c.Param("id")
	net, err := a.c.nets.get(netID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	opts := validator.DefaultOptions()
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid validator options payload")
	}

	result := validator.Validate(net, opts)

	runID := uuid.New()
	log := a.c.Logger.WithContext(c.Request().Context()).WithNetID(netID).WithRunID(runID.String())
	if a.c.Results != nil {
		rec := postgres.ResultRecord{
			RunID:       runID,
			NetID:       netID,
			Status:      result.Status,
			Result:      result,
			SubmittedAt: time.Now(),
		}
		if err := a.c.Results.Create(c.Request().Context(), rec); err != nil {
			log.Error("failed to persist verification result", "error", err)
		}
	}

	return c.JSON(http.StatusOK, map[string]any{"run_id": runID, "result": result})
}

// EnqueueVerify handles POST /nets/:id/verify/async: instead of running the
// bounded BFS exploration inline, it pushes a validate job onto the Redis
// queue (internal/store/queue) and returns immediately, so a caller isn't
// left holding an HTTP connection open through a worst-case kBound/maxTimeMs
// exploration. runWorker drains the queue and persists the eventual result,
// retrievable via GetRun.
func (a *API) EnqueueVerify(c echo.Context) error {
	if a.c.Queue == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "async job queue is not configured")
	}

	netID := c.Param("id")
	if _, err := a.c.nets.get(netID); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	opts := validator.DefaultOptions()
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid validator options payload")
	}

	runID := uuid.New()
	payload, err := json.Marshal(validateJobPayload{RunID: runID, Options: opts})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to encode job payload")
	}

	job := queue.Job{
		ID:         runID.String(),
		Kind:       queue.KindValidate,
		NetID:      netID,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	}
	if err := a.c.Queue.Enqueue(c.Request().Context(), job); err != nil {
		a.c.Logger.WithContext(c.Request().Context()).WithNetID(netID).WithRunID(runID.String()).
			Error("failed to enqueue verify job", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue job")
	}

	return c.JSON(http.StatusAccepted, map[string]any{"run_id": runID, "status": "queued"})
}

// SimulateNet handles POST /nets/:id/simulate.
func (a *API) SimulateNet(c echo.Context) error {
	netID := c.Param("id")
	net, err := a.c.nets.get(netID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	opts := simulator.DefaultOptions()
	if err := c.Bind(&opts); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid simulator options payload")
	}

	sim := simulator.NewWithEvaluator(net, opts, a.c.GuardEval)
	sim.Run()

	return c.JSON(http.StatusOK, map[string]any{
		"simulation_id":   sim.ID,
		"status":          sim.Status(),
		"success":         sim.Success(),
		"message":         sim.Message(),
		"steps":           sim.Steps(),
		"initial_marking": sim.InitialMarking(),
		"marking":         sim.Marking(),
		"trace":           sim.Trace(),
		"started_at":      formatTimestamp(sim.StartedAt()),
		"ended_at":        formatTimestamp(sim.EndedAt()),
	})
}

// formatTimestamp renders t as an ISO-8601 UTC string per §6.3, or "" for the
// zero time (a simulation that never took a step).
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// ProjectNet handles POST /nets/:id/project.
func (a *API) ProjectNet(c echo.Context) error {
	netID := c.Param("id")
	net, err := a.c.nets.get(netID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	dag, err := projector.Project(net)
	if err != nil {
		if verrors.Is(err, verrors.ErrCyclicPrecedence) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "projection failed")
	}
	return c.JSON(http.StatusOK, dag)
}

// GetRun handles GET /runs/:id, returning a previously-persisted
// verification result.
func (a *API) GetRun(c echo.Context) error {
	if a.c.Results == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "result persistence is not configured")
	}

	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid run id")
	}

	rec, err := a.c.Results.GetByRunID(c.Request().Context(), runID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
	}
	return c.JSON(http.StatusOK, rec)
}
