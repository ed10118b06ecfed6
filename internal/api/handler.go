package api

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/jobs"
	"github.com/Checker-Finance/qa-suite/internal/store"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// RunReader is the read side of the result store.
type RunReader interface {
	LatestRun(ctx context.Context, suite string) (*model.RunResult, error)
	GetRun(ctx context.Context, runID uuid.UUID) (*model.RunResult, error)
	RecentRuns(ctx context.Context, suite string, limit int) ([]store.RunSummary, error)
	HealthCheck(ctx context.Context) error
}

// RunTrigger starts a suite run in the background.
type RunTrigger interface {
	Trigger(ctx context.Context, suite string) (uuid.UUID, error)
}

// RunsHandler serves run results and on-demand runs.
type RunsHandler struct {
	logger  *zap.Logger
	runs    RunReader
	trigger RunTrigger
	suites  []string
}

// NewRunsHandler creates a RunsHandler. runs may be nil when no store is
// configured; the read endpoints then answer 503.
func NewRunsHandler(logger *zap.Logger, runs RunReader, trigger RunTrigger, suites []string) *RunsHandler {
	return &RunsHandler{logger: logger, runs: runs, trigger: trigger, suites: suites}
}

// TriggerRunResponse is returned by POST /api/v1/runs/:suite.
type TriggerRunResponse struct {
	RunID uuid.UUID `json:"run_id"`
	Suite string    `json:"suite"`
}

func (h *RunsHandler) unknownSuite(c *fiber.Ctx, name string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown suite " + strconv.Quote(name)})
}

func (h *RunsHandler) storeUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "result store not configured"})
}

// LatestRun handles GET /api/v1/runs/:suite/latest.
func (h *RunsHandler) LatestRun(c *fiber.Ctx) error {
	name := c.Params("suite")
	if !slices.Contains(h.suites, name) {
		return h.unknownSuite(c, name)
	}
	if h.runs == nil {
		return h.storeUnavailable(c)
	}

	run, err := h.runs.LatestRun(c.Context(), name)
	if err != nil {
		h.logger.Error("api.latest_run.failed", zap.String("suite", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if run == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no runs recorded for " + name})
	}
	return c.JSON(run)
}

// GetRun handles GET /api/v1/run/:runId.
func (h *RunsHandler) GetRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("runId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}
	if h.runs == nil {
		return h.storeUnavailable(c)
	}

	run, err := h.runs.GetRun(c.Context(), id)
	if err != nil {
		h.logger.Error("api.get_run.failed", zap.String("run_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if run == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run not found"})
	}
	return c.JSON(run)
}

// ListRuns handles GET /api/v1/runs?suite=&limit=.
func (h *RunsHandler) ListRuns(c *fiber.Ctx) error {
	if h.runs == nil {
		return h.storeUnavailable(c)
	}
	suite := c.Query("suite")
	if suite != "" && !slices.Contains(h.suites, suite) {
		return h.unknownSuite(c, suite)
	}
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 200 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "limit must be between 1 and 200"})
	}

	runs, err := h.runs.RecentRuns(c.Context(), suite, limit)
	if errors.Is(err, store.ErrNoPostgres) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "run history not configured"})
	}
	if err != nil {
		h.logger.Error("api.list_runs.failed", zap.String("suite", suite), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if runs == nil {
		runs = []store.RunSummary{}
	}
	return c.JSON(fiber.Map{"runs": runs})
}

// TriggerRun handles POST /api/v1/runs/:suite.
func (h *RunsHandler) TriggerRun(c *fiber.Ctx) error {
	name := c.Params("suite")
	if !slices.Contains(h.suites, name) {
		return h.unknownSuite(c, name)
	}

	// fasthttp recycles the request context once the handler returns.
	id, err := h.trigger.Trigger(context.Background(), name)
	switch {
	case errors.Is(err, jobs.ErrRunInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, jobs.ErrStopped):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		h.logger.Error("api.trigger_run.failed", zap.String("suite", name), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.Info("api.run_triggered", zap.String("suite", name), zap.String("run_id", id.String()))
	return c.Status(fiber.StatusAccepted).JSON(TriggerRunResponse{RunID: id, Suite: name})
}
