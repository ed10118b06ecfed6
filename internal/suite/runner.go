package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/metrics"
	"github.com/Checker-Finance/qa-suite/pkg/eventbus"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// Step is one ordered check within a suite.
type Step struct {
	Name string
	// Always steps run even after an earlier failure (cleanup).
	Always bool
	Run    func(ctx context.Context) error
}

// Suite is a named list of steps with an optional teardown.
type Suite struct {
	Name     string
	Steps    []Step
	Teardown func(ctx context.Context) error
}

// SkipError marks a step as skipped instead of failed.
type SkipError struct {
	Reason string
}

func (e *SkipError) Error() string { return "skipped: " + e.Reason }

// Skip returns an error that makes the runner record the step as skipped.
func Skip(format string, args ...any) error {
	return &SkipError{Reason: fmt.Sprintf(format, args...)}
}

// Runner executes suites and publishes step and run events.
type Runner struct {
	logger *zap.Logger
	bus    *eventbus.Bus[model.RunEvent]
	now    func() time.Time
}

func NewRunner(logger *zap.Logger, bus *eventbus.Bus[model.RunEvent]) *Runner {
	if bus == nil {
		bus = eventbus.New[model.RunEvent]()
	}
	return &Runner{logger: logger, bus: bus, now: time.Now}
}

// Bus exposes the event bus reporters subscribe to.
func (r *Runner) Bus() *eventbus.Bus[model.RunEvent] {
	return r.bus
}

// Run executes s. After the first failed step the remaining steps are skipped,
// except those marked Always.
func (r *Runner) Run(ctx context.Context, s *Suite) model.RunResult {
	return r.RunWithID(ctx, uuid.New(), s)
}

// RunWithID is Run with a caller-chosen run ID, for callers that hand the ID out
// before the run finishes.
func (r *Runner) RunWithID(ctx context.Context, runID uuid.UUID, s *Suite) model.RunResult {
	run := model.RunResult{
		RunID:     runID,
		Suite:     s.Name,
		StartedAt: r.now().UTC(),
		Status:    model.StatusPassed,
		Steps:     make([]model.StepResult, 0, len(s.Steps)),
	}
	log := r.logger.With(zap.String("suite", s.Name), zap.String("run_id", run.RunID.String()))
	log.Info("suite.started", zap.Int("steps", len(s.Steps)))

	failed := false
	for _, step := range s.Steps {
		var res model.StepResult
		switch {
		case failed && !step.Always:
			res = model.StepResult{Name: step.Name, Status: model.StatusSkipped, Error: "previous step failed"}
		case ctx.Err() != nil && !step.Always:
			res = model.StepResult{Name: step.Name, Status: model.StatusSkipped, Error: ctx.Err().Error()}
		default:
			res = r.runStep(ctx, step)
		}

		if res.Status == model.StatusFailed {
			failed = true
			run.Status = model.StatusFailed
			log.Warn("suite.step_failed", zap.String("step", res.Name), zap.String("error", res.Error))
		} else {
			log.Info("suite.step_done", zap.String("step", res.Name),
				zap.String("status", string(res.Status)), zap.Duration("duration", res.Duration))
		}
		metrics.IncStep(s.Name, string(res.Status))
		run.Steps = append(run.Steps, res)
		r.bus.PublishSync(model.NewStepEvent(s.Name, run.RunID, res))
	}

	if s.Teardown != nil {
		if err := s.Teardown(context.WithoutCancel(ctx)); err != nil {
			log.Warn("suite.teardown_failed", zap.Error(err))
		}
	}

	run.FinishedAt = r.now().UTC()
	metrics.RunDuration.WithLabelValues(s.Name, string(run.Status)).Observe(run.Duration().Seconds())
	log.Info("suite.finished",
		zap.String("status", string(run.Status)),
		zap.Int("passed", run.Count(model.StatusPassed)),
		zap.Int("failed", run.Count(model.StatusFailed)),
		zap.Int("skipped", run.Count(model.StatusSkipped)),
		zap.Duration("duration", run.Duration()))

	r.bus.PublishSync(model.NewRunEvent(run))
	return run
}

func (r *Runner) runStep(ctx context.Context, step Step) (res model.StepResult) {
	res.Name = step.Name
	start := r.now()
	defer func() {
		if p := recover(); p != nil {
			res.Status = model.StatusFailed
			res.Error = fmt.Sprintf("panic: %v", p)
		}
		res.Duration = r.now().Sub(start)
	}()

	stepCtx := ctx
	if step.Always {
		stepCtx = context.WithoutCancel(ctx)
	}
	err := step.Run(stepCtx)

	var skip *SkipError
	switch {
	case err == nil:
		res.Status = model.StatusPassed
	case errors.As(err, &skip):
		res.Status = model.StatusSkipped
		res.Error = skip.Reason
	default:
		res.Status = model.StatusFailed
		res.Error = err.Error()
	}
	return res
}
