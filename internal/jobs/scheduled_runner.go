package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/suite"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// ErrRunInProgress is returned by Trigger when the suite is already running.
var ErrRunInProgress = errors.New("run already in progress")

// ErrStopped is returned by Trigger after Stop.
var ErrStopped = errors.New("scheduler stopped")

// SuiteFactory builds a fresh suite by name. Unknown names return an error.
type SuiteFactory func(name string) (*suite.Suite, error)

// SuiteRunner is the subset of suite.Runner the scheduler needs.
type SuiteRunner interface {
	RunWithID(ctx context.Context, runID uuid.UUID, s *suite.Suite) model.RunResult
}

// ScheduledRunner runs the configured suites on a fixed interval and serves
// on-demand triggers. At most one run per suite is in flight.
type ScheduledRunner struct {
	logger   *zap.Logger
	runner   SuiteRunner
	factory  SuiteFactory
	suites   []string
	interval time.Duration

	mu       sync.Mutex
	stopped  bool
	inFlight map[string]uuid.UUID
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewScheduledRunner constructs a background job. An empty suites list or a
// non-positive interval disables the ticker; Trigger still works.
func NewScheduledRunner(logger *zap.Logger, runner SuiteRunner, factory SuiteFactory, suites []string, interval time.Duration) *ScheduledRunner {
	return &ScheduledRunner{
		logger:   logger,
		runner:   runner,
		factory:  factory,
		suites:   suites,
		interval: interval,
		inFlight: make(map[string]uuid.UUID),
		stopCh:   make(chan struct{}),
	}
}

// Start runs the schedule loop until Stop or ctx cancellation.
func (r *ScheduledRunner) Start(ctx context.Context) {
	if len(r.suites) == 0 || r.interval <= 0 {
		r.logger.Info("scheduled_runner.disabled")
		select {
		case <-r.stopCh:
		case <-ctx.Done():
		}
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("scheduled_runner.started",
		zap.Duration("interval", r.interval),
		zap.Strings("suites", r.suites))

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-r.stopCh:
			r.logger.Info("scheduled_runner.stopped", zap.String("reason", "manual stop"))
			return
		case <-ctx.Done():
			r.logger.Info("scheduled_runner.stopped", zap.String("reason", "context canceled"))
			return
		}
	}
}

// Stop halts the loop and waits for in-flight runs to finish.
func (r *ScheduledRunner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		close(r.stopCh)
	})
	r.wg.Wait()
}

// runOnce executes one pass over the configured suites, sequentially.
func (r *ScheduledRunner) runOnce(ctx context.Context) {
	for _, name := range r.suites {
		if ctx.Err() != nil {
			return
		}
		s, err := r.factory(name)
		if err != nil {
			r.logger.Error("scheduled_runner.build_failed", zap.String("suite", name), zap.Error(err))
			continue
		}
		id, err := r.reserve(name)
		if err != nil {
			r.logger.Info("scheduled_runner.skip", zap.String("suite", name), zap.Error(err))
			continue
		}
		r.execute(ctx, name, s, id)
	}
}

// Trigger starts name in the background and returns its run ID immediately.
func (r *ScheduledRunner) Trigger(ctx context.Context, name string) (uuid.UUID, error) {
	s, err := r.factory(name)
	if err != nil {
		return uuid.Nil, err
	}
	id, err := r.reserve(name)
	if err != nil {
		return uuid.Nil, err
	}
	go r.execute(context.WithoutCancel(ctx), name, s, id)
	return id, nil
}

// Running returns the run ID in flight for name, if any.
func (r *ScheduledRunner) Running(name string) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.inFlight[name]
	return id, ok
}

// reserve marks name in flight and registers the run with the wait group.
func (r *ScheduledRunner) reserve(name string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return uuid.Nil, ErrStopped
	}
	if id, ok := r.inFlight[name]; ok {
		return uuid.Nil, fmt.Errorf("%s: %w (%s)", name, ErrRunInProgress, id)
	}
	id := uuid.New()
	r.inFlight[name] = id
	r.wg.Add(1)
	return id, nil
}

func (r *ScheduledRunner) release(name string) {
	r.mu.Lock()
	delete(r.inFlight, name)
	r.mu.Unlock()
}

func (r *ScheduledRunner) execute(ctx context.Context, name string, s *suite.Suite, id uuid.UUID) {
	defer r.wg.Done()
	defer r.release(name)

	start := time.Now()
	run := r.runner.RunWithID(ctx, id, s)
	r.logger.Info("scheduled_runner.run_done",
		zap.String("suite", name),
		zap.String("run_id", run.RunID.String()),
		zap.String("status", string(run.Status)),
		zap.Duration("duration", time.Since(start)))
}
