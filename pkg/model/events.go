package model

import (
	"time"

	"github.com/google/uuid"
)

// Status is the outcome of a step or a whole run.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// StepResult records one scenario step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// RunResult records one execution of a suite.
type RunResult struct {
	RunID      uuid.UUID    `json:"run_id"`
	Suite      string       `json:"suite"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Status     Status       `json:"status"`
	Steps      []StepResult `json:"steps"`
}

// Passed reports whether every non-skipped step passed.
func (r RunResult) Passed() bool {
	return r.Status == StatusPassed
}

// Duration is the wall time of the run.
func (r RunResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Count returns the number of steps with the given status.
func (r RunResult) Count(s Status) int {
	n := 0
	for _, step := range r.Steps {
		if step.Status == s {
			n++
		}
	}
	return n
}

// Event types carried by RunEvent.
const (
	EventRunCompleted  = "qa.run.completed"
	EventStepCompleted = "qa.step.completed"
)

// RunEvent is the envelope fanned out to reporters and brokers.
type RunEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Suite     string    `json:"suite"`
	RunID     uuid.UUID `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewRunEvent wraps a finished run.
func NewRunEvent(run RunResult) RunEvent {
	return RunEvent{
		ID:        uuid.New(),
		Type:      EventRunCompleted,
		Suite:     run.Suite,
		RunID:     run.RunID,
		Timestamp: time.Now().UTC(),
		Payload:   run,
	}
}

// NewStepEvent wraps a finished step of run.
func NewStepEvent(suite string, runID uuid.UUID, step StepResult) RunEvent {
	return RunEvent{
		ID:        uuid.New(),
		Type:      EventStepCompleted,
		Suite:     suite,
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Payload:   step,
	}
}
