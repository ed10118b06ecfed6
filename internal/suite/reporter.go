package suite

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/metrics"
	"github.com/Checker-Finance/qa-suite/pkg/eventbus"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

// Reporter receives finished runs.
type Reporter interface {
	Name() string
	Report(ctx context.Context, run model.RunResult) error
}

// AttachReporters forwards every completed run on bus to the reporters. A
// failing reporter is logged and counted; it does not affect the others.
func AttachReporters(bus *eventbus.Bus[model.RunEvent], logger *zap.Logger, timeout time.Duration, reporters ...Reporter) (unsubscribe func()) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return bus.Subscribe(func(ev model.RunEvent) {
		if ev.Type != model.EventRunCompleted {
			return
		}
		run, ok := ev.Payload.(model.RunResult)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		for _, rep := range reporters {
			if err := rep.Report(ctx, run); err != nil {
				metrics.IncPublishError(rep.Name())
				logger.Warn("suite.report_failed",
					zap.String("reporter", rep.Name()),
					zap.String("run_id", run.RunID.String()),
					zap.Error(err))
			}
		}
	})
}
