package main

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/api"
	"github.com/Checker-Finance/qa-suite/internal/jobs"
	"github.com/Checker-Finance/qa-suite/pkg/config"
)

var flagServeSuites []string

func init() {
	serveCmd.Flags().StringSliceVar(&flagServeSuites, "suites", nil,
		"suites that may be triggered over HTTP (default: SCHEDULE_SUITES, or all suites)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve run results and run suites on a schedule",
	Long: `Start the HTTP API and the scheduler.

Routes:
  GET  /health
  GET  /metrics
  GET  /api/v1/runs?suite=&limit=
  GET  /api/v1/runs/:suite/latest
  POST /api/v1/runs/:suite
  GET  /api/v1/run/:runId

SCHEDULE_SUITES are run every SCHEDULE_INTERVAL.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, enabledSuites)
		if err != nil {
			return err
		}
		defer a.Close()
		suites := a.suites

		sched := jobs.NewScheduledRunner(a.logger, a.runner, a.buildSuite, a.cfg.ScheduleSuites, a.cfg.ScheduleInterval)
		go sched.Start(ctx)

		var (
			reader api.RunReader
			health api.HealthChecker
			nc     *nats.Conn
		)
		if a.store != nil {
			reader, health = a.store, a.store
		}
		if a.nats != nil {
			nc = a.nats.Conn()
		}

		app := fiber.New(fiber.Config{
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		})
		api.RegisterRoutes(app, health, nc, api.NewRunsHandler(a.logger, reader, sched, suites))

		listenErr := make(chan error, 1)
		go func() {
			a.logger.Info("http.listening", zap.Int("port", a.cfg.Port), zap.Strings("suites", suites))
			listenErr <- app.Listen(fmt.Sprintf(":%d", a.cfg.Port))
		}()

		select {
		case <-ctx.Done():
		case err = <-listenErr:
			a.logger.Error("fiber.listen_failed", zap.Error(err))
		}

		a.logger.Info("shutting down", zap.String("service", a.cfg.ServiceName))
		if shutdownErr := app.ShutdownWithTimeout(10 * time.Second); shutdownErr != nil {
			a.logger.Warn("fiber.shutdown_failed", zap.Error(shutdownErr))
		}
		sched.Stop()
		pushMetrics(a)
		return err
	},
}

// enabledSuites is --suites when given, else SCHEDULE_SUITES, else every suite.
// Scheduled suites must be enabled.
func enabledSuites(cfg *config.Config) ([]string, error) {
	enabled := flagServeSuites
	if len(enabled) == 0 {
		enabled = cfg.ScheduleSuites
	}
	suites, err := suiteArgs(enabled)
	if err != nil {
		return nil, err
	}
	for _, name := range cfg.ScheduleSuites {
		if !slices.Contains(suites, name) {
			return nil, fmt.Errorf("scheduled suite %q is not enabled", name)
		}
	}
	return suites, nil
}
