package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/internal/metrics"
	"github.com/Checker-Finance/qa-suite/pkg/config"
)

// errRunFailed signals a completed invocation with failing steps. It maps to
// exit code 1 without printing usage.
var errRunFailed = errors.New("one or more suites failed")

var rootCmd = &cobra.Command{
	Use:   "qa-suite",
	Short: "End-to-end checks for the workspace API, the issue tracker and the web UI",
	Long: `qa-suite runs scenario suites against live environments.

Suites:
  workspace  GraphQL login, viewer and new-user setup pipeline
  jira       issue create, read, update, delete and bulk fetch
  ui         browser login and game pages

Configuration comes from the environment and an optional .env file (ENV_FILE).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRunFailed) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// suiteArgs validates suite names given on the command line. None means all.
func suiteArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return config.AllSuites, nil
	}
	seen := make(map[string]bool, len(args))
	out := make([]string, 0, len(args))
	for _, name := range args {
		switch name {
		case config.SuiteWorkspace, config.SuiteJira, config.SuiteUI:
		default:
			return nil, fmt.Errorf("unknown suite %q (want one of %v)", name, config.AllSuites)
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// pushMetrics sends the registry to the Pushgateway when one is configured.
func pushMetrics(a *app) {
	if a.cfg.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(a.cfg.PushgatewayURL, a.cfg.ServiceName); err != nil {
		a.logger.Warn("metrics.push_failed", zap.Error(err))
	}
}
