package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/qa-suite/pkg/config"
	"github.com/Checker-Finance/qa-suite/pkg/model"
)

var flagRunJSON bool

func init() {
	runCmd.Flags().BoolVar(&flagRunJSON, "json", false, "print run results as JSON instead of a table")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run [suite...]",
	Short: "Run suites once and exit",
	Long: `Run the named suites in order, or all of them when none are given.

The exit code is 1 when any step fails or a suite cannot be built.

Examples:
  qa-suite run
  qa-suite run workspace jira
  qa-suite run ui --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suites, err := suiteArgs(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, func(*config.Config) ([]string, error) { return suites, nil })
		if err != nil {
			return err
		}
		defer a.Close()

		runs := runSuites(ctx, a, a.suites)
		pushMetrics(a)

		if err := printRuns(cmd.OutOrStdout(), runs, flagRunJSON); err != nil {
			return err
		}
		for _, run := range runs {
			if !run.Passed() {
				return errRunFailed
			}
		}
		return nil
	},
}

// runSuites runs each suite in turn. A suite that cannot be built is recorded as
// a failed run with a single "setup" step.
func runSuites(ctx context.Context, a *app, suites []string) []model.RunResult {
	runs := make([]model.RunResult, 0, len(suites))
	for _, name := range suites {
		s, err := a.buildSuite(name)
		if err != nil {
			a.logger.Error("suite.build_failed", zap.String("suite", name), zap.Error(err))
			now := time.Now().UTC()
			run := model.RunResult{
				RunID:      uuid.New(),
				Suite:      name,
				StartedAt:  now,
				FinishedAt: now,
				Status:     model.StatusFailed,
				Steps:      []model.StepResult{{Name: "setup", Status: model.StatusFailed, Error: err.Error()}},
			}
			a.bus.PublishSync(model.NewRunEvent(run))
			runs = append(runs, run)
			continue
		}
		runs = append(runs, a.runner.Run(ctx, s))
	}
	return runs
}

func printRuns(w io.Writer, runs []model.RunResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", run.Suite, run.Status, run.Duration().Round(time.Millisecond), run.RunID)
		for _, step := range run.Steps {
			line := fmt.Sprintf("  %s\t%s\t%s", step.Name, step.Status, step.Duration.Round(time.Millisecond))
			if step.Error != "" {
				line += "\t" + step.Error
			}
			fmt.Fprintln(tw, line)
		}
	}
	return tw.Flush()
}
