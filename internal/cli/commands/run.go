package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/execution"
	"compiletest/internal/process"
	"compiletest/internal/runtest"
	"compiletest/internal/storage"
	"compiletest/internal/ui"
)

// ErrTestsFailed is returned by run when at least one test failed.
var ErrTestsFailed = errors.New("some tests failed")

// RunCommand handles the run command
type RunCommand struct {
	config    *config.Config
	storage   storage.Storage
	formatter *ui.Formatter
	viewer    ui.Viewer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(cfg *config.Config, st storage.Storage, formatter *ui.Formatter, viewer ui.Viewer) *RunCommand {
	return &RunCommand{
		config:    cfg,
		storage:   st,
		formatter: formatter,
		viewer:    viewer,
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := rc.config

	tests, err := planTests(ctx, cfg)
	if err != nil {
		return err
	}

	var previous *domain.TestResultsOutput
	if cfg.Flags.OnlyFailed {
		if previous, err = rc.storage.Load(); err != nil {
			return fmt.Errorf("--failed needs a previous run: %w", err)
		}
		failed := failedNames(previous)
		var selected []domain.Test
		for _, t := range tests {
			if failed[t.Name] {
				selected = append(selected, t)
			}
		}
		tests = selected
	}

	if len(tests) == 0 {
		color.Yellow("No tests to execute")
		return nil
	}
	log.Info("Running tests", "mode", cfg.ModeDisplay(), "suite", cfg.SrcBase, "tests", len(tests), "workers", cfg.Concurrency())

	runner := process.NewRunner(cfg.Verbose, os.Stderr)
	engine := runtest.NewEngine(cfg, runner)
	pool := execution.NewWorkerPool(cfg, execution.NewRunner(cfg, engine))
	if ui.ProgressEnabled(cfg.Quiet || cfg.Verbose) {
		pool.SetProgress(ui.NewProgressBar(len(tests)))
	}
	results, duration := pool.Execute(ctx, tests, cfg.Flags.FailFast)

	output := storage.NewOutput(cfg, results, duration)
	if previous != nil {
		names := make([]string, len(tests))
		for i, t := range tests {
			names[i] = t.Name
		}
		output = storage.Merge(previous, output, names)
	}
	if err := rc.storage.Save(output); err != nil {
		return fmt.Errorf("failed to save test results: %w", err)
	}
	if cfg.ResultsDSN != "" {
		rc.recordHistory(cmd, output)
	}

	for _, r := range results {
		if r.Failure != nil {
			rc.formatter.PrintFailure(*r.Failure)
		}
	}
	rc.formatter.PrintMetaStats(output)

	if output.Meta.FailedTests == 0 {
		return nil
	}
	if cfg.Flags.OpenFailures {
		if err := rc.viewer.View(output); err != nil {
			return err
		}
	}
	return ErrTestsFailed
}

// recordHistory appends the run to the history database. A broken
// database does not fail the run.
func (rc *RunCommand) recordHistory(cmd *cobra.Command, output *domain.TestResultsOutput) {
	history, err := storage.NewHistoryStore(rc.config.ResultsDSN)
	if err == nil {
		err = history.Record(cmd.Context(), output)
	}
	if err != nil {
		log.Warn("Failed to record run history", "err", err)
	}
}
