package commands

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/storage"
	"compiletest/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config    *config.Config
	storage   storage.Storage
	formatter *ui.Formatter
}

// NewListCommand creates a new ListCommand
func NewListCommand(cfg *config.Config, st storage.Storage, formatter *ui.Formatter) *ListCommand {
	return &ListCommand{
		config:    cfg,
		storage:   st,
		formatter: formatter,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	tests, err := planTests(cmd.Context(), lc.config)
	if err != nil {
		return err
	}
	if len(tests) == 0 {
		color.Yellow("No tests found")
		return nil
	}

	// Failures of the last run are marked; a missing results file is fine.
	var previous *domain.TestResultsOutput
	if out, err := lc.storage.Load(); err == nil {
		previous = out
	}
	lc.formatter.PrintTestList(tests, failedNames(previous))
	return nil
}
