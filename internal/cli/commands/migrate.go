package commands

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"compiletest/internal/config"
	"compiletest/internal/storage"
)

// MigrateCommand handles the migrate command
type MigrateCommand struct {
	config *config.Config
}

// NewMigrateCommand creates a new MigrateCommand
func NewMigrateCommand(cfg *config.Config) *MigrateCommand {
	return &MigrateCommand{config: cfg}
}

// Execute runs the command
func (mc *MigrateCommand) Execute(cmd *cobra.Command, args []string) error {
	if mc.config.ResultsDSN == "" {
		return errors.New("migrate needs --results-dsn")
	}
	history, err := storage.NewHistoryStore(mc.config.ResultsDSN)
	if err != nil {
		return err
	}
	if err := history.Migrate(cmd.Context()); err != nil {
		return err
	}
	color.Green("✓ Results history database is ready")
	return nil
}
