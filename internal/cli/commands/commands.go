package commands

import (
	"os"

	"github.com/spf13/cobra"

	"compiletest/internal/cli"
	"compiletest/internal/config"
	"compiletest/internal/storage"
	"compiletest/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Run      *RunCommand
	List     *ListCommand
	Migrate  *MigrateCommand
	Failures *FailuresCommand
}

// NewCommands creates all commands with dependencies. Components that
// depend on resolved settings are built when a command executes.
func NewCommands(cfg *config.Config) *Commands {
	jsonStorage := storage.NewJSONStorage(cfg)
	formatter := ui.NewFormatter(os.Stdout)
	errorViewer := ui.NewErrorViewer(jsonStorage)

	return &Commands{
		Run:      NewRunCommand(cfg, jsonStorage, formatter, errorViewer),
		List:     NewListCommand(cfg, jsonStorage, formatter),
		Migrate:  NewMigrateCommand(cfg),
		Failures: NewFailuresCommand(jsonStorage, errorViewer),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	cli.BindSuiteFlags(rootCmd.PersistentFlags(), cfg, flags)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := cli.Resolve(cmd, cfg, flags); err != nil {
			return err
		}
		cli.SetupOutput(cfg, os.Stderr)
		return nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a compiler test suite",
		Long:  "Discover the tests of one suite, run them in parallel and record the results",
		RunE:  c.Run.Execute,
	}
	cli.BindSelectionFlags(runCmd.Flags(), cfg)
	runCmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "Number of tests to run at once (default: processors setting)")
	runCmd.Flags().BoolVar(&cfg.Bless, "bless", cfg.Bless, "Overwrite reference files with the actual output")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop starting tests after the first failure")
	runCmd.Flags().BoolVar(&flags.OnlyFailed, "failed", false, "Run only tests that failed in the last run")
	runCmd.Flags().StringVar(&flags.Shard, "shard", "", "Run only shard i of n, as i/n")
	runCmd.Flags().BoolVar(&flags.OpenFailures, "open-failures", false, "Open the failures viewer when the run finishes with failures")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered tests",
		Long:  "Scan the suite and list the tests that would run, without executing them",
		RunE:  c.List.Execute,
	}
	cli.BindSelectionFlags(listCmd.Flags(), cfg)
	rootCmd.AddCommand(listCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the results history database",
		Long:  "Create the database and tables used to record runs when --results-dsn is set",
		RunE:  c.Migrate.Execute,
	}
	rootCmd.AddCommand(migrateCmd)

	failuresCmd := &cobra.Command{
		Use:   "failures",
		Short: "View test failures interactively",
		Long:  "Display test failures from the last test run in an interactive viewer",
		RunE:  c.Failures.Execute,
	}
	rootCmd.AddCommand(failuresCmd)
}
