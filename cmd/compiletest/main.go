package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"compiletest/internal/cli"
	"compiletest/internal/cli/commands"
	"compiletest/internal/config"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "compiletest",
		Short: "Compiler test-suite driver",
		Long: `Runs a directory of compiler tests: compiles each test under the selected mode, runs the
result when the mode asks for it, and checks diagnostics, output and exit status against the
expectations embedded in the test files.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cfg := config.New()
	var flags cli.Flags
	cmds := commands.NewCommands(cfg)
	cmds.Register(rootCmd, &flags, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, commands.ErrTestsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
