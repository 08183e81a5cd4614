package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"compiletest/internal/config"
)

func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "compiletest.yaml")
	yaml := "stage_id: stage1-from-file\nmode: ui\ntarget: file-target\nprocessors: 3\n"
	require.NoError(t, os.WriteFile(file, []byte(yaml), 0o644))
	t.Setenv("COMPILETEST_TARGET", "env-target")

	cfg := config.New()
	var flags Flags
	cmd := &cobra.Command{Use: "run"}
	BindSuiteFlags(cmd.Flags(), cfg, &flags)
	BindSelectionFlags(cmd.Flags(), cfg)
	cmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "")

	require.NoError(t, cmd.ParseFlags([]string{"--config", file, "--mode", "codegen", "--filter", "borrowck"}))
	require.NoError(t, Resolve(cmd, cfg, &flags))

	require.Equal(t, config.Codegen, cfg.Mode)
	require.Equal(t, "stage1-from-file", cfg.StageID)
	require.Equal(t, "env-target", cfg.Target)
	require.Equal(t, "borrowck", cfg.Filter)
	require.Equal(t, 3, cfg.Processors)
}

func TestResolve_FlagBeatsEnvironment(t *testing.T) {
	t.Setenv("COMPILETEST_TARGET", "env-target")

	cfg := config.New()
	var flags Flags
	cmd := &cobra.Command{Use: "run"}
	BindSuiteFlags(cmd.Flags(), cfg, &flags)
	cmd.Flags().IntVarP(&flags.Processors, "processors", "p", 0, "")

	require.NoError(t, cmd.ParseFlags([]string{"--target", "flag-target", "-p", "7"}))
	require.NoError(t, Resolve(cmd, cfg, &flags))
	require.Equal(t, "flag-target", cfg.Target)
	require.Equal(t, 7, cfg.Processors)
}

func TestResolve_InvalidMode(t *testing.T) {
	cfg := config.New()
	var flags Flags
	cmd := &cobra.Command{Use: "run"}
	BindSuiteFlags(cmd.Flags(), cfg, &flags)

	require.NoError(t, cmd.ParseFlags([]string{"--mode", "bogus"}))
	require.Error(t, Resolve(cmd, cfg, &flags))
}

func TestLogLevel(t *testing.T) {
	cfg := config.New()
	require.Equal(t, "INFO", LogLevel(cfg).String())
	cfg.Quiet = true
	require.Equal(t, "WARN", LogLevel(cfg).String())
	cfg.Verbose = true
	require.Equal(t, "DEBUG", LogLevel(cfg).String())
}
