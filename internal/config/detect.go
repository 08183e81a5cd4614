package config

import (
	"context"
	"strings"

	"compiletest/internal/process"
	"compiletest/internal/version"
)

// MinGDBNativeRust is the first gdb release with builtin Rust support.
const MinGDBNativeRust = 7011010

// DetectDebuggers fills in debugger versions that were not configured by
// asking the tools themselves. Missing debuggers are not an error; the
// corresponding tests are ignored later.
func (c *Config) DetectDebuggers(ctx context.Context) {
	switch c.Mode {
	case DebugInfoGdb:
		c.detectGDB(ctx)
	case DebugInfoLldb:
		c.detectLLDB(ctx)
	}
}

func (c *Config) detectGDB(ctx context.Context) {
	gdb := c.GDB
	if gdb == "" {
		gdb = "gdb"
	}
	if c.GDBVersion == 0 {
		line, ok := firstLine(ctx, gdb, "--version")
		if !ok {
			return
		}
		if v, ok := version.ExtractGDB(line); ok {
			c.GDBVersion = v
		}
	}
	c.GDB = gdb
	c.GDBNativeRust = c.GDBVersion >= MinGDBNativeRust
}

func (c *Config) detectLLDB(ctx context.Context) {
	if c.LLDBVersion != "" {
		return
	}
	line, ok := firstLine(ctx, "lldb", "--version")
	if !ok {
		return
	}
	if v, rust, ok := version.ExtractLLDB(line); ok {
		c.LLDBVersion = v
		c.LLDBNativeRust = rust
	}
}

func firstLine(ctx context.Context, name string, args ...string) (string, bool) {
	res, err := process.NewRunner(false, nil).Run(ctx, process.Command{Path: name, Args: args}, "", "")
	if err != nil || !res.Success() {
		return "", false
	}
	line, _, _ := strings.Cut(res.Stdout, "\n")
	return line, true
}
