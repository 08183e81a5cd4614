// Package process runs the compiler, test binaries and debuggers.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kballard/go-shellquote"
)

// Command describes one external invocation.
type Command struct {
	Path string
	Args []string
	// Env holds NAME=VALUE pairs added on top of the harness environment.
	Env []string
	// RemoveEnv names variables dropped from the harness environment.
	RemoveEnv []string
	Dir       string
	// Stdin is written to the child and closed; nil leaves stdin empty.
	Stdin []byte
}

// Result is the outcome of one invocation.
type Result struct {
	// Status is the exit code, or -1 when the process was killed by a signal.
	Status  int
	Stdout  string
	Stderr  string
	Cmdline string
}

// Success reports a zero exit status.
func (r *Result) Success() bool {
	return r.Status == 0
}

// Runner spawns commands with a controlled library search path.
type Runner struct {
	verbose bool
	echo    io.Writer
	logger  log.Logger
}

// NewRunner creates a new Runner. With verbose set, every invocation's
// output is echoed to echo.
func NewRunner(verbose bool, echo io.Writer) *Runner {
	if echo == nil {
		echo = os.Stdout
	}
	return &Runner{verbose: verbose, echo: echo, logger: log.New("component", "process")}
}

// Run executes cmd with libPath and, when set, auxPath prepended to the
// platform's dynamic library search path. A process that cannot be started
// or prints invalid UTF-8 is an error; a non-zero exit is not.
func (r *Runner) Run(ctx context.Context, cmd Command, libPath, auxPath string) (*Result, error) {
	dylibVar := DylibEnvVar(runtime.GOOS)
	newPath := prependPaths(os.Getenv(dylibVar), libPath, auxPath)

	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(filterEnv(os.Environ(), append([]string{dylibVar}, cmd.RemoveEnv...)), dylibVar+"="+newPath)
	c.Env = append(c.Env, cmd.Env...)
	if cmd.Stdin != nil {
		c.Stdin = bytes.NewReader(cmd.Stdin)
	}
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	cmdline := MakeCmdline(runtime.GOOS, dylibVar, newPath, cmd.Path, cmd.Args)
	r.logger.Debug("executing", "cmdline", cmdline, "dir", cmd.Dir)

	status := 0
	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to exec `%s`: %w", cmd.Path, err)
		}
		status = exitErr.ExitCode()
	}

	if !utf8.Valid(stdout.Bytes()) || !utf8.Valid(stderr.Bytes()) {
		return nil, fmt.Errorf("output of `%s` is not valid UTF-8", cmdline)
	}
	res := &Result{
		Status:  status,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Cmdline: cmdline,
	}
	if r.verbose {
		r.echoOutput(res)
	}
	return res, nil
}

func (r *Runner) echoOutput(res *Result) {
	fmt.Fprintf(r.echo, "------stdout------------------------------\n%s\n", res.Stdout)
	fmt.Fprintf(r.echo, "------stderr------------------------------\n%s\n", res.Stderr)
	fmt.Fprintln(r.echo, "------------------------------------------")
}

// DylibEnvVar names the variable the loader searches for shared libraries.
func DylibEnvVar(goos string) string {
	switch goos {
	case "windows":
		return "PATH"
	case "darwin":
		return "DYLD_LIBRARY_PATH"
	case "haiku":
		return "LIBRARY_PATH"
	default:
		return "LD_LIBRARY_PATH"
	}
}

// MakeCmdline reconstructs a command for failure reports. Outside linux and
// macOS the adjusted library path is shown as a leading assignment.
func MakeCmdline(goos, dylibVar, dylibPath, path string, args []string) string {
	line := shellquote.Join(append([]string{path}, args...)...)
	if goos == "linux" || goos == "darwin" {
		return line
	}
	return fmt.Sprintf("%s=%q %s", dylibVar, dylibPath, line)
}

func prependPaths(existing string, first ...string) string {
	var parts []string
	for _, p := range first {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if existing != "" {
		parts = append(parts, filepath.SplitList(existing)...)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

func filterEnv(env, remove []string) []string {
	out := make([]string, 0, len(env))
outer:
	for _, kv := range env {
		name, _, _ := strings.Cut(kv, "=")
		for _, r := range remove {
			if name == r {
				continue outer
			}
		}
		out = append(out, kv)
	}
	return out
}

// Dump persists the output of an invocation next to the test's other
// outputs as <base>.[rev.]out and <base>.[rev.]err.
func Dump(base, rev string, res *Result) error {
	prefix := base + "."
	if rev != "" {
		prefix += rev + "."
	}
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(prefix+"out", []byte(res.Stdout), 0o644); err != nil {
		return fmt.Errorf("failed to dump stdout: %w", err)
	}
	if err := os.WriteFile(prefix+"err", []byte(res.Stderr), 0o644); err != nil {
		return fmt.Errorf("failed to dump stderr: %w", err)
	}
	return nil
}
