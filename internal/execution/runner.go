package execution

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/runtest"
)

// ClassPanic marks a failure raised by a panic inside the engine.
const ClassPanic = "panic"

// Engine runs one test file or revision.
type Engine interface {
	Run(ctx context.Context, paths domain.TestPaths, rev string) error
}

// Runner executes a single test and turns the engine's verdict into a result
type Runner struct {
	config *config.Config
	engine Engine
	logger log.Logger
}

// NewRunner creates a new Runner
func NewRunner(cfg *config.Config, engine Engine) *Runner {
	return &Runner{config: cfg, engine: engine, logger: log.New("component", "runner")}
}

// Run executes one test. Panics are recovered into a failed result, or a
// passing one for should-fail tests, so a single broken fixture cannot take
// down the whole run.
func (r *Runner) Run(ctx context.Context, test domain.Test) (result domain.TestResult) {
	result.Test = test
	if test.Ignore && !r.config.RunIgnored {
		result.Outcome = domain.Ignored
		return result
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)
		if p := recover(); p != nil {
			if test.ShouldFail {
				r.logger.Debug("should-fail test panicked", "test", test.Name, "panic", p)
				result.Outcome = domain.Passed
				result.Failure = nil
				return
			}
			r.logger.Error("test panicked", "test", test.Name, "panic", p)
			result.Outcome = domain.Failed
			result.Failure = &domain.TestFailure{
				TestName: test.Name,
				FilePath: test.Paths.File,
				Revision: test.Revision,
				Class:    ClassPanic,
				Message:  fmt.Sprintf("%v", p),
				Stderr:   string(debug.Stack()),
			}
		}
	}()

	err := r.engine.Run(ctx, test.Paths, test.Revision)
	r.logger.Debug("test finished", "test", test.Name, "ok", err == nil)
	switch {
	case err == nil && test.ShouldFail:
		result.Outcome = domain.Failed
		result.Failure = &domain.TestFailure{
			TestName: test.Name,
			FilePath: test.Paths.File,
			Revision: test.Revision,
			Class:    string(runtest.ClassProcess),
			Message:  "test passed but was expected to fail",
		}
	case err == nil, test.ShouldFail:
		result.Outcome = domain.Passed
	default:
		result.Outcome = domain.Failed
		result.Failure = NewFailure(test, err)
	}
	return result
}

// NewFailure describes a failed test for reporting.
func NewFailure(test domain.Test, err error) *domain.TestFailure {
	f := &domain.TestFailure{
		TestName: test.Name,
		FilePath: test.Paths.File,
		Revision: test.Revision,
		Message:  err.Error(),
	}
	var rerr *runtest.Error
	if !errors.As(err, &rerr) {
		return f
	}
	f.Class = string(rerr.Class)
	f.Message = rerr.Message
	if rerr.Revision != "" {
		f.Revision = rerr.Revision
	}
	f.Mismatches = rerr.Details
	if p := rerr.Proc; p != nil {
		status := p.Status
		f.Command = p.Cmdline
		f.Status = &status
		f.Stdout = p.Stdout
		f.Stderr = p.Stderr
	}
	return f
}
