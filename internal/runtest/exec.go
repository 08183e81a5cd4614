package runtest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"compiletest/internal/header"
)

// diagnosticRecipe compiles a test that is expected to fail and checks
// the diagnostics it produced.
type diagnosticRecipe struct{}

func (diagnosticRecipe) Execute(ctx context.Context, cx *TestCx) error {
	res, err := cx.compileTest(ctx)
	if err != nil {
		return err
	}
	if err := cx.checkNoCompilerCrash(res); err != nil {
		return err
	}

	if cx.props.MustCompileSuccessfully {
		if !res.Success() {
			return cx.fatalProc(ClassProcess, "test compilation failed although it shouldn't!", res)
		}
	} else {
		if res.Success() {
			return cx.fatalProc(ClassProcess, fmt.Sprintf("%s test compiled successfully!", cx.cfg.Mode), res)
		}
		if err := cx.checkCorrectFailureStatus(res); err != nil {
			return err
		}
	}

	output := cx.output(res)
	expected, err := cx.loadExpectedErrors()
	if err != nil {
		return err
	}
	if len(expected) > 0 {
		if len(cx.props.ErrorPatterns) > 0 {
			return cx.fatal(ClassConfig, "both error pattern and expected errors specified")
		}
		err = cx.checkExpectedErrors(expected, res)
	} else {
		err = cx.checkErrorPatterns(output, res)
	}
	if err != nil {
		return err
	}
	return cx.checkForbidOutput(output, res)
}

type execKind int

const (
	runPass execKind = iota
	runFail
	runValgrind
)

// execRecipe compiles a test and runs the binary. The three run modes
// differ only in how the run is judged.
type execRecipe struct {
	kind execKind
}

func (r execRecipe) Execute(ctx context.Context, cx *TestCx) error {
	switch r.kind {
	case runFail:
		return r.runFail(ctx, cx)
	case runValgrind:
		if err := cx.noRevisions(); err != nil {
			return err
		}
		if cx.cfg.ValgrindPath == "" {
			if cx.cfg.ForceValgrind {
				return cx.fatal(ClassConfig, "valgrind is required (--force-valgrind) but no valgrind path is configured")
			}
			return r.runPass(ctx, cx)
		}
		cfg := cx.cfg.Clone()
		cfg.Runtool = valgrindRuntool(cfg.ValgrindPath)
		return r.runPass(ctx, cx.withConfig(cfg))
	default:
		return r.runPass(ctx, cx)
	}
}

func (execRecipe) compile(ctx context.Context, cx *TestCx) error {
	res, err := cx.compileTest(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "compilation failed!", res)
	}
	return nil
}

func (r execRecipe) runPass(ctx context.Context, cx *TestCx) error {
	expected, err := cx.loadExpectedErrors()
	if err != nil {
		return err
	}
	if len(expected) > 0 {
		return cx.fatal(ClassConfig, "run-pass tests with expected warnings should be moved to ui/")
	}
	if err := r.compile(ctx, cx); err != nil {
		return err
	}
	res, err := cx.execCompiledTest(ctx)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "test run failed!", res)
	}
	return nil
}

func (r execRecipe) runFail(ctx context.Context, cx *TestCx) error {
	if err := r.compile(ctx, cx); err != nil {
		return err
	}
	res, err := cx.execCompiledTest(ctx)
	if err != nil {
		return err
	}
	if res.Status == valgrindErrorStatus {
		return cx.fatalProc(ClassProcess, "run-fail test isn't valgrind-clean!", res)
	}
	if err := cx.checkCorrectFailureStatus(res); err != nil {
		return err
	}
	return cx.checkErrorPatterns(cx.output(res), res)
}

// incrementalRecipe runs the revisions of a test in order against one
// shared incremental directory. The prefix of each revision name selects
// how that step is judged.
type incrementalRecipe struct{}

func (incrementalRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if len(cx.props.Revisions) == 0 {
		return cx.fatal(ClassConfig, "incremental tests require a list of revisions")
	}
	dir := cx.incrementalDir()
	if err := os.RemoveAll(dir); err != nil {
		return cx.ioError(err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return cx.ioError(err)
	}
	base := cx.props.With(header.WithIncrementalDir(dir))

	steps := make([]Recipe, len(cx.props.Revisions))
	for i, rev := range cx.props.Revisions {
		step, ok := incrementalStep(rev)
		if !ok {
			return cx.forRevision(rev, cx.props).fatal(ClassConfig, "revision name must begin with rpass, rfail, or cfail")
		}
		steps[i] = step
	}

	for i, rev := range cx.props.Revisions {
		props, err := header.Derive(cx.cfg, cx.paths.File, rev, base)
		if err != nil {
			return cx.fatal(ClassConfig, err.Error())
		}
		props = props.With(header.WithCompileFlags("-Z", "incremental-info"))
		revCx := cx.forRevision(rev, props)
		revCx.logger.Debug("running incremental revision", "dir", dir, "flags", strings.Join(props.CompileFlags, " "))
		if err := steps[i].Execute(ctx, revCx); err != nil {
			return err
		}
	}
	return nil
}

func incrementalStep(rev string) (Recipe, bool) {
	switch {
	case strings.HasPrefix(rev, "rpass"):
		return execRecipe{kind: runPass}, true
	case strings.HasPrefix(rev, "rfail"):
		return execRecipe{kind: runFail}, true
	case strings.HasPrefix(rev, "cfail"):
		return diagnosticRecipe{}, true
	}
	return nil, false
}
