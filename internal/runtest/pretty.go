package runtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"compiletest/internal/matcher"
	"compiletest/internal/process"
)

// prettyRecipe checks that the pretty printer is a fixed point, or
// reproduces a pp-exact file, and that its output still typechecks.
type prettyRecipe struct{}

func (prettyRecipe) Execute(ctx context.Context, cx *TestCx) error {
	src, err := os.ReadFile(cx.paths.File)
	if err != nil {
		return cx.ioError(err)
	}

	rounds := 2
	if cx.props.PPExact != "" {
		rounds = 1
		cx.logger.Debug("testing for exact pretty-printing")
	} else {
		cx.logger.Debug("testing for converging pretty-printing")
	}

	srcs := []string{string(src)}
	for round := 0; round < rounds; round++ {
		cx.logger.Debug("pretty-printing round", "round", round)
		res, err := cx.printSource(ctx, srcs[round], cx.props.PrettyMode)
		if err != nil {
			return err
		}
		if !res.Success() {
			return cx.fatalProc(ClassProcess, fmt.Sprintf("pretty-printing failed in round %d", round), res)
		}
		srcs = append(srcs, res.Stdout)
	}

	expected := srcs[len(srcs)-2]
	actual := srcs[len(srcs)-1]
	if cx.props.PPExact != "" {
		b, err := os.ReadFile(filepath.Join(filepath.Dir(cx.paths.File), cx.props.PPExact))
		if err != nil {
			return cx.ioError(err)
		}
		expected = strings.ReplaceAll(string(b), "\r", "")
		actual = strings.ReplaceAll(actual, "\r", "")
	}
	if expected != actual {
		diff := matcher.UnifiedDiff(expected, actual, "expected", "actual")
		return cx.mismatch("pretty-printed source does not match expected source", nil, []string{diff})
	}

	if cx.props.PrettyCompareOnly {
		return nil
	}
	res, err := cx.typecheckSource(ctx, actual)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "pretty-printed source does not typecheck", res)
	}

	if !cx.props.PrettyExpanded {
		return nil
	}
	res, err = cx.printSource(ctx, srcs[rounds], "expanded")
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "pretty-printing (expanded) failed", res)
	}
	res, err = cx.typecheckSource(ctx, res.Stdout)
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "pretty-printed source (expanded) does not typecheck", res)
	}
	return nil
}

func (cx *TestCx) printSource(ctx context.Context, src, mode string) (*process.Result, error) {
	flags, err := cx.splitFlags(cx.cfg.TargetRustcFlags)
	if err != nil {
		return nil, err
	}
	auxDir := cx.auxOutputDir()
	args := []string{"-", "-Z", "unpretty=" + mode, "--target", cx.cfg.Target, "-L", auxDir}
	args = append(args, flags...)
	args = append(args, cx.props.CompileFlags...)
	cmd := process.Command{
		Path:  cx.cfg.RustcPath,
		Args:  args,
		Env:   envPairs(cx.props.ExecEnv),
		Stdin: []byte(src),
	}
	return cx.composeAndRun(ctx, cmd, cx.cfg.CompileLibPath, auxDir)
}

func (cx *TestCx) typecheckSource(ctx context.Context, src string) (*process.Result, error) {
	outDir := cx.outName("pretty-out")
	if err := os.RemoveAll(outDir); err != nil {
		return nil, cx.ioError(err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, cx.ioError(err)
	}

	target := cx.cfg.Target
	if cx.props.ForceHost {
		target = cx.cfg.Host
	}
	args := []string{"-", "-Zno-trans", "--out-dir", outDir, "--target=" + target,
		"-L", cx.cfg.BuildBase, "-L", cx.auxOutputDir()}
	if cx.revision != "" {
		args = append(args, "--cfg", cx.revision)
	}
	flags, err := cx.splitFlags(cx.cfg.TargetRustcFlags)
	if err != nil {
		return nil, err
	}
	args = append(args, flags...)
	args = append(args, cx.props.CompileFlags...)
	return cx.composeAndRunCompiler(ctx, process.Command{Path: cx.cfg.RustcPath, Args: args, Stdin: []byte(src)})
}
