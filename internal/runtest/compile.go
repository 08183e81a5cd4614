package runtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/header"
	"compiletest/internal/process"
)

const (
	// rustErrorStatus is the exit code of a failed compilation or a panic.
	rustErrorStatus = 101
	// valgrindErrorStatus is what valgrind exits with on a memory error.
	valgrindErrorStatus = 100

	iceMarker = "error: internal compiler error"
)

// outputTarget is either a single output file or an output directory.
type outputTarget struct {
	file string
	dir  string
}

// compileArgs builds the compiler command line for input.
func (cx *TestCx) compileArgs(input string, out outputTarget) ([]string, error) {
	args := []string{input, "-L", cx.cfg.BuildBase}

	customTarget := false
	for _, f := range cx.props.CompileFlags {
		if strings.HasPrefix(f, "--target") {
			customTarget = true
			break
		}
	}
	if !customTarget {
		target := cx.cfg.Target
		if cx.props.ForceHost {
			target = cx.cfg.Host
		}
		args = append(args, "--target="+target)
	}

	if cx.revision != "" {
		args = append(args, "--cfg", cx.revision)
	}
	if cx.props.IncrementalDir != "" {
		args = append(args, "-Z", "incremental="+cx.props.IncrementalDir)
	}
	if cx.cfg.Mode == config.CodegenUnits {
		args = append(args, "-Z", "human_readable_cgu_names")
	}

	switch cx.cfg.Mode {
	case config.CompileFail, config.ParseFail, config.Incremental:
		// Legacy error-pattern tests match the human readable output.
		if len(cx.props.ErrorPatterns) == 0 {
			args = append(args, "--error-format", "json")
		}
	case config.MirOpt:
		dumpDir := cx.mirDumpDir()
		if err := os.RemoveAll(dumpDir); err != nil {
			return nil, cx.ioError(err)
		}
		if err := os.MkdirAll(dumpDir, 0o755); err != nil {
			return nil, cx.ioError(err)
		}
		args = append(args, "-Zdump-mir=all", "-Zmir-opt-level=3", "-Zdump-mir-exclude-pass-number", "-Zdump-mir-dir="+dumpDir)
	case config.RunPass, config.Ui:
		if !cx.hasCompileFlag("--error-format") {
			args = append(args, "--error-format", "json")
		}
	}

	if !cx.props.NoPreferDynamic {
		args = append(args, "-C", "prefer-dynamic")
	}
	if out.file != "" {
		args = append(args, "-o", out.file)
	} else {
		args = append(args, "--out-dir", out.dir)
	}
	if cx.cfg.CompareMode == "nll" {
		args = append(args, "-Zborrowck=mir", "-Ztwo-phase-borrows")
	}

	flags := cx.cfg.TargetRustcFlags
	if cx.props.ForceHost {
		flags = cx.cfg.HostRustcFlags
	}
	extra, err := cx.splitFlags(flags)
	if err != nil {
		return nil, err
	}
	args = append(args, extra...)
	return append(args, cx.props.CompileFlags...), nil
}

func (cx *TestCx) hasCompileFlag(prefix string) bool {
	for _, f := range cx.props.CompileFlags {
		if strings.Contains(f, prefix) {
			return true
		}
	}
	return false
}

// compileTest compiles the test into its executable.
func (cx *TestCx) compileTest(ctx context.Context) (*process.Result, error) {
	args, err := cx.compileArgs(cx.paths.File, outputTarget{file: cx.exeName()})
	if err != nil {
		return nil, err
	}
	args = append(args, "-L", cx.auxOutputDir())
	if cx.cfg.Mode == config.CompileFail || cx.cfg.Mode == config.Ui {
		// Fixtures are full of dead code; tests opt back in when they care.
		args = append(args, "-A", "unused")
	}
	return cx.composeAndRunCompiler(ctx, process.Command{Path: cx.cfg.RustcPath, Args: args})
}

// composeAndRunCompiler builds the auxiliary crates, then runs cmd with
// the rustc-env of the test.
func (cx *TestCx) composeAndRunCompiler(ctx context.Context, cmd process.Command) (*process.Result, error) {
	if err := cx.buildAuxiliaries(ctx); err != nil {
		return nil, err
	}
	cmd.Env = append(cmd.Env, envPairs(cx.props.RustcEnv)...)
	return cx.composeAndRun(ctx, cmd, cx.cfg.CompileLibPath, cx.auxOutputDir())
}

// composeAndRun runs cmd and persists its output.
func (cx *TestCx) composeAndRun(ctx context.Context, cmd process.Command, libPath, auxPath string) (*process.Result, error) {
	res, err := cx.runner.Run(ctx, cmd, libPath, auxPath)
	if err != nil {
		return nil, cx.fatal(ClassConfig, err.Error())
	}
	dumpRev := ""
	if cx.scheduled == "" {
		dumpRev = cx.revision
	}
	if err := process.Dump(cx.base, dumpRev, res); err != nil {
		return nil, cx.ioError(err)
	}
	return res, nil
}

// buildAuxiliaries compiles every aux-build crate of the test, and theirs,
// into the aux output directory.
func (cx *TestCx) buildAuxiliaries(ctx context.Context) error {
	if len(cx.props.AuxBuilds) == 0 {
		return nil
	}
	auxDir := cx.auxOutputDir()
	if err := os.MkdirAll(auxDir, 0o755); err != nil {
		return cx.ioError(err)
	}
	return cx.buildAuxOf(ctx, cx.props, auxDir, map[string]bool{})
}

func (cx *TestCx) buildAuxOf(ctx context.Context, props *header.TestProps, auxDir string, built map[string]bool) error {
	for _, rel := range props.AuxBuilds {
		auxCx, err := cx.auxContext(rel)
		if err != nil {
			return err
		}
		src := auxCx.paths.File
		if built[src] {
			continue
		}
		built[src] = true
		if err := cx.buildAuxOf(ctx, auxCx.props, auxDir, built); err != nil {
			return err
		}
		if err := os.MkdirAll(auxCx.outputDir(), 0o755); err != nil {
			return cx.ioError(err)
		}

		args, err := auxCx.compileArgs(src, outputTarget{dir: auxDir})
		if err != nil {
			return err
		}
		if crateType := cx.auxCrateType(auxCx.props); crateType != "" {
			args = append(args, "--crate-type", crateType)
		}
		args = append(args, "-L", auxDir)

		res, err := auxCx.composeAndRun(ctx, process.Command{Path: cx.cfg.RustcPath, Args: args}, cx.cfg.CompileLibPath, auxDir)
		if err != nil {
			return err
		}
		if !res.Success() {
			return cx.fatalProc(ClassProcess, fmt.Sprintf("auxiliary build of %q failed to compile: ", src), res)
		}
	}
	return nil
}

// auxContext prepares the context of the auxiliary file rel. It is always
// called on the test's own context, so nested auxiliaries resolve against
// the test's auxiliary directory too.
func (cx *TestCx) auxContext(rel string) (*TestCx, error) {
	src := filepath.Join(AuxDir(cx.paths.File), rel)
	if _, err := os.Stat(src); err != nil {
		return nil, cx.fatalf(ClassIO, "aux-build `%s` source not found", src)
	}
	props, err := header.Derive(cx.cfg, src, cx.revision, cx.props)
	if err != nil {
		return nil, cx.fatal(ClassConfig, err.Error())
	}
	cp := *cx
	cp.props = props
	cp.paths = domain.TestPaths{File: src, RelativeDir: filepath.Join(cx.paths.RelativeDir, "auxiliary", filepath.Dir(rel))}
	cp.base = OutputBase(cx.cfg, cp.paths, cx.scheduled)
	return &cp, nil
}

func (cx *TestCx) auxCrateType(props *header.TestProps) string {
	target := cx.cfg.Target
	switch {
	case props.NoPreferDynamic:
		return ""
	case strings.Contains(target, "musl") && !props.ForceHost,
		strings.Contains(target, "wasm32"),
		strings.Contains(target, "emscripten"):
		return "lib"
	default:
		return "dylib"
	}
}

// execCompiledTest runs the compiled test binary, under the runtool if one
// is configured.
func (cx *TestCx) execCompiledTest(ctx context.Context) (*process.Result, error) {
	args, err := cx.splitFlags(cx.cfg.Runtool)
	if err != nil {
		return nil, err
	}
	if strings.Contains(cx.cfg.Target, "emscripten") {
		if cx.cfg.NodePath == "" {
			return nil, cx.fatal(ClassConfig, "no NodeJS binary found (--nodejs)")
		}
		args = append(args, cx.cfg.NodePath)
	}
	args = append(args, cx.exeName())
	args = append(args, cx.props.RunFlags...)

	cmd := process.Command{
		Path: args[0],
		Args: args[1:],
		Dir:  cx.outputDir(),
		Env:  envPairs(cx.props.ExecEnv),
	}
	return cx.composeAndRun(ctx, cmd, cx.cfg.RunLibPath, cx.auxOutputDir())
}

// valgrindRuntool quotes the valgrind path so it survives flag splitting.
func valgrindRuntool(path string) string {
	return shellquote.Join(path)
}
