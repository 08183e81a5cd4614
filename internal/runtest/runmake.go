package runtest

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"compiletest/internal/process"
)

// runMakeRecipe runs the Makefile of a run-make test directory.
type runMakeRecipe struct{}

func (runMakeRecipe) Execute(ctx context.Context, cx *TestCx) error {
	if cx.cfg.IsCrossCompile() {
		cx.logger.Info("skipping run-make test when cross compiling", "target", cx.cfg.Target)
		return nil
	}

	tmpdir, err := filepath.Abs(cx.base)
	if err != nil {
		return cx.ioError(err)
	}
	if err := os.RemoveAll(tmpdir); err != nil {
		return cx.ioError(err)
	}
	if err := os.MkdirAll(tmpdir, 0o755); err != nil {
		return cx.ioError(err)
	}

	srcRoot := cx.cfg.FindSrcRoot()
	if srcRoot == "" {
		srcRoot = absOrSelf(cx.cfg.SrcBase)
	}
	env := []string{
		"TARGET=" + cx.cfg.Target,
		"PYTHON=" + cx.cfg.DocckPython,
		"S=" + srcRoot,
		"RUST_BUILD_STAGE=" + cx.cfg.StageID,
		"RUSTC=" + absOrSelf(cx.cfg.RustcPath),
		"RUSTDOC=" + absOrSelf(cx.cfg.RustdocPath),
		"TMPDIR=" + tmpdir,
		"LD_LIB_PATH_ENVVAR=" + process.DylibEnvVar(runtime.GOOS),
		"HOST_RPATH_DIR=" + absOrSelf(cx.cfg.CompileLibPath),
		"TARGET_RPATH_DIR=" + absOrSelf(cx.cfg.RunLibPath),
		"LLVM_COMPONENTS=" + cx.cfg.LLVMComponents,
		"LLVM_CXXFLAGS=" + cx.cfg.LLVMCxxFlags,
		"CC=" + strings.TrimSpace(cx.cfg.CC+" "+cx.cfg.CFlags),
		"CXX=" + cx.cfg.CXX,
	}
	cmd := process.Command{
		Path: makeProgram(cx.cfg.Host),
		Dir:  cx.paths.File,
		Env:  env,
		// Outer make jobs and RUSTFLAGS must not leak into the test.
		RemoveEnv: []string{"MAKEFLAGS", "MFLAGS", "CARGO_MAKEFLAGS", "RUSTFLAGS"},
	}
	res, err := cx.composeAndRun(ctx, cmd, "", "")
	if err != nil {
		return err
	}
	if !res.Success() {
		return cx.fatalProc(ClassProcess, "make failed", res)
	}
	return nil
}

func makeProgram(host string) string {
	for _, bsd := range []string{"bitrig", "dragonfly", "freebsd", "netbsd", "openbsd"} {
		if strings.Contains(host, bsd) {
			return "gmake"
		}
	}
	return "make"
}

// absOrSelf makes relative paths absolute and leaves bare program names
// for PATH lookup.
func absOrSelf(p string) string {
	if p == "" || (!strings.ContainsRune(p, filepath.Separator) && !strings.ContainsRune(p, '/')) {
		return p
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
