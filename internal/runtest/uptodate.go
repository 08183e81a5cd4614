package runtest

import (
	"os"
	"os/exec"
	"path/filepath"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/stamp"
)

// prettyPrinterScripts live in src/etc and feed the debugger modes.
var prettyPrinterScripts = []string{
	"debugger_pretty_printers_common.py",
	"gdb_load_rust_pretty_printers.py",
	"gdb_rust_pretty_printing.py",
	"lldb_batchmode.py",
	"lldb_rust_formatters.py",
}

// CommonInputs stamps what every test of a run depends on: the compiler,
// rustdoc, the run library directory and the debugger scripts.
func CommonInputs(cfg *config.Config) stamp.Stamp {
	var s stamp.Stamp
	s.AddPath(resolveProgram(cfg.RustcPath))
	if cfg.RunLibPath != "" {
		s.AddDir(cfg.RunLibPath)
	}
	root := cfg.FindSrcRoot()
	if root != "" {
		for _, f := range prettyPrinterScripts {
			s.AddPath(filepath.Join(root, "src", "etc", f))
		}
	}
	if cfg.RustdocPath != "" {
		s.AddPath(resolveProgram(cfg.RustdocPath))
		if root != "" {
			s.AddPath(filepath.Join(root, "src", "etc", "htmldocck.py"))
		}
	}
	return s
}

// TestInputs lists the files of one test whose modification makes its
// stamp stale: the test itself, its auxiliaries and every golden file.
func TestInputs(cfg *config.Config, paths domain.TestPaths, aux, revisions []string) []string {
	inputs := []string{paths.File}
	if info, err := os.Stat(paths.File); err == nil && info.IsDir() {
		inputs = append(inputs, filepath.Join(paths.File, "Makefile"))
	}
	for _, a := range aux {
		inputs = append(inputs, filepath.Join(AuxDir(paths.File), a))
	}
	revs := append([]string{""}, revisions...)
	compareModes := []string{""}
	if cfg.CompareMode != "" {
		compareModes = append(compareModes, cfg.CompareMode)
	}
	for _, kind := range UIExtensions {
		for _, rev := range revs {
			for _, cm := range compareModes {
				inputs = append(inputs, ExpectedOutputPath(paths, rev, cm, kind))
			}
		}
	}
	return inputs
}

// IsUpToDate reports whether the test passed before under the same
// configuration and none of its inputs changed since.
func IsUpToDate(cfg *config.Config, paths domain.TestPaths, rev string, aux, revisions []string, common stamp.Stamp) bool {
	hash, err := cfg.StampHash()
	if err != nil {
		return false
	}
	return stamp.IsUpToDate(StampPath(cfg, paths, rev), hash, common, TestInputs(cfg, paths, aux, revisions))
}

func resolveProgram(p string) string {
	if resolved, err := exec.LookPath(p); err == nil {
		return resolved
	}
	return p
}
