package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"compiletest/internal/config"
)

// Flags holds command-line options that are not config settings
type Flags struct {
	ConfigFile   string
	Processors   int
	FailFast     bool
	OnlyFailed   bool
	OpenFailures bool
	Shard        string
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		Processors:   f.Processors,
		FailFast:     f.FailFast,
		OnlyFailed:   f.OnlyFailed,
		OpenFailures: f.OpenFailures,
		Shard:        f.Shard,
	}
}

// BindSuiteFlags registers the flags describing the toolchain and the
// suite. They write straight into cfg; Resolve re-applies them after the
// config file and environment were loaded.
func BindSuiteFlags(fs *pflag.FlagSet, cfg *config.Config, flags *Flags) {
	fs.StringVar(&flags.ConfigFile, "config", "", "YAML config file (default ./"+config.DefaultConfigFile+" when present)")

	fs.StringVar(&cfg.SrcBase, "src-base", cfg.SrcBase, "Directory containing the test suite")
	fs.StringVar(&cfg.BuildBase, "build-base", cfg.BuildBase, "Directory receiving all test output")
	fs.StringVar(&cfg.StageID, "stage-id", cfg.StageID, "Stage identifier appended to output names, e.g. stage2-x86_64-unknown-linux-gnu")
	fs.StringVar((*string)(&cfg.Mode), "mode", string(cfg.Mode), "Test mode, one of the supported suite kinds (ui, run-pass, compile-fail, ...)")
	fs.StringVar(&cfg.CompareMode, "compare-mode", cfg.CompareMode, "Alternative compiler configuration to compare against (nll)")

	fs.StringVar(&cfg.RustcPath, "rustc-path", cfg.RustcPath, "Compiler under test")
	fs.StringVar(&cfg.RustdocPath, "rustdoc-path", cfg.RustdocPath, "Documentation generator")
	fs.StringVar(&cfg.CompileLibPath, "compile-lib-path", cfg.CompileLibPath, "Dynamic library path for the compiler")
	fs.StringVar(&cfg.RunLibPath, "run-lib-path", cfg.RunLibPath, "Dynamic library path for test binaries")
	fs.StringVar(&cfg.LLDBPython, "lldb-python", cfg.LLDBPython, "Python used to drive lldb")
	fs.StringVar(&cfg.DocckPython, "docck-python", cfg.DocckPython, "Python used to run htmldocck")
	fs.StringVar(&cfg.FileCheckPath, "llvm-filecheck", cfg.FileCheckPath, "LLVM FileCheck binary for codegen tests")
	fs.StringVar(&cfg.ValgrindPath, "valgrind-path", cfg.ValgrindPath, "Valgrind binary for run-pass-valgrind tests")
	fs.BoolVar(&cfg.ForceValgrind, "force-valgrind", cfg.ForceValgrind, "Fail run-pass-valgrind tests when valgrind is missing")
	fs.StringVar(&cfg.Runtool, "runtool", cfg.Runtool, "Command prefix used to run test binaries")
	fs.StringVar(&cfg.HostRustcFlags, "host-rustcflags", cfg.HostRustcFlags, "Extra compiler flags for host builds")
	fs.StringVar(&cfg.TargetRustcFlags, "target-rustcflags", cfg.TargetRustcFlags, "Extra compiler flags for target builds")
	fs.StringVar(&cfg.Target, "target", cfg.Target, "Target triple")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "Host triple")

	fs.StringVar(&cfg.GDB, "gdb", cfg.GDB, "gdb binary for debuginfo-gdb tests")
	fs.StringVar(&cfg.LLDBVersion, "lldb-version", cfg.LLDBVersion, "lldb version, detected when empty")
	fs.StringVar(&cfg.LLDBPythonDir, "lldb-python-dir", cfg.LLDBPythonDir, "Directory of lldb's python module")
	fs.StringVar(&cfg.LLVMVersion, "llvm-version", cfg.LLVMVersion, "LLVM version for min-llvm-version gates")
	fs.StringVar(&cfg.AndroidCrossPath, "android-cross-path", cfg.AndroidCrossPath, "Android NDK toolchain path")

	fs.StringVar(&cfg.CC, "cc", cfg.CC, "C compiler for run-make tests")
	fs.StringVar(&cfg.CXX, "cxx", cfg.CXX, "C++ compiler for run-make tests")
	fs.StringVar(&cfg.CFlags, "cflags", cfg.CFlags, "C flags for run-make tests")
	fs.StringVar(&cfg.LLVMComponents, "llvm-components", cfg.LLVMComponents, "LLVM components for run-make tests")
	fs.StringVar(&cfg.LLVMCxxFlags, "llvm-cxxflags", cfg.LLVMCxxFlags, "LLVM C++ flags for run-make tests")
	fs.StringVar(&cfg.NodePath, "nodejs", cfg.NodePath, "node binary for emscripten targets")

	fs.BoolVarP(&cfg.Verbose, "verbose", "v", cfg.Verbose, "Log every command and echo its output")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, "Only print failures and the summary")
	fs.BoolVar(&cfg.Color, "color", cfg.Color, "Colorize output when writing to a terminal")
	fs.StringVar(&cfg.OutputJSONFile, "output-json-file", cfg.OutputJSONFile, "Results file, relative to the build base")
	fs.StringVar(&cfg.ResultsDSN, "results-dsn", cfg.ResultsDSN, "MySQL DSN for the results history")
}

// BindSelectionFlags registers the flags choosing which tests run.
func BindSelectionFlags(fs *pflag.FlagSet, cfg *config.Config) {
	fs.StringVarP(&cfg.Filter, "filter", "f", cfg.Filter, "Filter tests by name (substring, or wildcards such as '*borrowck*')")
	fs.BoolVar(&cfg.FilterExact, "exact", cfg.FilterExact, "Match the filter against the full test name")
	fs.BoolVar(&cfg.RunIgnored, "ignored", cfg.RunIgnored, "Run ignored tests too")
}

// Resolve applies the config sources in order of precedence: defaults,
// the YAML file, .env and COMPILETEST_* variables, then the flags that were
// explicitly set on the command line.
func Resolve(cmd *cobra.Command, cfg *config.Config, flags *Flags) error {
	set := map[string]string{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		set[f.Name] = f.Value.String()
	})

	if err := cfg.LoadFile(flags.ConfigFile); err != nil {
		return err
	}
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if err := cfg.LoadEnv(wd); err != nil {
		return err
	}
	for name, value := range set {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("invalid value for --%s: %w", name, err)
		}
	}

	cfg.ApplyFlags(flags.ToConfigFlags())
	return cfg.Validate()
}
