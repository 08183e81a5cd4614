package config

import (
	"os"
	"runtime"
)

const (
	// DefaultSrcBase is the default directory containing the tests
	DefaultSrcBase = "tests/run-pass"
	// DefaultRustcPath is the compiler looked up on PATH
	DefaultRustcPath = "rustc"
	// DefaultStageID names the build stage
	DefaultStageID = "stage-id"
	// DefaultMode is the default test mode
	DefaultMode = RunPass
	// DefaultLLDBPython runs the lldb batch-mode driver
	DefaultLLDBPython = "python"
	// DefaultDocckPython runs htmldocck
	DefaultDocckPython = "docck-python"
	// DefaultOutputJSONFile is the results file name under the build base
	DefaultOutputJSONFile = "compiletest-results.json"
	// DefaultProcessors is the default number of workers
	DefaultProcessors = 4
	// DefaultTestExtension marks test source files
	DefaultTestExtension = ".rs"
)

// DefaultBuildBase is where outputs go when nothing else is configured.
func DefaultBuildBase() string {
	return os.TempDir()
}

// HostTriple returns the target triple of the machine running the harness.
func HostTriple() string {
	arch := map[string]string{
		"amd64":   "x86_64",
		"386":     "i686",
		"arm64":   "aarch64",
		"arm":     "arm",
		"ppc64":   "powerpc64",
		"ppc64le": "powerpc64le",
		"s390x":   "s390x",
		"mips":    "mips",
		"mipsle":  "mipsel",
		"riscv64": "riscv64gc",
		"wasm":    "wasm32",
	}[runtime.GOARCH]
	if arch == "" {
		arch = runtime.GOARCH
	}

	switch runtime.GOOS {
	case "linux":
		return arch + "-unknown-linux-gnu"
	case "darwin":
		return arch + "-apple-darwin"
	case "windows":
		return arch + "-pc-windows-msvc"
	case "android":
		return arch + "-linux-android"
	case "freebsd", "netbsd", "openbsd", "dragonfly":
		return arch + "-unknown-" + runtime.GOOS
	default:
		return arch + "-unknown-" + runtime.GOOS
	}
}
