package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Config holds the run context shared by every test in a suite. It is
// read-only once a run starts; per-test variants are produced with Clone.
type Config struct {
	// Toolchain
	CompileLibPath string `yaml:"compile_lib_path"`
	RunLibPath     string `yaml:"run_lib_path"`
	RustcPath      string `yaml:"rustc_path"`
	RustdocPath    string `yaml:"rustdoc_path"`
	LLDBPython     string `yaml:"lldb_python"`
	DocckPython    string `yaml:"docck_python"`
	FileCheckPath  string `yaml:"llvm_filecheck"`
	ValgrindPath   string `yaml:"valgrind_path"`
	ForceValgrind  bool   `yaml:"force_valgrind"`

	// Suite
	SrcBase     string `yaml:"src_base"`
	BuildBase   string `yaml:"build_base"`
	StageID     string `yaml:"stage_id"`
	Mode        Mode   `yaml:"mode"`
	CompareMode string `yaml:"compare_mode"`

	// Selection
	RunIgnored  bool   `yaml:"run_ignored"`
	Filter      string `yaml:"filter"`
	FilterExact bool   `yaml:"filter_exact"`
	Bless       bool   `yaml:"bless"`

	// Compilation
	Runtool          string `yaml:"runtool"`
	HostRustcFlags   string `yaml:"host_rustcflags"`
	TargetRustcFlags string `yaml:"target_rustcflags"`
	Target           string `yaml:"target"`
	Host             string `yaml:"host"`

	// Debuggers. A zero GDBVersion or empty LLDBVersion means unknown.
	GDB              string `yaml:"gdb"`
	GDBVersion       uint32 `yaml:"gdb_version"`
	GDBNativeRust    bool   `yaml:"gdb_native_rust"`
	LLDBVersion      string `yaml:"lldb_version"`
	LLDBNativeRust   bool   `yaml:"lldb_native_rust"`
	LLDBPythonDir    string `yaml:"lldb_python_dir"`
	LLVMVersion      string `yaml:"llvm_version"`
	AndroidCrossPath string `yaml:"android_cross_path"`

	// Output control
	Verbose bool `yaml:"verbose"`
	Quiet   bool `yaml:"quiet"`
	Color   bool `yaml:"color"`

	// run-make tool environment
	CC             string `yaml:"cc"`
	CXX            string `yaml:"cxx"`
	CFlags         string `yaml:"cflags"`
	LLVMComponents string `yaml:"llvm_components"`
	LLVMCxxFlags   string `yaml:"llvm_cxxflags"`
	NodePath       string `yaml:"nodejs"`

	// Execution settings
	Processors int `yaml:"processors"`

	// Results
	OutputJSONFile string `yaml:"output_json_file"`
	ResultsDSN     string `yaml:"results_dsn"`

	// Command flags
	Flags Flags `yaml:"-"`
}

// Flags holds switches that only make sense for a single invocation.
type Flags struct {
	Processors   int
	FailFast     bool
	OnlyFailed   bool
	OpenFailures bool
	Shard        string
}

// New creates a new Config with defaults
func New() *Config {
	host := HostTriple()
	return &Config{
		RustcPath:      DefaultRustcPath,
		LLDBPython:     DefaultLLDBPython,
		DocckPython:    DefaultDocckPython,
		SrcBase:        DefaultSrcBase,
		BuildBase:      DefaultBuildBase(),
		StageID:        DefaultStageID,
		Mode:           DefaultMode,
		Target:         host,
		Host:           host,
		CC:             "cc",
		CXX:            "c++",
		Color:          true,
		Processors:     DefaultProcessors,
		OutputJSONFile: DefaultOutputJSONFile,
		Flags:          Flags{Processors: DefaultProcessors},
	}
}

// ApplyFlags records per-invocation switches on the config.
func (c *Config) ApplyFlags(flags Flags) {
	c.Flags = flags
	if flags.Processors > 0 {
		c.Processors = flags.Processors
	}
}

// Clone returns a shallow copy; Config has no reference fields besides
// strings, so the copy is independent.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// Concurrency is the number of tests that may run at once. Debugger modes
// are serialized since debuggers share global state.
func (c *Config) Concurrency() int {
	if c.Mode.IsDebugger() {
		return 1
	}
	if c.Processors < 1 {
		return 1
	}
	return c.Processors
}

// GetOutputPath returns the absolute path of the results file under the build base.
func (c *Config) GetOutputPath() string {
	p := c.OutputJSONFile
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.BuildBase, p)
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// SrcBaseName is the last path component of the suite root; test names
// start with it.
func (c *Config) SrcBaseName() string {
	return filepath.Base(filepath.Clean(c.SrcBase))
}

// IsCrossCompile reports whether the target differs from the host.
func (c *Config) IsCrossCompile() bool {
	return c.Target != c.Host
}

// StageName is the stage id up to the first '-', e.g. "stage2".
func (c *Config) StageName() string {
	name, _, _ := strings.Cut(c.StageID, "-")
	return name
}

// ModeDisplay is the mode with the compare mode appended, as shown in test names.
func (c *Config) ModeDisplay() string {
	if c.CompareMode == "" {
		return c.Mode.String()
	}
	return c.Mode.String() + " (" + c.CompareMode + ")"
}

// FindSrcRoot walks up from SrcBase to the checkout root, recognised by its
// src/etc directory. It returns "" when there is none.
func (c *Config) FindSrcRoot() string {
	dir, err := filepath.Abs(c.SrcBase)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, "src", "etc")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
