package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to the upper-cased yaml key of each setting.
const EnvPrefix = "COMPILETEST_"

// DefaultConfigFile is looked up in the working directory when no file is given.
const DefaultConfigFile = "compiletest.yaml"

// LoadFile merges a YAML config file into c. A missing default file is not an error.
func (c *Config) LoadFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// LoadEnv applies COMPILETEST_* settings from a .env file in dir and from
// the process environment. The process environment wins.
func (c *Config) LoadEnv(dir string) error {
	values := map[string]string{}
	if fileValues, err := godotenv.Read(filepath.Join(dir, ".env")); err == nil {
		for k, v := range fileValues {
			values[k] = v
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read .env: %w", err)
	}
	for _, kv := range os.Environ() {
		k, v, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}

	bindings := c.envBindings()
	for k, raw := range values {
		if !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		target, ok := bindings[strings.TrimPrefix(k, EnvPrefix)]
		if !ok {
			continue
		}
		if err := setValue(target, raw); err != nil {
			return fmt.Errorf("invalid value for %s: %w", k, err)
		}
	}
	return nil
}

// Validate checks settings that cannot be checked field by field.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.CompareMode != "" && c.CompareMode != "nll" {
		return fmt.Errorf("unknown compare mode %q", c.CompareMode)
	}
	if c.BuildBase == "" {
		return errors.New("build base must be set")
	}
	if c.SrcBase == "" {
		return errors.New("src base must be set")
	}
	return nil
}

func (c *Config) envBindings() map[string]any {
	return map[string]any{
		"COMPILE_LIB_PATH":   &c.CompileLibPath,
		"RUN_LIB_PATH":       &c.RunLibPath,
		"RUSTC_PATH":         &c.RustcPath,
		"RUSTDOC_PATH":       &c.RustdocPath,
		"LLDB_PYTHON":        &c.LLDBPython,
		"DOCCK_PYTHON":       &c.DocckPython,
		"LLVM_FILECHECK":     &c.FileCheckPath,
		"VALGRIND_PATH":      &c.ValgrindPath,
		"FORCE_VALGRIND":     &c.ForceValgrind,
		"SRC_BASE":           &c.SrcBase,
		"BUILD_BASE":         &c.BuildBase,
		"STAGE_ID":           &c.StageID,
		"MODE":               &c.Mode,
		"COMPARE_MODE":       &c.CompareMode,
		"RUN_IGNORED":        &c.RunIgnored,
		"FILTER":             &c.Filter,
		"FILTER_EXACT":       &c.FilterExact,
		"BLESS":              &c.Bless,
		"RUNTOOL":            &c.Runtool,
		"HOST_RUSTCFLAGS":    &c.HostRustcFlags,
		"TARGET_RUSTCFLAGS":  &c.TargetRustcFlags,
		"TARGET":             &c.Target,
		"HOST":               &c.Host,
		"GDB":                &c.GDB,
		"GDB_VERSION":        &c.GDBVersion,
		"LLDB_VERSION":       &c.LLDBVersion,
		"LLDB_PYTHON_DIR":    &c.LLDBPythonDir,
		"LLVM_VERSION":       &c.LLVMVersion,
		"ANDROID_CROSS_PATH": &c.AndroidCrossPath,
		"VERBOSE":            &c.Verbose,
		"QUIET":              &c.Quiet,
		"COLOR":              &c.Color,
		"CC":                 &c.CC,
		"CXX":                &c.CXX,
		"CFLAGS":             &c.CFlags,
		"LLVM_COMPONENTS":    &c.LLVMComponents,
		"LLVM_CXXFLAGS":      &c.LLVMCxxFlags,
		"NODEJS":             &c.NodePath,
		"PROCESSORS":         &c.Processors,
		"OUTPUT_JSON_FILE":   &c.OutputJSONFile,
		"RESULTS_DSN":        &c.ResultsDSN,
	}
}

func setValue(target any, raw string) error {
	switch p := target.(type) {
	case *string:
		*p = raw
	case *Mode:
		m, err := ParseMode(raw)
		if err != nil {
			return err
		}
		*p = m
	case *bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*p = b
	case *int:
		n, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*p = n
	case *uint32:
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return err
		}
		*p = uint32(n)
	default:
		return fmt.Errorf("unsupported setting type %T", target)
	}
	return nil
}
