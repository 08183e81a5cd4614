package config

import (
	"fmt"
	"strings"
)

// Mode selects the execution recipe applied to every test in a suite.
type Mode string

const (
	CompileFail     Mode = "compile-fail"
	ParseFail       Mode = "parse-fail"
	RunFail         Mode = "run-fail"
	RunPass         Mode = "run-pass"
	RunPassValgrind Mode = "run-pass-valgrind"
	Pretty          Mode = "pretty"
	DebugInfoGdb    Mode = "debuginfo-gdb"
	DebugInfoLldb   Mode = "debuginfo-lldb"
	Codegen         Mode = "codegen"
	Rustdoc         Mode = "rustdoc"
	CodegenUnits    Mode = "codegen-units"
	Incremental     Mode = "incremental"
	RunMake         Mode = "run-make"
	Ui              Mode = "ui"
	MirOpt          Mode = "mir-opt"
)

var allModes = []Mode{
	CompileFail, ParseFail, RunFail, RunPass, RunPassValgrind, Pretty,
	DebugInfoGdb, DebugInfoLldb, Codegen, Rustdoc, CodegenUnits,
	Incremental, RunMake, Ui, MirOpt,
}

// Modes returns every supported mode in a stable order.
func Modes() []Mode {
	out := make([]Mode, len(allModes))
	copy(out, allModes)
	return out
}

// ParseMode converts a mode name such as "compile-fail".
func ParseMode(s string) (Mode, error) {
	for _, m := range allModes {
		if string(m) == s {
			return m, nil
		}
	}
	names := make([]string, len(allModes))
	for i, m := range allModes {
		names[i] = string(m)
	}
	return "", fmt.Errorf("unknown mode %q (expected one of %s)", s, strings.Join(names, ", "))
}

func (m Mode) String() string {
	return string(m)
}

// Disambiguator keeps output of modes that may run concurrently over the
// same sources apart.
func (m Mode) Disambiguator() string {
	switch m {
	case Pretty:
		return ".pretty"
	case DebugInfoGdb:
		return ".gdb"
	case DebugInfoLldb:
		return ".lldb"
	default:
		return ""
	}
}

// IsDebugger reports modes that drive an interactive debugger.
func (m Mode) IsDebugger() bool {
	return m == DebugInfoGdb || m == DebugInfoLldb
}
