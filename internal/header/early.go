package header

import (
	"fmt"
	"os"
	"strings"

	"compiletest/internal/config"
	"compiletest/internal/version"
)

// EarlyProps are the directives needed before a test is scheduled.
type EarlyProps struct {
	Ignore       bool
	IgnoreReason string
	ShouldFail   bool
	Aux          []string
	Revisions    []string
}

// LoadEarly reads the revision-independent header of path and evaluates
// its ignore predicates against cfg.
func LoadEarly(cfg *config.Config, path string) (*EarlyProps, error) {
	props := &EarlyProps{}
	if reason, ok := debuggerUnavailable(cfg); ok {
		props.ignore(reason)
	}

	src, err := headerSource(path)
	if err != nil {
		return nil, err
	}
	if src == "" {
		return props, nil
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer f.Close()

	seenRevisions := false
	err = iterHeader(f, commentPrefix(src), "", func(hl headerLine) error {
		if d, ok := directiveTable[hl.name]; ok {
			switch d.tag {
			case tagShouldFail:
				props.ShouldFail = true
			case tagAuxBuild:
				if hl.hasPayload {
					props.Aux = append(props.Aux, expandVariables(cfg, hl.payload))
				}
			case tagRevisions:
				if hl.hasPayload && !seenRevisions {
					seenRevisions = true
					props.Revisions = strings.Fields(hl.payload)
				}
			case tagMinGDBVersion, tagIgnoreGDBVersion, tagMinLLDBVersion, tagMinLLVMVersion:
				ignored, err := versionGateIgnores(cfg, d.tag, hl.payload)
				if err != nil {
					return err
				}
				if ignored {
					props.ignore(hl.name + " " + hl.payload)
				}
			}
			return nil
		}
		if strings.HasPrefix(hl.name, ignorePrefix) && MatchesCfgName(cfg, hl.name[len(ignorePrefix):]) {
			props.ignore(hl.name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return props, nil
}

func (p *EarlyProps) ignore(reason string) {
	if !p.Ignore {
		p.Ignore = true
		p.IgnoreReason = reason
	}
}

// MatchesCfgName reports whether name selects the configured run in an
// ignore-<name> or normalize-*-<name> directive.
func MatchesCfgName(cfg *config.Config, name string) bool {
	if name == "" {
		return false
	}
	switch name {
	case "test":
		return true
	case cfg.Target, GetArch(cfg.Target), GetPointerWidth(cfg.Target), cfg.StageName():
		return true
	}
	if targetOS := GetOS(cfg.Target); targetOS != "" && name == targetOS {
		return true
	}
	if env := GetEnv(cfg.Target); env != "" && name == env {
		return true
	}
	switch {
	case name == "cross-compile":
		return cfg.IsCrossCompile()
	case name == "pretty":
		return cfg.Mode == config.Pretty
	case name == "gdb":
		return cfg.Mode == config.DebugInfoGdb
	case name == "lldb":
		return cfg.Mode == config.DebugInfoLldb
	case strings.HasPrefix(name, "compare-mode-"):
		return cfg.CompareMode != "" && name == "compare-mode-"+cfg.CompareMode
	}
	return false
}

// versionGateIgnores evaluates min-*-version and ignore-gdb-version. A gate
// never fires when the corresponding tool version is unknown.
func versionGateIgnores(cfg *config.Config, t tag, payload string) (bool, error) {
	payload = strings.TrimSpace(payload)
	switch t {
	case tagMinGDBVersion, tagIgnoreGDBVersion:
		if cfg.Mode != config.DebugInfoGdb || cfg.GDBVersion == 0 {
			return false, nil
		}
		if payload == "" {
			return false, fmt.Errorf("gdb version directive without a version")
		}
		if t == tagMinGDBVersion {
			return cfg.GDBVersion < version.GDBToInt(firstWord(payload)), nil
		}
		lo, hi, err := gdbVersionRange(payload)
		if err != nil {
			return false, err
		}
		return cfg.GDBVersion >= lo && cfg.GDBVersion <= hi, nil

	case tagMinLLDBVersion:
		if cfg.Mode != config.DebugInfoLldb || cfg.LLDBVersion == "" {
			return false, nil
		}
		want, err := version.LLDBToInt(firstWord(payload))
		if err != nil {
			return false, err
		}
		actual, err := version.LLDBToInt(cfg.LLDBVersion)
		if err != nil {
			return false, err
		}
		return actual < want, nil

	case tagMinLLVMVersion:
		if cfg.LLVMVersion == "" {
			return false, nil
		}
		cmp, err := version.CompareLLVM(cfg.LLVMVersion, firstWord(payload))
		if err != nil {
			return false, err
		}
		return cmp < 0, nil
	}
	return false, nil
}

// gdbVersionRange parses "X" or "X - Y". A single version is a range of one.
func gdbVersionRange(payload string) (uint32, uint32, error) {
	first, second, isRange := strings.Cut(payload, "-")
	lo := version.GDBToInt(strings.TrimSpace(first))
	if !isRange {
		return lo, lo, nil
	}
	hi := version.GDBToInt(firstWord(second))
	if hi < lo {
		return 0, 0, fmt.Errorf("malformed gdb version range %q: max < min", payload)
	}
	return lo, hi, nil
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// debuggerUnavailable reports why a debugger mode cannot run on this host.
func debuggerUnavailable(cfg *config.Config) (string, bool) {
	switch cfg.Mode {
	case config.DebugInfoGdb:
		if cfg.GDB == "" {
			return "gdb not available", true
		}
	case config.DebugInfoLldb:
		if cfg.LLDBPythonDir == "" {
			return "lldb python directory not configured", true
		}
		if version.IsBlacklistedLLDB(cfg.LLDBVersion) {
			return "lldb version " + cfg.LLDBVersion + " is blacklisted", true
		}
	}
	return "", false
}
