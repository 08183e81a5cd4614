// Package version parses and compares the version strings reported by the
// debuggers and the LLVM toolchain.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// ParseGDB normalizes a gdb version of the form "major.minor[.patch][.date]"
// to major*1_000_000 + minor*1_000 + patch. The major component must be a
// single digit and the minor component must be present.
func ParseGDB(s string) (uint32, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ".")
	if len(parts) < 2 {
		return 0, fmt.Errorf("unexpected gdb version format: %q (no minor version)", s)
	}
	major, minor := parts[0], parts[1]
	if len(major) != 1 || !isDigits(major) {
		return 0, fmt.Errorf("unexpected gdb version format: %q (major must be one digit)", s)
	}
	if minor == "" || !isDigits(minor) {
		return 0, fmt.Errorf("unexpected gdb version format: %q (bad minor version)", s)
	}
	var patch string
	if len(parts) > 2 {
		patch = leadingDigits(parts[2])
		// A long numeric third component is a build date, not a patch level.
		if len(patch) > 3 {
			patch = ""
		}
	}
	return compose(major, minor, patch)
}

// GDBToInt is ParseGDB for versions that come from test directives. A
// malformed version there is a broken fixture, so it panics.
func GDBToInt(s string) uint32 {
	v, err := ParseGDB(s)
	if err != nil {
		panic(err)
	}
	return v
}

// ExtractGDB finds the version number in the first line printed by
// `gdb --version`, e.g. "GNU gdb (GDB) Fedora 7.12.1-48.fc25".
// Numbers with a multi-digit major (distro versions) are skipped.
func ExtractGDB(line string) (uint32, bool) {
	line = strings.TrimSpace(line)
	prevDigit := false
	for pos := 0; pos < len(line); pos++ {
		c := line[pos]
		if prevDigit || !isDigit(c) {
			prevDigit = isDigit(c)
			continue
		}
		prevDigit = true

		rest := line[pos:]
		next := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' })
		if next < 0 || rest[next] != '.' {
			continue
		}
		major := rest[:next]
		rest = rest[next+1:]

		minor := rest
		patch := ""
		if idx := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); idx >= 0 {
			minor = rest[:idx]
			if rest[idx] == '.' {
				patch = leadingDigits(rest[idx+1:])
				if len(patch) > 3 {
					patch = ""
				}
			}
		}
		if len(major) != 1 || minor == "" {
			continue
		}
		v, err := compose(major, minor, patch)
		if err != nil {
			continue
		}
		return v, true
	}
	return 0, false
}

// ExtractLLDB finds the major lldb version in the first line printed by
// `lldb --version`. Apple builds look like "lldb-300.2.51" and report "300";
// upstream builds look like "lldb version 6.0.1" and report "600" so the two
// numbering schemes compare sensibly.
func ExtractLLDB(line string) (vers string, rustEnabled bool, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false, false
	}
	rustEnabled = strings.Contains(line, "rust-enabled")

	for pos := 0; pos+5 < len(line); pos++ {
		if !strings.EqualFold(line[pos:pos+4], "lldb") || line[pos+4] != '-' {
			continue
		}
		if d := leadingDigits(line[pos+5:]); d != "" {
			return d, rustEnabled, true
		}
	}
	if strings.HasPrefix(line, "lldb version ") {
		if d := leadingDigits(line[len("lldb version "):]); d != "" {
			return d + "00", rustEnabled, true
		}
	}
	return "", false, false
}

// LLDBToInt converts a major lldb version as returned by ExtractLLDB.
func LLDBToInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("unexpected lldb version format: %q", s)
	}
	return n, nil
}

// IsBlacklistedLLDB reports lldb versions known to break debuginfo tests.
func IsBlacklistedLLDB(v string) bool {
	return v == "350"
}

// CompareLLVM compares two LLVM versions such as "3.9" or "4.0.1-rust".
// Anything after the numeric prefix is ignored.
func CompareLLVM(a, b string) (int, error) {
	va, err := llvmSemver(a)
	if err != nil {
		return 0, err
	}
	vb, err := llvmSemver(b)
	if err != nil {
		return 0, err
	}
	return semver.Compare(va, vb), nil
}

func llvmSemver(s string) (string, error) {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool { return (r < '0' || r > '9') && r != '.' })
	if end >= 0 {
		s = s[:end]
	}
	s = strings.TrimSuffix(s, ".")
	v := "v" + s
	if !semver.IsValid(v) {
		return "", fmt.Errorf("unexpected llvm version format: %q", s)
	}
	return v, nil
}

func compose(major, minor, patch string) (uint32, error) {
	ma, err := strconv.ParseUint(major, 10, 32)
	if err != nil {
		return 0, err
	}
	mi, err := strconv.ParseUint(minor, 10, 32)
	if err != nil {
		return 0, err
	}
	var pa uint64
	if patch != "" {
		if pa, err = strconv.ParseUint(patch, 10, 32); err != nil {
			return 0, err
		}
	}
	return uint32((ma*1000+mi)*1000 + pa), nil
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return s[:i]
}

func isDigits(s string) bool {
	return s != "" && leadingDigits(s) == s
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
