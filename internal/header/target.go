package header

import "strings"

// osTable maps substrings of a target triple to the os name used in
// ignore-<os> directives. Earlier entries win.
var osTable = []struct{ pattern, os string }{
	{"android", "android"},
	{"androideabi", "android"},
	{"bitrig", "bitrig"},
	{"cloudabi", "cloudabi"},
	{"darwin", "macos"},
	{"dragonfly", "dragonfly"},
	{"emscripten", "emscripten"},
	{"freebsd", "freebsd"},
	{"fuchsia", "fuchsia"},
	{"haiku", "haiku"},
	{"ios", "ios"},
	{"l4re", "l4re"},
	{"linux", "linux"},
	{"mingw32", "windows"},
	{"netbsd", "netbsd"},
	{"openbsd", "openbsd"},
	{"redox", "redox"},
	{"solaris", "solaris"},
	{"win32", "windows"},
	{"windows", "windows"},
}

var archTable = map[string]string{
	"aarch64":   "aarch64",
	"amd64":     "x86_64",
	"arm":       "arm",
	"arm64":     "aarch64",
	"hexagon":   "hexagon",
	"i386":      "x86",
	"i586":      "x86",
	"i686":      "x86",
	"mips":      "mips",
	"msp430":    "msp430",
	"powerpc":   "powerpc",
	"powerpc64": "powerpc64",
	"s390x":     "s390x",
	"sparc":     "sparc",
	"x86_64":    "x86_64",
	"xcore":     "xcore",
	"asmjs":     "asmjs",
	"wasm32":    "wasm32",
}

// GetOS returns the operating system of a target triple, or "" if unknown.
func GetOS(triple string) string {
	for _, e := range osTable {
		if strings.Contains(triple, e.pattern) {
			return e.os
		}
	}
	return ""
}

// GetArch returns the architecture of a target triple. Unknown
// architectures are returned unchanged.
func GetArch(triple string) string {
	first, _, _ := strings.Cut(triple, "-")
	if arch, ok := archTable[first]; ok {
		return arch
	}
	return first
}

// GetEnv returns the fourth triple component (e.g. "gnu", "musl"), if any.
func GetEnv(triple string) string {
	parts := strings.Split(triple, "-")
	if len(parts) < 4 {
		return ""
	}
	return parts[3]
}

// GetPointerWidth returns "64bit" or "32bit".
func GetPointerWidth(triple string) string {
	if (strings.Contains(triple, "64") && !strings.HasSuffix(triple, "gnux32")) || strings.HasPrefix(triple, "s390x") {
		return "64bit"
	}
	return "32bit"
}
