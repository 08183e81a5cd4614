package runtest

import (
	"path/filepath"
	"runtime"
	"strings"

	"compiletest/internal/config"
	"compiletest/internal/domain"
)

// UIExtensions are the output kinds compared against golden files.
var UIExtensions = []string{"stderr", "stdout"}

// OutputBase is the path prefix of everything a test writes, unique per
// test file, revision and stage:
// <build_base>/<relative_dir>/<stem>[.<rev>].<stage_id>
func OutputBase(cfg *config.Config, paths domain.TestPaths, rev string) string {
	name := paths.Stem()
	if rev != "" {
		name += "." + rev
	}
	return filepath.Join(cfg.BuildBase, paths.RelativeDir, name+"."+cfg.StageID)
}

// StampPath is where a successful run of the test records the config hash.
func StampPath(cfg *config.Config, paths domain.TestPaths, rev string) string {
	return OutputBase(cfg, paths, rev) + cfg.Mode.Disambiguator() + ".stamp"
}

// ExpectedOutputPath names the golden file of one output kind:
// <test>.[<rev>.][<compare-mode>.]<kind> next to the test source.
func ExpectedOutputPath(paths domain.TestPaths, rev, compareMode, kind string) string {
	var parts []string
	if rev != "" {
		parts = append(parts, rev)
	}
	if compareMode != "" {
		parts = append(parts, compareMode)
	}
	parts = append(parts, kind)
	file := paths.File
	return strings.TrimSuffix(file, filepath.Ext(file)) + "." + strings.Join(parts, ".")
}

// AuxDir is the directory holding a file's auxiliary sources.
func AuxDir(testFile string) string {
	return filepath.Join(filepath.Dir(testFile), "auxiliary")
}

// auxOutputDir collects compiled auxiliary crates of one test.
func (cx *TestCx) auxOutputDir() string {
	return cx.base + cx.cfg.Mode.Disambiguator() + ".libaux"
}

func (cx *TestCx) incrementalDir() string {
	return cx.base + ".inc"
}

func (cx *TestCx) exeName() string {
	if strings.Contains(cx.cfg.Target, "emscripten") {
		return cx.base + ".js"
	}
	if runtime.GOOS == "windows" {
		return cx.base + ".exe"
	}
	return cx.base
}

// outName is a sibling output file such as <base>.ll or <base>.stderr.
func (cx *TestCx) outName(ext string) string {
	return cx.base + "." + ext
}

func (cx *TestCx) outputDir() string {
	return filepath.Dir(cx.base)
}

func (cx *TestCx) mirDumpDir() string {
	return filepath.Join(cx.cfg.BuildBase, cx.paths.RelativeDir, cx.paths.Stem())
}
