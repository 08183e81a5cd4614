// Package header parses the directives at the head of a test file.
package header

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"

	"compiletest/internal/config"
)

// EnvVar is one NAME=VALUE pair from exec-env or rustc-env.
type EnvVar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// TestProps holds the directives of a test file, or of one revision of it.
// Scalar directives and compile-flags keep their first occurrence; other
// list directives accumulate in file order.
type TestProps struct {
	ErrorPatterns []string `json:"error_patterns,omitempty"`
	CompileFlags  []string `json:"compile_flags,omitempty"`
	RunFlags      []string `json:"run_flags,omitempty"`
	// PPExact is the file holding the expected pretty-printer output, or "".
	PPExact      string   `json:"pp_exact,omitempty"`
	AuxBuilds    []string `json:"aux_builds,omitempty"`
	RustcEnv     []EnvVar `json:"rustc_env,omitempty"`
	ExecEnv      []EnvVar `json:"exec_env,omitempty"`
	ForbidOutput []string `json:"forbid_output,omitempty"`
	Revisions    []string `json:"revisions,omitempty"`

	BuildAuxDocs              bool   `json:"build_aux_docs,omitempty"`
	ForceHost                 bool   `json:"force_host,omitempty"`
	CheckStdout               bool   `json:"check_stdout,omitempty"`
	NoPreferDynamic           bool   `json:"no_prefer_dynamic,omitempty"`
	PrettyExpanded            bool   `json:"pretty_expanded,omitempty"`
	PrettyMode                string `json:"pretty_mode"`
	PrettyCompareOnly         bool   `json:"pretty_compare_only,omitempty"`
	MustCompileSuccessfully   bool   `json:"must_compile_successfully,omitempty"`
	CheckTestLineNumbersMatch bool   `json:"check_test_line_numbers_match,omitempty"`
	RunPass                   bool   `json:"run_pass,omitempty"`

	NormalizeStdout []NormalizeRule `json:"normalize_stdout,omitempty"`
	NormalizeStderr []NormalizeRule `json:"normalize_stderr,omitempty"`

	// IncrementalDir is set by the revision runner, never by the file.
	IncrementalDir string `json:"incremental_dir,omitempty"`
}

// DefaultPrettyMode is the --unpretty mode used without a pretty-mode directive.
const DefaultPrettyMode = "normal"

// New returns empty properties.
func New() *TestProps {
	return &TestProps{PrettyMode: DefaultPrettyMode}
}

// Load parses the header of path for revision rev ("" for the base
// properties). A directory is treated as a run-make test whose directives
// live in its Makefile; a directory without one has no directives.
func Load(cfg *config.Config, path, rev string) (*TestProps, error) {
	props := New()
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

	p := &propsParser{cfg: cfg, path: path, props: props, seen: map[tag]bool{}}
	if err := iterHeader(f, commentPrefix(src), rev, p.line); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return props, nil
}

// Override adjusts properties derived from another set.
type Override func(*TestProps)

// WithIncrementalDir points a derived set at the incremental state of its base.
func WithIncrementalDir(dir string) Override {
	return func(p *TestProps) { p.IncrementalDir = dir }
}

// WithCompileFlags appends flags after those parsed from the file.
func WithCompileFlags(flags ...string) Override {
	return func(p *TestProps) { p.CompileFlags = append(p.CompileFlags, flags...) }
}

// With returns a copy of p with the overrides applied in order.
func (p *TestProps) With(overrides ...Override) *TestProps {
	cp := p.Clone()
	for _, o := range overrides {
		o(cp)
	}
	return cp
}

// Inherited lists what a derived set takes over from p. Only the
// incremental directory carries over; everything else comes from the file.
func (p *TestProps) Inherited() []Override {
	return []Override{WithIncrementalDir(p.IncrementalDir)}
}

// Derive loads the properties of path for revision rev and applies what
// base passes on. It serves both revisions of a test and auxiliary files.
func Derive(cfg *config.Config, path, rev string, base *TestProps) (*TestProps, error) {
	props, err := Load(cfg, path, rev)
	if err != nil {
		return nil, err
	}
	return props.With(base.Inherited()...), nil
}

// Clone returns a deep copy.
func (p *TestProps) Clone() *TestProps {
	cp := *p
	cp.ErrorPatterns = cloneSlice(p.ErrorPatterns)
	cp.CompileFlags = cloneSlice(p.CompileFlags)
	cp.RunFlags = cloneSlice(p.RunFlags)
	cp.AuxBuilds = cloneSlice(p.AuxBuilds)
	cp.RustcEnv = cloneSlice(p.RustcEnv)
	cp.ExecEnv = cloneSlice(p.ExecEnv)
	cp.ForbidOutput = cloneSlice(p.ForbidOutput)
	cp.Revisions = cloneSlice(p.Revisions)
	cp.NormalizeStdout = cloneSlice(p.NormalizeStdout)
	cp.NormalizeStderr = cloneSlice(p.NormalizeStderr)
	return &cp
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

type propsParser struct {
	cfg   *config.Config
	path  string
	props *TestProps
	seen  map[tag]bool
}

// first reports whether t is seen for the first time.
func (p *propsParser) first(t tag) bool {
	if p.seen[t] {
		return false
	}
	p.seen[t] = true
	return true
}

func (p *propsParser) line(hl headerLine) error {
	if strings.HasPrefix(hl.name, normalizeStdoutPrefix) || strings.HasPrefix(hl.name, normalizeStderrPrefix) {
		return p.normalize(hl)
	}
	d, ok := directiveTable[hl.name]
	if !ok {
		return nil
	}
	if d.arity == value && !hl.hasPayload {
		return nil
	}

	props := p.props
	payload := expandVariables(p.cfg, hl.payload)
	switch d.tag {
	case tagErrorPattern:
		props.ErrorPatterns = append(props.ErrorPatterns, payload)
	case tagCompileFlags:
		if p.first(d.tag) {
			props.CompileFlags = strings.Fields(payload)
		}
	case tagRunFlags:
		if p.first(d.tag) {
			flags, err := shellquote.Split(payload)
			if err != nil {
				return fmt.Errorf("malformed run-flags: %w", err)
			}
			props.RunFlags = flags
		}
	case tagPPExact:
		if p.first(d.tag) {
			if hl.hasPayload && payload != "" {
				props.PPExact = payload
			} else {
				props.PPExact = filepath.Base(p.path)
			}
		}
	case tagAuxBuild:
		props.AuxBuilds = append(props.AuxBuilds, payload)
	case tagExecEnv:
		props.ExecEnv = append(props.ExecEnv, parseEnv(payload))
	case tagRustcEnv:
		props.RustcEnv = append(props.RustcEnv, parseEnv(payload))
	case tagForbidOutput:
		props.ForbidOutput = append(props.ForbidOutput, payload)
	case tagRevisions:
		if p.first(d.tag) {
			props.Revisions = strings.Fields(payload)
		}
	case tagPrettyMode:
		if p.first(d.tag) {
			props.PrettyMode = payload
		}
	case tagBuildAuxDocs:
		props.BuildAuxDocs = true
	case tagForceHost:
		props.ForceHost = true
	case tagCheckStdout:
		props.CheckStdout = true
	case tagNoPreferDynamic:
		props.NoPreferDynamic = true
	case tagPrettyExpanded:
		props.PrettyExpanded = true
	case tagPrettyCompareOnly:
		props.PrettyCompareOnly = true
	case tagMustCompileSuccessfully:
		props.MustCompileSuccessfully = true
	case tagCheckTestLineNumbersMatch:
		props.CheckTestLineNumbersMatch = true
	case tagRunPass:
		props.RunPass = true
	}
	return nil
}

func (p *propsParser) normalize(hl headerLine) error {
	var target *[]NormalizeRule
	var suffix string
	switch {
	case strings.HasPrefix(hl.name, normalizeStdoutPrefix):
		target, suffix = &p.props.NormalizeStdout, strings.TrimPrefix(hl.name, normalizeStdoutPrefix)
	default:
		target, suffix = &p.props.NormalizeStderr, strings.TrimPrefix(hl.name, normalizeStderrPrefix)
	}
	if suffix != "" {
		if !strings.HasPrefix(suffix, "-") || !MatchesCfgName(p.cfg, suffix[1:]) {
			return nil
		}
	}
	if !hl.hasPayload {
		return errors.New("normalization directive without a rule")
	}
	rule, err := parseNormalizeRule(expandVariables(p.cfg, hl.payload))
	if err != nil {
		return err
	}
	*target = append(*target, rule)
	return nil
}

func parseEnv(payload string) EnvVar {
	name, val, _ := strings.Cut(payload, "=")
	return EnvVar{Name: strings.TrimSpace(name), Value: val}
}

// expandVariables substitutes {{cwd}}, {{src-base}} and {{build-base}}.
func expandVariables(cfg *config.Config, s string) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	cwd, _ := os.Getwd()
	return strings.NewReplacer(
		"{{cwd}}", cwd,
		"{{src-base}}", cfg.SrcBase,
		"{{build-base}}", cfg.BuildBase,
	).Replace(s)
}

// headerSource returns the file whose header describes the test at path.
func headerSource(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to read test file: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	makefile := filepath.Join(path, "Makefile")
	if _, err := os.Stat(makefile); err != nil {
		return "", nil
	}
	return makefile, nil
}
