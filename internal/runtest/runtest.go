// Package runtest executes a single test in one of the compiletest modes.
//
// Every mode is a fixed sequence of compiler, test binary and tool
// invocations. A failed step returns an *Error and aborts the test, or the
// revision being run.
package runtest

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kballard/go-shellquote"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/header"
	"compiletest/internal/parser"
	"compiletest/internal/process"
	"compiletest/internal/stamp"
)

// Recipe is the step sequence of one mode.
type Recipe interface {
	Execute(ctx context.Context, cx *TestCx) error
}

var recipes = map[config.Mode]Recipe{
	config.CompileFail:     diagnosticRecipe{},
	config.ParseFail:       diagnosticRecipe{},
	config.RunFail:         execRecipe{kind: runFail},
	config.RunPass:         execRecipe{kind: runPass},
	config.RunPassValgrind: execRecipe{kind: runValgrind},
	config.Pretty:          prettyRecipe{},
	config.DebugInfoGdb:    gdbRecipe{},
	config.DebugInfoLldb:   lldbRecipe{},
	config.Codegen:         codegenRecipe{},
	config.Rustdoc:         rustdocRecipe{},
	config.CodegenUnits:    codegenUnitsRecipe{},
	config.Incremental:     incrementalRecipe{},
	config.RunMake:         runMakeRecipe{},
	config.Ui:              uiRecipe{},
	config.MirOpt:          mirOptRecipe{},
}

// RecipeFor returns the recipe of mode m.
func RecipeFor(m config.Mode) (Recipe, error) {
	r, ok := recipes[m]
	if !ok {
		return nil, fmt.Errorf("no recipe for mode %q", m)
	}
	return r, nil
}

// Engine runs tests against one configuration.
type Engine struct {
	cfg    *config.Config
	runner *process.Runner
	parser parser.Parser
	logger log.Logger
}

// NewEngine creates a new Engine
func NewEngine(cfg *config.Config, runner *process.Runner) *Engine {
	return &Engine{
		cfg:    cfg,
		runner: runner,
		parser: parser.NewJSONParser(),
		logger: log.New("component", "runtest"),
	}
}

// Run executes the test at paths. A non-empty rev runs only that
// revision; otherwise the test runs as a whole, going through its declared
// revisions in order. The stamp is written once everything passed.
func (e *Engine) Run(ctx context.Context, paths domain.TestPaths, rev string) error {
	recipe, err := RecipeFor(e.cfg.Mode)
	if err != nil {
		return &Error{Class: ClassConfig, Message: err.Error()}
	}
	props, err := header.Load(e.cfg, paths.File, "")
	if err != nil {
		return &Error{Class: ClassConfig, Message: err.Error()}
	}

	cx := &TestCx{
		cfg:       e.cfg,
		props:     props,
		paths:     paths,
		scheduled: rev,
		base:      OutputBase(e.cfg, paths, rev),
		runner:    e.runner,
		parser:    e.parser,
		logger:    e.logger.New("test", paths.File),
	}
	if err := os.MkdirAll(cx.outputDir(), 0o755); err != nil {
		return cx.ioError(err)
	}

	switch {
	case e.cfg.Mode == config.Incremental:
		err = recipe.Execute(ctx, cx)
	case rev != "":
		err = cx.runRevision(ctx, recipe, rev)
	case len(props.Revisions) > 0:
		for _, r := range props.Revisions {
			if err = cx.runRevision(ctx, recipe, r); err != nil {
				break
			}
		}
	default:
		err = recipe.Execute(ctx, cx)
	}
	if err != nil {
		return err
	}
	return e.writeStamp(paths, rev)
}

func (e *Engine) writeStamp(paths domain.TestPaths, rev string) error {
	hash, err := e.cfg.StampHash()
	if err != nil {
		return &Error{Class: ClassIO, Revision: rev, Message: err.Error()}
	}
	if err := stamp.Write(StampPath(e.cfg, paths, rev), hash); err != nil {
		return &Error{Class: ClassIO, Revision: rev, Message: err.Error()}
	}
	return nil
}

// TestCx is the state of one test, or one revision of it, while a recipe runs.
type TestCx struct {
	cfg   *config.Config
	props *header.TestProps
	paths domain.TestPaths
	// revision selects revision-scoped directives, annotations and --cfg.
	revision string
	// scheduled is the revision the output base is keyed by.
	scheduled string
	base      string
	runner    *process.Runner
	parser    parser.Parser
	logger    log.Logger
}

func (cx *TestCx) runRevision(ctx context.Context, recipe Recipe, rev string) error {
	props, err := header.Derive(cx.cfg, cx.paths.File, rev, cx.props)
	if err != nil {
		return cx.fatal(ClassConfig, err.Error())
	}
	return recipe.Execute(ctx, cx.forRevision(rev, props))
}

func (cx *TestCx) forRevision(rev string, props *header.TestProps) *TestCx {
	cp := *cx
	cp.revision = rev
	cp.props = props
	cp.logger = cx.logger.New("revision", rev)
	return &cp
}

// withConfig runs the rest of a recipe against an adjusted config.
func (cx *TestCx) withConfig(cfg *config.Config) *TestCx {
	cp := *cx
	cp.cfg = cfg
	return &cp
}

// noRevisions rejects revisions for modes that have no use for them.
func (cx *TestCx) noRevisions() error {
	if cx.revision != "" {
		return cx.fatalf(ClassConfig, "revisions are not supported in %s mode", cx.cfg.Mode)
	}
	return nil
}

// splitFlags splits a configured flag string the way a shell would.
func (cx *TestCx) splitFlags(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	words, err := shellquote.Split(s)
	if err != nil {
		return nil, cx.fatalf(ClassConfig, "malformed flags %q: %v", s, err)
	}
	return words, nil
}

func envPairs(vars []header.EnvVar) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		out = append(out, v.Name+"="+v.Value)
	}
	return out
}

// output is what error patterns and forbidden patterns are checked against.
func (cx *TestCx) output(res *process.Result) string {
	if cx.props.CheckStdout {
		return res.Stdout + res.Stderr
	}
	return res.Stderr
}
