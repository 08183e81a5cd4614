package execution

import (
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"

	"compiletest/internal/config"
	"compiletest/internal/discovery"
	"compiletest/internal/domain"
	"compiletest/internal/header"
	"compiletest/internal/runtest"
	"compiletest/internal/stamp"
)

// Planner turns discovered test files into schedulable tests.
type Planner struct {
	config *config.Config
	common stamp.Stamp
	filter *discovery.Filter
	logger log.Logger
}

// NewPlanner creates a Planner. common is the stamp of inputs shared by
// every test, see runtest.CommonInputs.
func NewPlanner(cfg *config.Config, common stamp.Stamp) *Planner {
	return &Planner{
		config: cfg,
		common: common,
		filter: discovery.NewFilter(cfg.Filter, cfg.FilterExact),
		logger: log.New("component", "planner"),
	}
}

// Plan reads the early header of every file and returns one test per
// revision, or one per file in incremental mode or without revisions.
func (p *Planner) Plan(files []domain.TestPaths) ([]domain.Test, error) {
	var tests []domain.Test
	for _, paths := range files {
		early, err := header.LoadEarly(p.config, paths.File)
		if err != nil {
			return nil, err
		}
		revs := []string{""}
		if len(early.Revisions) > 0 && p.config.Mode != config.Incremental {
			revs = early.Revisions
		}
		for _, rev := range revs {
			test := domain.Test{
				Name:         TestName(p.config, paths, rev),
				Paths:        paths,
				Revision:     rev,
				Ignore:       early.Ignore,
				IgnoreReason: early.IgnoreReason,
				// pretty mode only checks that the source round-trips.
				ShouldFail: early.ShouldFail && p.config.Mode != config.Pretty,
			}
			if !p.filter.Match(test.Name) {
				continue
			}
			if !test.Ignore && runtest.IsUpToDate(p.config, paths, rev, early.Aux, early.Revisions, p.common) {
				test.Ignore = true
				test.IgnoreReason = "up to date"
			}
			if test.Ignore {
				p.logger.Debug("test ignored", "test", test.Name, "reason", test.IgnoreReason)
			}
			tests = append(tests, test)
		}
	}
	return tests, nil
}

// TestName is "[mode( compare-mode)] suite/rel/file(#rev)".
func TestName(cfg *config.Config, paths domain.TestPaths, rev string) string {
	path := filepath.ToSlash(filepath.Join(cfg.SrcBaseName(), paths.RelativeDir, filepath.Base(paths.File)))
	name := fmt.Sprintf("[%s] %s", cfg.ModeDisplay(), path)
	if rev != "" {
		name += "#" + rev
	}
	return name
}
