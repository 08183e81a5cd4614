package storage

import (
	"time"

	"github.com/google/uuid"

	"compiletest/internal/config"
	"compiletest/internal/domain"
)

// Storage persists and loads test run results (e.g. for the failures viewer).
type Storage interface {
	Save(output *domain.TestResultsOutput) error
	Load() (*domain.TestResultsOutput, error)
}

// NewOutput summarizes a run: counts, timing and the failure details.
// Every call gets a fresh run id.
func NewOutput(cfg *config.Config, results []domain.TestResult, duration time.Duration) *domain.TestResultsOutput {
	output := &domain.TestResultsOutput{
		Meta: domain.TestResultsMeta{
			RunID:           uuid.NewString(),
			Mode:            cfg.ModeDisplay(),
			Suite:           cfg.SrcBaseName(),
			TotalTests:      len(results),
			Duration:        duration.String(),
			DurationSeconds: duration.Seconds(),
			Workers:         cfg.Concurrency(),
			Timestamp:       time.Now().Format(time.RFC3339),
		},
		Details: []domain.TestFailure{},
	}
	for _, r := range results {
		switch r.Outcome {
		case domain.Passed:
			output.Meta.PassedTests++
		case domain.Ignored:
			output.Meta.IgnoredTests++
		case domain.Failed:
			output.Meta.FailedTests++
			if r.Failure != nil {
				output.Details = append(output.Details, *r.Failure)
			}
		}
	}
	return output
}

// Merge folds a partial re-run into the previous output: failures of
// re-run tests are replaced, everything else is kept.
func Merge(previous, rerun *domain.TestResultsOutput, rerunNames []string) *domain.TestResultsOutput {
	merged := *rerun
	rerunSet := make(map[string]bool, len(rerunNames))
	for _, n := range rerunNames {
		rerunSet[n] = true
	}
	merged.Details = nil
	for _, f := range previous.Details {
		if !rerunSet[f.TestName] {
			merged.Details = append(merged.Details, f)
		}
	}
	merged.Details = append(merged.Details, rerun.Details...)
	merged.Meta.FailedTests = len(merged.Details)
	return &merged
}
