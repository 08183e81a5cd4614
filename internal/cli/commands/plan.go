package commands

import (
	"context"

	"compiletest/internal/config"
	"compiletest/internal/discovery"
	"compiletest/internal/domain"
	"compiletest/internal/execution"
	"compiletest/internal/runtest"
)

// planTests discovers the suite and returns the tests of this run, after
// filtering and sharding.
func planTests(ctx context.Context, cfg *config.Config) ([]domain.Test, error) {
	cfg.DetectDebuggers(ctx)

	scanner := discovery.NewScanner(cfg.BuildBase, cfg.Mode == config.RunMake)
	files, err := scanner.Scan(cfg.SrcBase)
	if err != nil {
		return nil, err
	}

	planner := execution.NewPlanner(cfg, runtest.CommonInputs(cfg))
	tests, err := planner.Plan(files)
	if err != nil {
		return nil, err
	}

	shard, err := execution.ParseShard(cfg.Flags.Shard)
	if err != nil {
		return nil, err
	}
	return shard.Select(execution.NewRoundRobinScheduler(), tests), nil
}

// failedNames is the set of tests that failed in the stored run, or nil
// when there is none.
func failedNames(output *domain.TestResultsOutput) map[string]bool {
	if output == nil {
		return nil
	}
	names := make(map[string]bool, len(output.Details))
	for _, f := range output.Details {
		names[f.TestName] = true
	}
	return names
}
