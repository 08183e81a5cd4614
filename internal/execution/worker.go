package execution

import (
	"context"
	"sort"
	"sync"
	"time"

	"compiletest/internal/config"
	"compiletest/internal/domain"
	"compiletest/internal/ui"
)

// WorkerPool manages a pool of workers for parallel test execution
type WorkerPool struct {
	config   *config.Config
	runner   *Runner
	progress *ui.ProgressBar
}

// NewWorkerPool creates a new WorkerPool
func NewWorkerPool(cfg *config.Config, runner *Runner) *WorkerPool {
	return &WorkerPool{config: cfg, runner: runner}
}

// SetProgress sets the progress bar for the worker pool
func (wp *WorkerPool) SetProgress(progress *ui.ProgressBar) {
	wp.progress = progress
}

// Execute executes tests in parallel. With failFast, no new test starts
// after the first failure. Results are sorted by test name.
func (wp *WorkerPool) Execute(ctx context.Context, tests []domain.Test, failFast bool) ([]domain.TestResult, time.Duration) {
	if len(tests) == 0 {
		return nil, 0
	}
	// Stopping the feed lets running tests finish.
	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	testQueue := make(chan domain.Test)
	results := make(chan domain.TestResult, len(tests))

	go func() {
		defer close(testQueue)
		for _, test := range tests {
			select {
			case <-feedCtx.Done():
				return
			case testQueue <- test:
			}
		}
	}()

	var mu sync.Mutex
	var passed, failed, ignored int
	startTime := time.Now()
	workerCount := wp.config.Concurrency()

	var wg sync.WaitGroup
	for i := 1; i <= workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for test := range testQueue {
				if feedCtx.Err() != nil {
					continue
				}
				result := wp.runner.Run(ctx, test)
				results <- result
				mu.Lock()
				switch result.Outcome {
				case domain.Passed:
					passed++
				case domain.Ignored:
					ignored++
				default:
					failed++
					if failFast {
						stopFeed()
					}
				}
				if wp.progress != nil {
					wp.progress.Update(passed, failed, ignored)
				}
				mu.Unlock()
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var allResults []domain.TestResult
	for result := range results {
		allResults = append(allResults, result)
	}
	if wp.progress != nil {
		wp.progress.Finish()
	}
	sort.SliceStable(allResults, func(i, j int) bool { return allResults[i].Test.Name < allResults[j].Test.Name })
	return allResults, time.Since(startTime)
}
