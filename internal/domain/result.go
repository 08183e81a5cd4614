package domain

import "time"

// Outcome is the verdict for one test
type Outcome string

const (
	Passed  Outcome = "passed"
	Failed  Outcome = "failed"
	Ignored Outcome = "ignored"
)

// TestResult represents the result of executing one test
type TestResult struct {
	Test     Test          // The test that was executed
	Outcome  Outcome       // Verdict after should-fail inversion
	Failure  *TestFailure  // Details when the test failed
	Duration time.Duration // Time taken to execute
}

// Success reports whether the test did not fail
func (r TestResult) Success() bool {
	return r.Outcome != Failed
}

// TestResultsMeta contains metadata about a test run
type TestResultsMeta struct {
	RunID           string  `json:"run_id"`
	Mode            string  `json:"mode"`
	Suite           string  `json:"suite"`
	TotalTests      int     `json:"total_tests"`
	PassedTests     int     `json:"passed_tests"`
	FailedTests     int     `json:"failed_tests"`
	IgnoredTests    int     `json:"ignored_tests"`
	Duration        string  `json:"duration"`
	DurationSeconds float64 `json:"duration_seconds"`
	Workers         int     `json:"workers"`
	Timestamp       string  `json:"timestamp"`
}

// TestResultsOutput is the complete output structure for test results
type TestResultsOutput struct {
	Meta    TestResultsMeta `json:"meta"`
	Details []TestFailure   `json:"details"`
}
