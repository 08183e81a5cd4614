package domain

// TestFailure represents a failed test
type TestFailure struct {
	TestName   string   `json:"test_name"`
	FilePath   string   `json:"file_path"`
	Revision   string   `json:"revision,omitempty"`
	Class      string   `json:"class"`
	Message    string   `json:"message"`
	Command    string   `json:"command,omitempty"`
	Status     *int     `json:"status,omitempty"`
	Stdout     string   `json:"stdout,omitempty"`
	Stderr     string   `json:"stderr,omitempty"`
	Mismatches []string `json:"mismatches,omitempty"`
	Resolved   bool     `json:"resolved,omitempty"` // Track if the failure is marked as resolved
}
