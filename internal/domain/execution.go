package domain

import "context"

// TestCase is an input paired with the output a correct program prints
type TestCase struct {
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// TestCaseRepository defines access to the public test cases of a question
type TestCaseRepository interface {
	FindPublicByQuestion(ctx context.Context, questionID string) ([]TestCase, error)
}

// ResultStatus is the outcome of a single test case
type ResultStatus string

const (
	StatusPass ResultStatus = "Pass"
	StatusFail ResultStatus = "Fail"
)

// ExecutionResult is the outcome of running one test case. A new run
// always produces a new list; results are never mutated.
type ExecutionResult struct {
	Input          string       `json:"input"`
	ExpectedOutput string       `json:"expected_output"`
	ActualOutput   string       `json:"actual_output"`
	ExecutionTime  float64      `json:"execution_time"`
	MemoryUsed     float64      `json:"memory_used"`
	Status         ResultStatus `json:"status"`
	Error          string       `json:"error,omitempty"`
}

// Passed reports whether the case passed
func (r ExecutionResult) Passed() bool {
	return r.Status == StatusPass
}

// Verdict summarizes a list of execution results
type Verdict struct {
	AllPassed  bool   `json:"all_passed"`
	AnyFailed  bool   `json:"any_failed"`
	FirstError string `json:"first_error,omitempty"`
	Passed     int    `json:"passed"`
	Total      int    `json:"total"`
}

// Aggregate folds results into a verdict. An empty list cannot pass.
func Aggregate(results []ExecutionResult) Verdict {
	v := Verdict{Total: len(results)}
	for _, r := range results {
		if r.Passed() {
			v.Passed++
		} else {
			v.AnyFailed = true
		}
		if v.FirstError == "" && r.Error != "" {
			v.FirstError = r.Error
		}
	}
	v.AllPassed = v.Total > 0 && v.Passed == v.Total
	return v
}

// Message is the single line shown to the participant after a run
func (v Verdict) Message() string {
	switch {
	case v.FirstError != "":
		return "Syntax Error: " + v.FirstError
	case v.AllPassed:
		return "All test cases passed"
	case v.Total == 0:
		return "No test cases to run"
	default:
		return "Some test cases failed"
	}
}
