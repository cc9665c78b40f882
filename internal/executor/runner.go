package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// DefaultTimeout bounds a single execute call
const DefaultTimeout = 15 * time.Second

// Runner executes a program against test cases one at a time
type Runner struct {
	executor  Executor
	languages domain.LanguageTable
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRunner creates a runner; timeout bounds each execute call
func NewRunner(executor Executor, languages domain.LanguageTable, timeout time.Duration, logger *zap.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		executor:  executor,
		languages: languages,
		timeout:   timeout,
		logger:    logger,
	}
}

// Run executes code once per test case, in order, awaiting each call before
// the next. It stops after the first case that wrote to stderr or exited
// non-zero and returns the results collected so far. If the execution
// service itself fails the whole run fails and no results are returned.
func (r *Runner) Run(ctx context.Context, lang domain.Language, code string, cases []domain.TestCase) ([]domain.ExecutionResult, error) {
	version, ok := r.languages.Version(lang)
	if !ok {
		return nil, domain.ErrUnsupportedLanguage
	}

	results := make([]domain.ExecutionResult, 0, len(cases))
	for i, tc := range cases {
		out, err := r.execute(ctx, lang, version, code, tc.Input)
		if err != nil {
			r.logger.Warn("Execution failed, discarding run",
				zap.String("language", string(lang)),
				zap.Int("test_case", i),
				zap.Int("completed", len(results)),
				zap.Error(err),
			)
			return nil, err
		}

		result := Evaluate(tc, out)
		results = append(results, result)
		testCasesTotal.WithLabelValues(string(lang), string(result.Status)).Inc()

		if result.Error != "" || out.ExitCode() != 0 {
			if i < len(cases)-1 {
				runsStoppedEarlyTotal.WithLabelValues(string(lang)).Inc()
				r.logger.Debug("Stopping run after failing test case",
					zap.String("language", string(lang)),
					zap.Int("test_case", i),
					zap.Int("skipped", len(cases)-i-1),
				)
			}
			break
		}
	}
	return results, nil
}

func (r *Runner) execute(ctx context.Context, lang domain.Language, version, code, stdin string) (*StageOutput, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.executor.Execute(callCtx, &ExecuteRequest{
		Language: string(lang),
		Version:  version,
		Files:    []File{{Content: code}},
		Stdin:    stdin,
	})
	executeDurationSeconds.WithLabelValues(string(lang)).Observe(time.Since(start).Seconds())

	if err != nil {
		err = classify(ctx, err)
		outcome := "unavailable"
		if errors.Is(err, domain.ErrExecutionTimeout) {
			outcome = "timeout"
		}
		executeRequestsTotal.WithLabelValues(string(lang), outcome).Inc()
		return nil, err
	}
	executeRequestsTotal.WithLabelValues(string(lang), "ok").Inc()
	return resp.Outcome(), nil
}

// classify maps an executor error onto the timeout or unavailable kinds.
// A deadline only counts as a timeout when the caller's context is still live.
func classify(parent context.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrExecutionTimeout) && parent.Err() == nil:
		return err
	case errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil:
		return fmt.Errorf("%w: %w", domain.ErrExecutionTimeout, err)
	case errors.Is(err, domain.ErrExecutionUnavailable):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrExecutionUnavailable, err)
	}
}

// Evaluate turns a stage output into the result of one test case. Outputs are
// compared after trimming and the case passes only with a zero exit code.
func Evaluate(tc domain.TestCase, out *StageOutput) domain.ExecutionResult {
	actual := strings.TrimSpace(out.Output)
	expected := strings.TrimSpace(tc.Output)

	status := domain.StatusFail
	if actual == expected && out.ExitCode() == 0 {
		status = domain.StatusPass
	}

	return domain.ExecutionResult{
		Input:          tc.Input,
		ExpectedOutput: expected,
		ActualOutput:   actual,
		ExecutionTime:  out.Duration(),
		MemoryUsed:     out.Memory,
		Status:         status,
		Error:          strings.TrimSpace(out.Stderr),
	}
}
