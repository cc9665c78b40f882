// Package executor runs participant code against test cases on a Piston
// compatible execution service.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// DefaultBaseURL is the public Piston instance
const DefaultBaseURL = "https://emkc.org/api/v2/piston"

// File is one source file of an execution request
type File struct {
	Content string `json:"content"`
}

// ExecuteRequest is the body of POST /execute
type ExecuteRequest struct {
	Language string `json:"language"`
	Version  string `json:"version"`
	Files    []File `json:"files"`
	Stdin    string `json:"stdin"`
}

// StageOutput is what one stage (compile or run) of an execution produced
type StageOutput struct {
	Stdout  string  `json:"stdout"`
	Stderr  string  `json:"stderr"`
	Output  string  `json:"output"`
	Code    *int    `json:"code"`
	Signal  *string `json:"signal"`
	Time    float64 `json:"time"`
	CPUTime float64 `json:"cpu_time"`
	Memory  float64 `json:"memory"`
}

// ExitCode returns the stage exit code; a process killed by a signal has none
// and is reported as -1
func (s *StageOutput) ExitCode() int {
	if s.Code == nil {
		return -1
	}
	return *s.Code
}

// Duration returns the reported execution time
func (s *StageOutput) Duration() float64 {
	if s.Time > 0 {
		return s.Time
	}
	return s.CPUTime
}

// ExecuteResponse is the body returned by POST /execute
type ExecuteResponse struct {
	Language string       `json:"language"`
	Version  string       `json:"version"`
	Run      StageOutput  `json:"run"`
	Compile  *StageOutput `json:"compile,omitempty"`
	Message  string       `json:"message,omitempty"`
}

// Outcome returns the stage that decides the result: the compile stage when
// compilation failed, the run stage otherwise
func (r *ExecuteResponse) Outcome() *StageOutput {
	if r.Compile != nil && r.Compile.ExitCode() != 0 {
		return r.Compile
	}
	return &r.Run
}

// Executor executes one program invocation
type Executor interface {
	Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error)
}

// PistonClient talks to the Piston HTTP API
type PistonClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewPistonClient creates a client for the Piston instance at baseURL
func NewPistonClient(baseURL string, httpClient *http.Client) *PistonClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PistonClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Execute sends a single execution request
func (c *PistonClient) Execute(ctx context.Context, req *ExecuteRequest) (*ExecuteResponse, error) {
	body, err := sonic.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode execute request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, transportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		var failed ExecuteResponse
		_ = sonic.Unmarshal(payload, &failed)
		msg := failed.Message
		if msg == "" {
			msg = truncate(string(payload), 200)
		}
		return nil, fmt.Errorf("%w: status %d: %s", domain.ErrExecutionUnavailable, resp.StatusCode, msg)
	}

	var out ExecuteResponse
	if err := sonic.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", domain.ErrExecutionUnavailable, err)
	}
	return &out, nil
}

func transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrExecutionTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrExecutionUnavailable, err)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
