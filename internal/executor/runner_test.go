package executor

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

var testLanguages = domain.LanguageTable{
	domain.LanguagePython: {Version: "3.10.0"},
}

// pistonStub records execute calls and hands each one to respond
type pistonStub struct {
	mu       sync.Mutex
	requests []ExecuteRequest
	respond  func(w http.ResponseWriter, r *http.Request, req ExecuteRequest)
}

func (p *pistonStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/execute" {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	var req ExecuteRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()
	p.respond(w, r, req)
}

func (p *pistonStub) sent() []ExecuteRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ExecuteRequest(nil), p.requests...)
}

func writeRun(w http.ResponseWriter, stdout, stderr string, code int) {
	body, _ := sonic.Marshal(map[string]interface{}{
		"language": "python",
		"version":  "3.10.0",
		"run": map[string]interface{}{
			"stdout": stdout,
			"stderr": stderr,
			"output": stdout,
			"code":   code,
			"time":   0.02,
			"memory": 1024,
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

func newTestRunner(t *testing.T, stub *pistonStub, timeout time.Duration) *Runner {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)
	return NewRunner(NewPistonClient(server.URL, server.Client()), testLanguages, timeout, zap.NewNop())
}

func TestRunAllCasesPass(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		writeRun(w, req.Stdin+"\n", "", 0)
	}}
	runner := newTestRunner(t, stub, time.Second)

	cases := []domain.TestCase{{Input: "1", Output: "1"}, {Input: "2", Output: "2 "}}
	results, err := runner.Run(context.Background(), domain.LanguagePython, "print(input())", cases)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 || !domain.Aggregate(results).AllPassed {
		t.Fatalf("expected both cases to pass, got %+v", results)
	}
	sent := stub.sent()
	if sent[0].Version != "3.10.0" || sent[0].Files[0].Content != "print(input())" {
		t.Fatalf("unexpected request %+v", sent[0])
	}
	if sent[1].Stdin != "2" {
		t.Fatalf("cases must run in order, got stdin %q", sent[1].Stdin)
	}
}

func TestRunStopsAfterFirstError(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		if req.Stdin == "2" {
			writeRun(w, "", "ZeroDivisionError: division by zero", 1)
			return
		}
		writeRun(w, req.Stdin, "", 0)
	}}
	runner := newTestRunner(t, stub, time.Second)

	cases := []domain.TestCase{{Input: "1", Output: "1"}, {Input: "2", Output: "2"}, {Input: "3", Output: "3"}}
	results, err := runner.Run(context.Background(), domain.LanguagePython, "code", cases)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 2 || len(stub.sent()) != 2 {
		t.Fatalf("expected the run to stop after case 2, got %d results and %d requests", len(results), len(stub.sent()))
	}
	verdict := domain.Aggregate(results)
	if !strings.HasPrefix(verdict.Message(), "Syntax Error: ZeroDivisionError") {
		t.Fatalf("unexpected message %q", verdict.Message())
	}
}

func TestRunReportsCompileFailure(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		w.Write([]byte(`{"language":"cpp","version":"10.2.0",
			"compile":{"stdout":"","stderr":"error: expected ';'","output":"error: expected ';'","code":1},
			"run":{"stdout":"","stderr":"","output":"","code":null,"signal":null}}`))
	}}
	server := httptest.NewServer(stub)
	defer server.Close()
	languages := domain.LanguageTable{domain.LanguageCPP: {Version: "10.2.0"}}
	runner := NewRunner(NewPistonClient(server.URL, server.Client()), languages, time.Second, zap.NewNop())

	results, err := runner.Run(context.Background(), domain.LanguageCPP, "int main() {}", []domain.TestCase{{Input: "", Output: "1"}, {Input: "", Output: "2"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 || results[0].Error != "error: expected ';'" || results[0].Passed() {
		t.Fatalf("expected one failing result carrying the compiler error, got %+v", results)
	}
}

func TestRunServiceFailureDiscardsResults(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		if req.Stdin == "2" {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"runtime crashed"}`))
			return
		}
		writeRun(w, req.Stdin, "", 0)
	}}
	runner := newTestRunner(t, stub, time.Second)

	results, err := runner.Run(context.Background(), domain.LanguagePython, "code", []domain.TestCase{{Input: "1", Output: "1"}, {Input: "2", Output: "2"}})
	if !errors.Is(err, domain.ErrExecutionUnavailable) {
		t.Fatalf("expected ErrExecutionUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "runtime crashed") {
		t.Fatalf("expected service message in error, got %v", err)
	}
	if results != nil {
		t.Fatalf("expected no partial results, got %+v", results)
	}
}

func TestRunTimeout(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}}
	runner := newTestRunner(t, stub, 50*time.Millisecond)

	_, err := runner.Run(context.Background(), domain.LanguagePython, "while True: pass", []domain.TestCase{{Input: "", Output: ""}})
	if !errors.Is(err, domain.ErrExecutionTimeout) {
		t.Fatalf("expected ErrExecutionTimeout, got %v", err)
	}
}

func TestRunUnsupportedLanguage(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		t.Error("no request expected")
	}}
	runner := newTestRunner(t, stub, time.Second)

	_, err := runner.Run(context.Background(), domain.LanguageJava, "class Main {}", []domain.TestCase{{Input: "", Output: ""}})
	if !errors.Is(err, domain.ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}
}

func TestExitCodeWithoutCode(t *testing.T) {
	out := StageOutput{Output: "1"}
	if out.ExitCode() != -1 {
		t.Fatalf("expected -1 for a signalled process, got %d", out.ExitCode())
	}
	if Evaluate(domain.TestCase{Output: "1"}, &out).Passed() {
		t.Fatal("a killed process must not pass even with matching output")
	}
}

func TestRunNonZeroExitFailsAndStops(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		writeRun(w, req.Stdin, "", 1)
	}}
	runner := newTestRunner(t, stub, time.Second)

	cases := []domain.TestCase{{Input: "1", Output: "1"}, {Input: "2", Output: "2"}}
	results, err := runner.Run(context.Background(), domain.LanguagePython, "code", cases)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 1 || len(stub.sent()) != 1 {
		t.Fatalf("expected the run to stop after the first case, got %d results and %d requests", len(results), len(stub.sent()))
	}
	if results[0].Passed() || results[0].ActualOutput != "1" || results[0].Error != "" {
		t.Fatalf("matching output with a non-zero exit must fail, got %+v", results[0])
	}
}

func TestRunWrongOutputContinues(t *testing.T) {
	stub := &pistonStub{respond: func(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
		if req.Stdin == "1" {
			writeRun(w, "wrong", "", 0)
			return
		}
		writeRun(w, req.Stdin, "", 0)
	}}
	runner := newTestRunner(t, stub, time.Second)

	cases := []domain.TestCase{{Input: "1", Output: "1"}, {Input: "2", Output: "2"}, {Input: "3", Output: "3"}}
	results, err := runner.Run(context.Background(), domain.LanguagePython, "code", cases)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(results) != 3 || len(stub.sent()) != 3 {
		t.Fatalf("expected every case to run, got %d results and %d requests", len(results), len(stub.sent()))
	}
	if results[0].Passed() || !results[1].Passed() || !results[2].Passed() {
		t.Fatalf("unexpected statuses %+v", results)
	}
	verdict := domain.Aggregate(results)
	if verdict.AllPassed || verdict.Passed != 2 || verdict.Message() != "Some test cases failed" {
		t.Fatalf("unexpected verdict %+v", verdict)
	}
}
