package backend

import (
	"context"
	"net/http"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// testCaseRepository implements domain.TestCaseRepository
type testCaseRepository struct {
	client *Client
}

// NewTestCaseRepository creates a new test case repository
func NewTestCaseRepository(client *Client) domain.TestCaseRepository {
	return &testCaseRepository{client: client}
}

// FindPublicByQuestion returns the public test cases of a question. Hidden
// cases never leave the backend.
func (r *testCaseRepository) FindPublicByQuestion(ctx context.Context, questionID string) ([]domain.TestCase, error) {
	var out struct {
		PublicTestCases []struct {
			Input  string `json:"input"`
			Output string `json:"output"`
		} `json:"publicTestCases"`
	}
	if err := r.client.do(ctx, http.MethodGet, "testCase/questions/"+questionID+"/testcases", nil, &out); err != nil {
		return nil, mapNotFound(err, domain.ErrQuestionNotFound)
	}

	cases := make([]domain.TestCase, 0, len(out.PublicTestCases))
	for _, tc := range out.PublicTestCases {
		cases = append(cases, domain.TestCase{Input: tc.Input, Output: tc.Output})
	}
	return cases, nil
}
