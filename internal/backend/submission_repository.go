package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// submissionRepository implements domain.SubmissionRepository
type submissionRepository struct {
	client *Client
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(client *Client) domain.SubmissionRepository {
	return &submissionRepository{client: client}
}

type submissionBody struct {
	Challenge string `json:"challenge"`
	Question  string `json:"question"`
	Code      string `json:"code"`
	Language  string `json:"language"`
	TimeTaken int64  `json:"timeTaken"`
}

// Create sends a submission for grading
func (r *submissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	body := submissionBody{
		Challenge: submission.ActivityID,
		Question:  submission.QuestionID,
		Code:      submission.Code,
		Language:  string(submission.Language),
		TimeTaken: submission.ElapsedSeconds,
	}
	if err := r.client.do(ctx, http.MethodPost, "submission/", body, nil); err != nil {
		err = mapNotFound(err, domain.ErrQuestionNotFound)
		if statusOf(err) == http.StatusBadRequest {
			return fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return err
	}
	return nil
}
