package backend

import (
	"context"
	"net/http"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// progressRepository implements domain.ProgressRepository for challenges.
// Quiz progress is derived from answers by the caller.
type progressRepository struct {
	client *Client
}

// NewProgressRepository creates a new progress repository
func NewProgressRepository(client *Client) domain.ProgressRepository {
	return &progressRepository{client: client}
}

// FindByActivity returns the solved set of the calling participant. A
// participant without progress yet has an empty solved set.
func (r *progressRepository) FindByActivity(ctx context.Context, ref domain.ActivityRef) (*domain.Progress, error) {
	progress := &domain.Progress{ActivityID: ref.ID, SolvedQuestions: []string{}}
	if ref.Kind != domain.ActivityKindChallenge {
		return progress, nil
	}

	var out struct {
		Progress *struct {
			User            idRef   `json:"user"`
			SolvedQuestions []idRef `json:"solvedQuestions"`
		} `json:"progress"`
	}
	if err := r.client.do(ctx, http.MethodGet, "challenge/progress/"+ref.ID, nil, &out); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return progress, nil
		}
		return nil, mapAuth(err)
	}
	if out.Progress == nil {
		return progress, nil
	}

	progress.ParticipantID = string(out.Progress.User)
	for _, id := range out.Progress.SolvedQuestions {
		if id != "" {
			progress.SolvedQuestions = append(progress.SolvedQuestions, string(id))
		}
	}
	return progress, nil
}
