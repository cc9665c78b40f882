package backend

import (
	"context"
	"net/http"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// leaderboardRepository implements domain.LeaderboardRepository
type leaderboardRepository struct {
	client *Client
}

// NewLeaderboardRepository creates a new leaderboard repository
func NewLeaderboardRepository(client *Client) domain.LeaderboardRepository {
	return &leaderboardRepository{client: client}
}

func leaderboardPath(ref domain.ActivityRef) (string, error) {
	switch ref.Kind {
	case domain.ActivityKindChallenge:
		return "challenge/leaderboard/" + ref.ID, nil
	case domain.ActivityKindQuiz:
		return "api/quizzes/leaderboard/" + ref.ID, nil
	default:
		return "", domain.ErrUnsupportedActivityKind
	}
}

// Fetch returns the ranked leaderboard of an activity
func (r *leaderboardRepository) Fetch(ctx context.Context, ref domain.ActivityRef) ([]domain.LeaderboardEntry, error) {
	path, err := leaderboardPath(ref)
	if err != nil {
		return nil, err
	}
	var out leaderboardEnvelope
	if err := r.client.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, mapNotFound(err, domain.ErrActivityNotFound)
	}
	return out.Leaderboard.entries(), nil
}

// Recompute asks the backend to recalculate scores and returns the result.
// Quiz leaderboards are always current, so they are only fetched.
func (r *leaderboardRepository) Recompute(ctx context.Context, ref domain.ActivityRef) ([]domain.LeaderboardEntry, error) {
	if ref.Kind != domain.ActivityKindChallenge {
		return r.Fetch(ctx, ref)
	}
	path, err := leaderboardPath(ref)
	if err != nil {
		return nil, err
	}
	var out leaderboardEnvelope
	if err := r.client.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return nil, mapNotFound(err, domain.ErrActivityNotFound)
	}
	if out.Leaderboard == nil {
		return r.Fetch(ctx, ref)
	}
	return out.Leaderboard.entries(), nil
}
