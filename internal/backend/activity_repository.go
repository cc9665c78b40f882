package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// activityRepository implements domain.ActivityRepository
type activityRepository struct {
	client *Client
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(client *Client) domain.ActivityRepository {
	return &activityRepository{client: client}
}

// Join exchanges an access key for the activity id
func (r *activityRepository) Join(ctx context.Context, kind domain.ActivityKind, accessKey string) (*domain.ActivityRef, error) {
	var path string
	var body interface{}
	switch kind {
	case domain.ActivityKindChallenge:
		path = "challenge/join"
		body = map[string]string{"challengeKey": accessKey}
	case domain.ActivityKindQuiz:
		path = "api/quizzes/join"
		body = map[string]string{"quizKey": accessKey}
	default:
		return nil, domain.ErrUnsupportedActivityKind
	}

	var out struct {
		ChallengeID string `json:"challengeID"`
		QuizID      string `json:"quizID"`
		ID          string `json:"id"`
	}
	if err := r.client.do(ctx, http.MethodPost, path, body, &out); err != nil {
		switch statusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidAccessKey, err)
		}
		return nil, err
	}

	id := out.ChallengeID
	if id == "" {
		id = out.QuizID
	}
	if id == "" {
		id = out.ID
	}
	if id == "" {
		return nil, fmt.Errorf("%w: join response carried no id", domain.ErrBackendUnavailable)
	}
	return &domain.ActivityRef{ID: id, Kind: kind}, nil
}

// FindByID loads an activity with its questions
func (r *activityRepository) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	var dto *activityDTO
	switch ref.Kind {
	case domain.ActivityKindChallenge:
		var env challengeEnvelope
		if err := r.client.do(ctx, http.MethodGet, "challenge/"+ref.ID, nil, &env); err != nil {
			return nil, mapNotFound(err, domain.ErrActivityNotFound)
		}
		dto = env.Challenge
	case domain.ActivityKindQuiz:
		var env quizEnvelope
		if err := r.client.do(ctx, http.MethodGet, "api/quizzes/"+ref.ID, nil, &env); err != nil {
			return nil, mapNotFound(err, domain.ErrActivityNotFound)
		}
		dto = env.Quiz
	default:
		return nil, domain.ErrUnsupportedActivityKind
	}

	if dto == nil {
		return nil, domain.ErrActivityNotFound
	}
	if dto.ID == "" {
		dto.ID = ref.ID
	}
	return dto.toDomain(ref.Kind)
}

// End tells the backend the participant finished a challenge. Quizzes have no
// end call.
func (r *activityRepository) End(ctx context.Context, ref domain.ActivityRef) error {
	if ref.Kind != domain.ActivityKindChallenge {
		return nil
	}
	err := r.client.do(ctx, http.MethodPost, "challenge/end", map[string]string{"challengeId": ref.ID}, nil)
	if err != nil {
		err = mapNotFound(err, domain.ErrActivityNotFound)
		if !errors.Is(err, domain.ErrActivityNotFound) && !errors.Is(err, domain.ErrUnauthorized) {
			return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
		}
		return err
	}
	return nil
}
