package backend

import (
	"context"
	"net/http"
	"time"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// answerRepository implements domain.AnswerRepository
type answerRepository struct {
	client *Client
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(client *Client) domain.AnswerRepository {
	return &answerRepository{client: client}
}

type answerDTO struct {
	QuizID         idRef     `json:"quizId"`
	QuestionID     idRef     `json:"questionId"`
	SelectedOption int       `json:"selectedOption"`
	TimeTaken      int64     `json:"timeTaken"`
	AnsweredAt     time.Time `json:"answeredAt"`
}

// Upsert records the answer; the backend keeps one answer per question
func (r *answerRepository) Upsert(ctx context.Context, answer *domain.QuizAnswer) error {
	body := map[string]interface{}{
		"quizId":         answer.QuizID,
		"questionId":     answer.QuestionID,
		"selectedOption": answer.SelectedOption,
		"timeTaken":      answer.TimeTakenMs,
	}
	if err := r.client.do(ctx, http.MethodPost, "api/quizzes/answer", body, nil); err != nil {
		return mapNotFound(err, domain.ErrQuestionNotFound)
	}
	return nil
}

// FindByQuiz returns the answers already given by the calling participant
func (r *answerRepository) FindByQuiz(ctx context.Context, quizID string) ([]domain.QuizAnswer, error) {
	var out struct {
		Answers []answerDTO `json:"answers"`
	}
	if err := r.client.do(ctx, http.MethodGet, "api/quizzes/"+quizID+"/answers", nil, &out); err != nil {
		if statusOf(err) == http.StatusNotFound {
			return []domain.QuizAnswer{}, nil
		}
		return nil, mapAuth(err)
	}

	answers := make([]domain.QuizAnswer, 0, len(out.Answers))
	for _, a := range out.Answers {
		answers = append(answers, domain.QuizAnswer{
			QuizID:         quizID,
			QuestionID:     string(a.QuestionID),
			SelectedOption: a.SelectedOption,
			TimeTakenMs:    a.TimeTaken,
			AnsweredAt:     a.AnsweredAt,
		})
	}
	return answers, nil
}
