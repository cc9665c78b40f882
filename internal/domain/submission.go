package domain

import (
	"context"
	"time"
)

// Submission is a code submission sent to the backend for grading.
// Submissions are append-only facts.
type Submission struct {
	ActivityID     string    `json:"activity_id"`
	QuestionID     string    `json:"question_id"`
	ParticipantID  string    `json:"participant_id"`
	Code           string    `json:"code"`
	Language       Language  `json:"language"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// SubmissionRepository defines how submissions reach the backend
type SubmissionRepository interface {
	Create(ctx context.Context, submission *Submission) error
}

// Progress records which questions a participant has solved
type Progress struct {
	ActivityID      string   `json:"activity_id"`
	ParticipantID   string   `json:"participant_id"`
	SolvedQuestions []string `json:"solved_questions"`
}

// IsSolved reports whether questionID is in the solved set
func (p *Progress) IsSolved(questionID string) bool {
	for _, id := range p.SolvedQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}

// ProgressRepository defines access to participant progress
type ProgressRepository interface {
	FindByActivity(ctx context.Context, ref ActivityRef) (*Progress, error)
}

// QuizAnswer is the participant's selection for one quiz question. There is
// at most one answer per participant and question; a later one replaces it.
type QuizAnswer struct {
	QuizID         string    `json:"quiz_id"`
	QuestionID     string    `json:"question_id"`
	SelectedOption int       `json:"selected_option"`
	TimeTakenMs    int64     `json:"time_taken_ms"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// AnswerRepository defines access to quiz answers
type AnswerRepository interface {
	Upsert(ctx context.Context, answer *QuizAnswer) error
	FindByQuiz(ctx context.Context, quizID string) ([]QuizAnswer, error)
}
