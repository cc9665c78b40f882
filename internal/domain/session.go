package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// SessionState represents where a participant is in an activity
type SessionState string

const (
	SessionStateJoined    SessionState = "joined"
	SessionStateActive    SessionState = "active"
	SessionStateSubmitted SessionState = "submitted"
	SessionStateEnded     SessionState = "ended"
)

// Closed reports whether the session no longer accepts input
func (s SessionState) Closed() bool {
	return s == SessionStateSubmitted || s == SessionStateEnded
}

// SessionRecord is the journaled state of one participant's session, kept
// so that a restarted engine resumes timers and position
type SessionRecord struct {
	ID                uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ActivityID        string         `json:"activity_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_session_participant"`
	ActivityKind      ActivityKind   `json:"activity_kind" gorm:"type:varchar(16);not null"`
	ParticipantID     string         `json:"participant_id" gorm:"type:varchar(64);not null;uniqueIndex:idx_session_participant"`
	State             SessionState   `json:"state" gorm:"type:varchar(16);not null;default:'joined';index"`
	CurrentQuestionID string         `json:"current_question_id" gorm:"type:varchar(64)"`
	SolvedQuestions   pq.StringArray `json:"solved_questions" gorm:"type:text[]"`
	JoinedAt          time.Time      `json:"joined_at" gorm:"not null"`
	WindowEnd         *time.Time     `json:"window_end"`
	EndedAt           *time.Time     `json:"ended_at"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`

	// Relationships
	Timers []QuestionTimer `json:"timers,omitempty" gorm:"foreignKey:SessionID"`
}

// TableName specifies the table name for GORM
func (SessionRecord) TableName() string {
	return "session_records"
}

// TimerMap returns the journaled elapsed time per question
func (r *SessionRecord) TimerMap() map[string]time.Duration {
	timers := make(map[string]time.Duration, len(r.Timers))
	for _, t := range r.Timers {
		timers[t.QuestionID] = time.Duration(t.ElapsedSeconds) * time.Second
	}
	return timers
}

// QuestionTimer is the time a participant has spent on one question
type QuestionTimer struct {
	SessionID      uuid.UUID `json:"session_id" gorm:"type:uuid;primaryKey"`
	QuestionID     string    `json:"question_id" gorm:"type:varchar(64);primaryKey"`
	ElapsedSeconds int64     `json:"elapsed_seconds" gorm:"not null;default:0"`
}

// TableName specifies the table name for GORM
func (QuestionTimer) TableName() string {
	return "question_timers"
}

// RunRecord journals one run of public test cases
type RunRecord struct {
	ID         uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID  uuid.UUID         `json:"session_id" gorm:"type:uuid;not null;index"`
	QuestionID string            `json:"question_id" gorm:"type:varchar(64);not null;index"`
	Language   Language          `json:"language" gorm:"type:varchar(16);not null"`
	AllPassed  bool              `json:"all_passed"`
	AnyFailed  bool              `json:"any_failed"`
	FirstError string            `json:"first_error"`
	Results    []ExecutionResult `json:"results" gorm:"serializer:json"`
	CreatedAt  time.Time         `json:"created_at"`
}

// TableName specifies the table name for GORM
func (RunRecord) TableName() string {
	return "run_records"
}

// SubmissionRecord journals a submission that reached the backend
type SubmissionRecord struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	SessionID      uuid.UUID `json:"session_id" gorm:"type:uuid;not null;index"`
	ActivityID     string    `json:"activity_id" gorm:"type:varchar(64);not null;index"`
	QuestionID     string    `json:"question_id" gorm:"type:varchar(64);not null"`
	ParticipantID  string    `json:"participant_id" gorm:"type:varchar(64);not null;index"`
	Language       Language  `json:"language" gorm:"type:varchar(16);not null"`
	Code           string    `json:"code" gorm:"type:text;not null"`
	ElapsedSeconds int64     `json:"elapsed_seconds"`
	SubmittedAt    time.Time `json:"submitted_at" gorm:"not null"`
}

// TableName specifies the table name for GORM
func (SubmissionRecord) TableName() string {
	return "submission_records"
}

// JournalRepository defines the interface for the engine's own session journal
type JournalRepository interface {
	SaveSession(ctx context.Context, record *SessionRecord) error
	FindSession(ctx context.Context, activityID, participantID string) (*SessionRecord, error)
	ListOpenSessions(ctx context.Context) ([]SessionRecord, error)
	AppendRun(ctx context.Context, run *RunRecord) error
	ListRuns(ctx context.Context, sessionID uuid.UUID, questionID string) ([]RunRecord, error)
	AppendSubmission(ctx context.Context, submission *SubmissionRecord) error
}
