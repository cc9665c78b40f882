package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// MemoryJournal is an in-process domain.JournalRepository used when no
// database is configured
type MemoryJournal struct {
	mu          sync.RWMutex
	sessions    map[string]domain.SessionRecord
	runs        []domain.RunRecord
	submissions []domain.SubmissionRecord
}

// NewMemoryJournal creates an empty journal
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{sessions: make(map[string]domain.SessionRecord)}
}

func sessionKey(activityID, participantID string) string {
	return activityID + "|" + participantID
}

func copyRecord(r domain.SessionRecord) domain.SessionRecord {
	r.SolvedQuestions = append([]string(nil), r.SolvedQuestions...)
	r.Timers = append([]domain.QuestionTimer(nil), r.Timers...)
	return r
}

// SaveSession upserts a session keyed by activity and participant. Timers are
// merged per question.
func (j *MemoryJournal) SaveSession(ctx context.Context, record *domain.SessionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	key := sessionKey(record.ActivityID, record.ParticipantID)
	now := time.Now()
	stored, ok := j.sessions[key]
	if !ok {
		stored = domain.SessionRecord{
			ID:            uuid.New(),
			ActivityID:    record.ActivityID,
			ActivityKind:  record.ActivityKind,
			ParticipantID: record.ParticipantID,
			JoinedAt:      record.JoinedAt,
			CreatedAt:     now,
		}
	}
	stored.State = record.State
	stored.CurrentQuestionID = record.CurrentQuestionID
	stored.SolvedQuestions = record.SolvedQuestions
	stored.WindowEnd = record.WindowEnd
	stored.EndedAt = record.EndedAt
	stored.UpdatedAt = now

	timers := make(map[string]int64, len(stored.Timers)+len(record.Timers))
	for _, t := range stored.Timers {
		timers[t.QuestionID] = t.ElapsedSeconds
	}
	for _, t := range record.Timers {
		timers[t.QuestionID] = t.ElapsedSeconds
	}
	stored.Timers = stored.Timers[:0:0]
	for qid, secs := range timers {
		stored.Timers = append(stored.Timers, domain.QuestionTimer{SessionID: stored.ID, QuestionID: qid, ElapsedSeconds: secs})
	}
	sort.Slice(stored.Timers, func(a, b int) bool { return stored.Timers[a].QuestionID < stored.Timers[b].QuestionID })

	j.sessions[key] = copyRecord(stored)
	record.ID = stored.ID
	for i := range record.Timers {
		record.Timers[i].SessionID = stored.ID
	}
	return nil
}

// FindSession finds the session of a participant in an activity
func (j *MemoryJournal) FindSession(ctx context.Context, activityID, participantID string) (*domain.SessionRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stored, ok := j.sessions[sessionKey(activityID, participantID)]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	record := copyRecord(stored)
	return &record, nil
}

// ListOpenSessions returns sessions that are not yet closed
func (j *MemoryJournal) ListOpenSessions(ctx context.Context) ([]domain.SessionRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	records := make([]domain.SessionRecord, 0, len(j.sessions))
	for _, r := range j.sessions {
		if !r.State.Closed() {
			records = append(records, copyRecord(r))
		}
	}
	sort.Slice(records, func(a, b int) bool { return records[a].JoinedAt.Before(records[b].JoinedAt) })
	return records, nil
}

// AppendRun journals one run
func (j *MemoryJournal) AppendRun(ctx context.Context, run *domain.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	j.runs = append(j.runs, *run)
	return nil
}

// ListRuns returns the runs of a question in a session, newest first
func (j *MemoryJournal) ListRuns(ctx context.Context, sessionID uuid.UUID, questionID string) ([]domain.RunRecord, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	var runs []domain.RunRecord
	for i := len(j.runs) - 1; i >= 0; i-- {
		if j.runs[i].SessionID == sessionID && j.runs[i].QuestionID == questionID {
			runs = append(runs, j.runs[i])
		}
	}
	return runs, nil
}

// AppendSubmission journals a submission
func (j *MemoryJournal) AppendSubmission(ctx context.Context, submission *domain.SubmissionRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	j.submissions = append(j.submissions, *submission)
	return nil
}

// Submissions returns every journaled submission
func (j *MemoryJournal) Submissions() []domain.SubmissionRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]domain.SubmissionRecord(nil), j.submissions...)
}
