package session

import (
	"sort"
	"time"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/window"
)

// QuestionState summarizes one question for navigation
type QuestionState struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	Kind           domain.QuestionKind `json:"kind"`
	Marks          int                 `json:"marks"`
	Solved         bool                `json:"solved"`
	ElapsedSeconds int64               `json:"elapsed_seconds"`
	SelectedOption *int                `json:"selected_option"`
	LastVerdict    *domain.Verdict     `json:"last_verdict,omitempty"`
}

// Snapshot is the observable state of a session at one instant
type Snapshot struct {
	ActivityID        string              `json:"activity_id"`
	Kind              domain.ActivityKind `json:"kind"`
	Title             string              `json:"title"`
	ParticipantID     string              `json:"participant_id"`
	State             domain.SessionState `json:"state"`
	Phase             domain.Phase        `json:"phase"`
	HasStarted        bool                `json:"has_started"`
	HasEnded          bool                `json:"has_ended"`
	RemainingSeconds  int64               `json:"remaining_seconds"`
	Remaining         string              `json:"remaining"`
	CurrentQuestionID string              `json:"current_question_id"`
	Questions         []QuestionState     `json:"questions"`
	SolvedQuestions   []string            `json:"solved_questions"`
	CanRun            bool                `json:"can_run"`
	CanSubmit         bool                `json:"can_submit"`
	CanAnswer         bool                `json:"can_answer"`
	EndedAt           *time.Time          `json:"ended_at,omitempty"`
	At                time.Time           `json:"at"`
}

// Snapshot captures the session after applying the window
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.refreshLocked(now)
	status := s.window.Evaluate(now)
	active := s.state == domain.SessionStateActive

	snap := Snapshot{
		ActivityID:        s.activity.ID,
		Kind:              s.activity.Kind,
		Title:             s.activity.Title,
		ParticipantID:     s.participantID,
		State:             s.state,
		Phase:             status.Phase(),
		HasStarted:        status.HasStarted,
		HasEnded:          status.HasEnded,
		RemainingSeconds:  status.RemainingSeconds(),
		Remaining:         window.FormatRemaining(status.Remaining),
		CurrentQuestionID: s.current,
		Questions:         make([]QuestionState, 0, len(s.activity.Questions)),
		SolvedQuestions:   make([]string, 0, len(s.solved)),
		CanRun:            active && !s.inFlight[actionRun],
		CanSubmit:         active && !s.inFlight[actionSubmit],
		CanAnswer:         active && !s.inFlight[actionAnswer],
		EndedAt:           s.endedAt,
		At:                now,
	}

	for _, q := range s.activity.Questions {
		qs := QuestionState{
			ID:             q.ID,
			Title:          q.Title,
			Kind:           q.Kind,
			Marks:          q.Marks,
			Solved:         s.solved[q.ID],
			ElapsedSeconds: s.elapsedSecondsLocked(q.ID, now),
		}
		if answer, ok := s.answers[q.ID]; ok {
			selected := answer.SelectedOption
			qs.SelectedOption = &selected
		}
		if run := s.runs[q.ID]; run != nil {
			verdict := run.Verdict
			qs.LastVerdict = &verdict
		}
		snap.Questions = append(snap.Questions, qs)
	}
	for id := range s.solved {
		snap.SolvedQuestions = append(snap.SolvedQuestions, id)
	}
	sort.Strings(snap.SolvedQuestions)
	return snap
}

// IsSolved reports whether a question is in the solved set
func (s Snapshot) IsSolved(questionID string) bool {
	for _, id := range s.SolvedQuestions {
		if id == questionID {
			return true
		}
	}
	return false
}
