// Package session implements the per-participant state machine of a timed
// activity: window guards, question navigation with per-question timers,
// public test runs, code submission and quiz answers.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/window"
)

// Runner executes code against test cases
type Runner interface {
	Run(ctx context.Context, lang domain.Language, code string, cases []domain.TestCase) ([]domain.ExecutionResult, error)
}

// Ports are the collaborators a session calls out to
type Ports struct {
	Activities  domain.ActivityRepository
	TestCases   domain.TestCaseRepository
	Submissions domain.SubmissionRepository
	Answers     domain.AnswerRepository
	Runner      Runner
}

// Config is everything a session needs at construction. Activity and
// Progress are required; a session is never built over missing data.
type Config struct {
	ParticipantID string
	Activity      *domain.Activity
	Progress      *domain.Progress
	Answers       []domain.QuizAnswer
	Languages     domain.LanguageTable
	Clock         window.Clock

	// Restored from the journal
	State             domain.SessionState
	CurrentQuestionID string
	Timers            map[string]time.Duration
	Runs              map[string]*RunReport
}

type action string

const (
	actionRun    action = "run"
	actionSubmit action = "submit"
	actionAnswer action = "answer"
	actionEnd    action = "end"
)

// Session is one participant's engagement with one activity. All methods
// are safe for concurrent use; network calls are made without holding the
// lock, and a per-action in-flight flag rejects duplicates.
type Session struct {
	mu sync.Mutex

	participantID string
	activity      *domain.Activity
	window        domain.Window
	languages     domain.LanguageTable
	clock         window.Clock
	ports         Ports
	validate      *validator.Validate

	state    domain.SessionState
	current  string
	since    time.Time
	elapsed  map[string]time.Duration
	solved   map[string]bool
	answers  map[string]domain.QuizAnswer
	runs     map[string]*RunReport
	inFlight map[action]bool
	endedAt  *time.Time
}

// New builds a session from loaded activity data
func New(cfg Config, ports Ports) (*Session, error) {
	if cfg.Activity == nil || cfg.Progress == nil {
		return nil, domain.ErrActivityUnavailable
	}
	if cfg.Clock == nil {
		cfg.Clock = window.SystemClock{}
	}

	s := &Session{
		participantID: cfg.ParticipantID,
		activity:      cfg.Activity,
		window:        cfg.Activity.Window,
		languages:     cfg.Languages,
		clock:         cfg.Clock,
		ports:         ports,
		validate:      validator.New(),
		state:         domain.SessionStateJoined,
		elapsed:       make(map[string]time.Duration, len(cfg.Activity.Questions)),
		solved:        make(map[string]bool),
		answers:       make(map[string]domain.QuizAnswer, len(cfg.Answers)),
		runs:          make(map[string]*RunReport),
		inFlight:      make(map[action]bool),
	}
	for id, d := range cfg.Timers {
		s.elapsed[id] = d
	}
	for _, id := range cfg.Progress.SolvedQuestions {
		s.solved[id] = true
	}
	for _, a := range cfg.Answers {
		s.answers[a.QuestionID] = a
	}
	for id, run := range cfg.Runs {
		if run != nil {
			s.runs[id] = run
		}
	}
	if cfg.State != "" {
		s.state = cfg.State
	}

	now := s.clock.Now()
	s.reopenLocked(now)
	s.refreshLocked(now)
	if s.state == domain.SessionStateActive && cfg.CurrentQuestionID != "" {
		if _, ok := s.activity.Question(cfg.CurrentQuestionID); ok {
			s.current = cfg.CurrentQuestionID
			s.since = now
		}
	}
	return s, nil
}

// ParticipantID returns the participant owning the session
func (s *Session) ParticipantID() string { return s.participantID }

// Activity returns the activity of the session
func (s *Session) Activity() *domain.Activity { return s.activity }

// Window returns the window the session currently runs against
func (s *Session) Window() domain.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.window
}

// UpdateWindow applies a window changed by the host. A session that ended
// only because the old window closed becomes active again when the new
// window is still open; a submitted session stays closed.
func (s *Session) UpdateWindow(w domain.Window) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.Start.Equal(s.window.Start) && w.End.Equal(s.window.End) {
		return
	}
	now := s.clock.Now()
	s.window = w
	s.reopenLocked(now)
	s.refreshLocked(now)
}

// State returns the current state after applying the window
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshLocked(s.clock.Now())
	return s.state
}

// refreshLocked moves the state machine forward according to the window
func (s *Session) refreshLocked(now time.Time) {
	if s.state.Closed() {
		return
	}
	status := s.window.Evaluate(now)
	switch {
	case status.HasEnded:
		s.closeLocked(domain.SessionStateEnded, s.window.End)
	case status.HasStarted && s.state == domain.SessionStateJoined:
		s.state = domain.SessionStateActive
	}
}

// reopenLocked undoes a window-driven end when the window no longer has ended
func (s *Session) reopenLocked(now time.Time) {
	if s.state != domain.SessionStateEnded || s.window.Evaluate(now).HasEnded {
		return
	}
	s.state = domain.SessionStateJoined
	s.endedAt = nil
}

// closeLocked stops the running timer at `at` and enters a terminal state
func (s *Session) closeLocked(state domain.SessionState, at time.Time) {
	s.stopTimerLocked(at)
	s.state = state
	s.current = ""
	endedAt := at
	s.endedAt = &endedAt
}

// guardLocked admits an interaction only while the session is active
func (s *Session) guardLocked(now time.Time) error {
	s.refreshLocked(now)
	switch s.state {
	case domain.SessionStateActive:
		return nil
	case domain.SessionStateJoined:
		return domain.ErrWindowNotStarted
	default:
		return domain.ErrSessionClosed
	}
}

func (s *Session) beginLocked(a action) error {
	if s.inFlight[a] {
		return domain.ErrActionInFlight
	}
	s.inFlight[a] = true
	return nil
}

func (s *Session) finish(a action) {
	s.mu.Lock()
	delete(s.inFlight, a)
	s.mu.Unlock()
}

func (s *Session) questionLocked(id string, kind domain.QuestionKind) (*domain.Question, error) {
	q, ok := s.activity.Question(id)
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	if q.Kind != kind {
		if kind == domain.QuestionKindCoding {
			return nil, domain.ErrNotCodingQuestion
		}
		return nil, domain.ErrNotQuizQuestion
	}
	return q, nil
}

// validateCommand maps struct validation failures onto domain validation errors
func (s *Session) validateCommand(cmd interface{}) error {
	err := s.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return domain.NewDomainError(domain.ErrValidation, err.Error())
	}
	switch verrs[0].Field() {
	case "Code":
		return domain.ErrEmptySourceCode
	case "QuestionID":
		return domain.ErrMissingQuestion
	case "Language":
		return domain.ErrUnsupportedLanguage
	case "SelectedOption":
		return domain.ErrNoOptionSelected
	default:
		return &domain.DomainError{
			Err:     domain.ErrValidation,
			Message: verrs[0].Field() + " failed on " + verrs[0].Tag(),
			Code:    "invalid_" + verrs[0].Tag(),
		}
	}
}
