package session

import (
	"time"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// QuestionView is what the participant sees when a question is opened
type QuestionView struct {
	Question       domain.Question            `json:"question"`
	ElapsedSeconds int64                      `json:"elapsed_seconds"`
	Solved         bool                       `json:"solved"`
	SelectedOption *int                       `json:"selected_option"`
	Boilerplate    map[domain.Language]string `json:"boilerplate,omitempty"`
	LastRun        *RunReport                 `json:"last_run,omitempty"`
}

// SelectQuestion makes id the current question. The previous question's timer
// stops and the new one starts, resuming from any time already recorded.
func (s *Session) SelectQuestion(id string) (*QuestionView, error) {
	if id == "" {
		return nil, domain.ErrMissingQuestion
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if err := s.guardLocked(now); err != nil {
		return nil, err
	}
	if _, ok := s.activity.Question(id); !ok {
		return nil, domain.ErrQuestionNotFound
	}

	if s.current != id {
		s.stopTimerLocked(now)
		s.current = id
		s.since = now
	}
	return s.viewLocked(id, now), nil
}

// QuestionView returns the view of a question without changing the current one
func (s *Session) QuestionView(id string) (*QuestionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.refreshLocked(now)
	if _, ok := s.activity.Question(id); !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return s.viewLocked(id, now), nil
}

func (s *Session) viewLocked(id string, now time.Time) *QuestionView {
	q, _ := s.activity.Question(id)
	view := &QuestionView{
		Question:       *q,
		ElapsedSeconds: s.elapsedSecondsLocked(id, now),
		Solved:         s.solved[id],
		LastRun:        s.runs[id],
	}
	if answer, ok := s.answers[id]; ok {
		selected := answer.SelectedOption
		view.SelectedOption = &selected
	}
	if q.Kind == domain.QuestionKindCoding {
		view.Boilerplate = make(map[domain.Language]string, len(s.languages))
		for _, lang := range s.languages.Languages() {
			view.Boilerplate[lang] = q.BoilerplateFor(lang, s.languages)
		}
	}
	return view
}

// stopTimerLocked folds the running interval of the current question into
// its total. Time past the window end is not counted.
func (s *Session) stopTimerLocked(now time.Time) {
	if s.current == "" {
		return
	}
	now = s.window.Clamp(now)
	if now.After(s.since) {
		s.elapsed[s.current] += now.Sub(s.since)
	}
	s.since = now
}

func (s *Session) elapsedLocked(id string, now time.Time) time.Duration {
	d := s.elapsed[id]
	if id == s.current && s.state == domain.SessionStateActive {
		now = s.window.Clamp(now)
		if now.After(s.since) {
			d += now.Sub(s.since)
		}
	}
	return d.Truncate(time.Second)
}

func (s *Session) elapsedSecondsLocked(id string, now time.Time) int64 {
	return int64(s.elapsedLocked(id, now) / time.Second)
}

// Timers returns the elapsed time per question at one-second resolution
func (s *Session) Timers() map[string]time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	s.refreshLocked(now)
	timers := make(map[string]time.Duration, len(s.elapsed)+1)
	for id := range s.elapsed {
		timers[id] = s.elapsedLocked(id, now)
	}
	if s.current != "" {
		timers[s.current] = s.elapsedLocked(s.current, now)
	}
	return timers
}
