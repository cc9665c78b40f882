package session

import (
	"context"
	"time"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// CodeCommand carries code to run or submit for a question
type CodeCommand struct {
	QuestionID string          `validate:"required"`
	Language   domain.Language `validate:"required"`
	Code       string          `validate:"required"`
}

// AnswerCommand carries the selected option of a quiz question
type AnswerCommand struct {
	QuestionID     string `validate:"required"`
	SelectedOption *int   `validate:"required"`
}

// RunReport is the outcome of running the public test cases of a question
type RunReport struct {
	QuestionID string                   `json:"question_id"`
	Language   domain.Language          `json:"language"`
	Results    []domain.ExecutionResult `json:"results"`
	Verdict    domain.Verdict           `json:"verdict"`
	Message    string                   `json:"message"`
	RanAt      time.Time                `json:"ran_at"`
}

// SubmitReceipt is returned once the backend accepted a submission
type SubmitReceipt struct {
	Submission domain.Submission `json:"submission"`
	Solved     bool              `json:"solved"`
}

// admit checks that the session accepts action a on a question of the given
// kind and marks the action in flight. It returns the question and the time
// recorded on it so far.
func (s *Session) admit(a action, questionID string, kind domain.QuestionKind) (*domain.Question, time.Time, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if err := s.guardLocked(now); err != nil {
		return nil, now, 0, err
	}
	q, err := s.questionLocked(questionID, kind)
	if err != nil {
		return nil, now, 0, err
	}
	if err := s.beginLocked(a); err != nil {
		return nil, now, 0, err
	}
	return q, now, s.elapsedSecondsLocked(questionID, now), nil
}

// Run executes the public test cases of a coding question without grading.
// Nothing reaches the network unless the command is valid and the session
// is active.
func (s *Session) Run(ctx context.Context, cmd CodeCommand) (*RunReport, error) {
	if err := s.validateCommand(cmd); err != nil {
		return nil, err
	}
	if !s.languages.Supports(cmd.Language) {
		return nil, domain.ErrUnsupportedLanguage
	}

	_, _, _, err := s.admit(actionRun, cmd.QuestionID, domain.QuestionKindCoding)
	if err != nil {
		return nil, err
	}
	defer s.finish(actionRun)

	cases, err := s.ports.TestCases.FindPublicByQuestion(ctx, cmd.QuestionID)
	if err != nil {
		return nil, err
	}
	results, err := s.ports.Runner.Run(ctx, cmd.Language, cmd.Code, cases)
	if err != nil {
		return nil, err
	}

	verdict := domain.Aggregate(results)
	report := &RunReport{
		QuestionID: cmd.QuestionID,
		Language:   cmd.Language,
		Results:    results,
		Verdict:    verdict,
		Message:    verdict.Message(),
		RanAt:      s.clock.Now(),
	}

	s.mu.Lock()
	s.runs[cmd.QuestionID] = report
	s.mu.Unlock()

	return report, nil
}

// Submit sends code to the backend for grading with the time spent on the
// question attached. The question is marked solved optimistically when the
// last public run passed every case; the backend remains the authority.
func (s *Session) Submit(ctx context.Context, cmd CodeCommand) (*SubmitReceipt, error) {
	if err := s.validateCommand(cmd); err != nil {
		return nil, err
	}
	if !s.languages.Supports(cmd.Language) {
		return nil, domain.ErrUnsupportedLanguage
	}

	_, now, elapsed, err := s.admit(actionSubmit, cmd.QuestionID, domain.QuestionKindCoding)
	if err != nil {
		return nil, err
	}
	defer s.finish(actionSubmit)

	submission := domain.Submission{
		ActivityID:     s.activity.ID,
		QuestionID:     cmd.QuestionID,
		ParticipantID:  s.participantID,
		Code:           cmd.Code,
		Language:       cmd.Language,
		ElapsedSeconds: elapsed,
		SubmittedAt:    now,
	}
	if err := s.ports.Submissions.Create(ctx, &submission); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if run := s.runs[cmd.QuestionID]; run != nil && run.Verdict.AllPassed && run.Language == cmd.Language {
		s.solved[cmd.QuestionID] = true
	}
	return &SubmitReceipt{
		Submission: submission,
		Solved:     s.solved[cmd.QuestionID],
	}, nil
}

// Answer records the selected option of a quiz question. Answering again
// replaces the previous answer for that question. An answered quiz question
// counts as solved.
func (s *Session) Answer(ctx context.Context, cmd AnswerCommand) (*domain.QuizAnswer, error) {
	if err := s.validateCommand(cmd); err != nil {
		return nil, err
	}

	q, now, elapsed, err := s.admit(actionAnswer, cmd.QuestionID, domain.QuestionKindChoice)
	if err != nil {
		return nil, err
	}
	defer s.finish(actionAnswer)

	selected := *cmd.SelectedOption
	if selected < 0 || selected >= len(q.Options) {
		return nil, domain.ErrInvalidOption
	}

	answer := domain.QuizAnswer{
		QuizID:         s.activity.ID,
		QuestionID:     cmd.QuestionID,
		SelectedOption: selected,
		TimeTakenMs:    elapsed * 1000,
		AnsweredAt:     now,
	}
	if err := s.ports.Answers.Upsert(ctx, &answer); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.answers[cmd.QuestionID] = answer
	s.solved[cmd.QuestionID] = true
	s.mu.Unlock()

	return &answer, nil
}

// End closes the session at the participant's request. Ending a session that
// is already closed is a no-op. For challenges the backend is told first; if
// that fails the session stays open so the action can be retried.
func (s *Session) End(ctx context.Context) error {
	s.mu.Lock()
	s.refreshLocked(s.clock.Now())
	if s.state.Closed() {
		s.mu.Unlock()
		return nil
	}
	if err := s.beginLocked(actionEnd); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	defer s.finish(actionEnd)

	if s.activity.Kind == domain.ActivityKindChallenge && s.ports.Activities != nil {
		if err := s.ports.Activities.End(ctx, s.activity.Ref()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Closed() {
		s.closeLocked(domain.SessionStateSubmitted, s.clock.Now())
	}
	return nil
}

// ApplyProgress replaces the solved set with the backend's view
func (s *Session) ApplyProgress(progress *domain.Progress) {
	if progress == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.solved = make(map[string]bool, len(progress.SolvedQuestions))
	for _, id := range progress.SolvedQuestions {
		s.solved[id] = true
	}
}
