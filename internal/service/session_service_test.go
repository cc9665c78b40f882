package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/event"
	"github.com/contest-maker-150/assessment/internal/repository"
	"github.com/contest-maker-150/assessment/internal/session"
)

var windowStart = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type stubActivities struct {
	mu       sync.Mutex
	activity map[string]*domain.Activity
	joinKey  string
	finds    int
	ends     int
}

func (s *stubActivities) Join(ctx context.Context, kind domain.ActivityKind, accessKey string) (*domain.ActivityRef, error) {
	if accessKey != s.joinKey {
		return nil, domain.ErrInvalidAccessKey
	}
	for _, a := range s.activity {
		if a.Kind == kind {
			ref := a.Ref()
			return &ref, nil
		}
	}
	return nil, domain.ErrActivityNotFound
}

func (s *stubActivities) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	a, ok := s.activity[ref.ID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	return a, nil
}

func (s *stubActivities) End(ctx context.Context, ref domain.ActivityRef) error {
	s.mu.Lock()
	s.ends++
	s.mu.Unlock()
	return nil
}

type stubTestCases struct{}

func (stubTestCases) FindPublicByQuestion(ctx context.Context, questionID string) ([]domain.TestCase, error) {
	return []domain.TestCase{{Input: "1 2", Output: "3"}}, nil
}

type passingRunner struct{}

func (passingRunner) Run(ctx context.Context, lang domain.Language, code string, cases []domain.TestCase) ([]domain.ExecutionResult, error) {
	results := make([]domain.ExecutionResult, 0, len(cases))
	for _, tc := range cases {
		results = append(results, domain.ExecutionResult{Input: tc.Input, ExpectedOutput: tc.Output, ActualOutput: tc.Output, Status: domain.StatusPass})
	}
	return results, nil
}

type stubSubmissions struct {
	mu      sync.Mutex
	created []domain.Submission
}

func (s *stubSubmissions) Create(ctx context.Context, submission *domain.Submission) error {
	s.mu.Lock()
	s.created = append(s.created, *submission)
	s.mu.Unlock()
	return nil
}

type stubProgress struct {
	mu     sync.Mutex
	solved []string
	err    error
}

func (s *stubProgress) FindByActivity(ctx context.Context, ref domain.ActivityRef) (*domain.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &domain.Progress{ActivityID: ref.ID, SolvedQuestions: append([]string(nil), s.solved...)}, nil
}

type stubAnswers struct {
	mu      sync.Mutex
	answers map[string]domain.QuizAnswer
}

func (s *stubAnswers) Upsert(ctx context.Context, answer *domain.QuizAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.answers == nil {
		s.answers = make(map[string]domain.QuizAnswer)
	}
	s.answers[answer.QuestionID] = *answer
	return nil
}

func (s *stubAnswers) FindByQuiz(ctx context.Context, quizID string) ([]domain.QuizAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.QuizAnswer, 0, len(s.answers))
	for _, a := range s.answers {
		out = append(out, a)
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []event.SubmissionEvent
}

func (p *recordingPublisher) PublishSubmission(ctx context.Context, evt event.SubmissionEvent) error {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	clock       *testClock
	activities  *stubActivities
	submissions *stubSubmissions
	progress    *stubProgress
	answers     *stubAnswers
	journal     *repository.MemoryJournal
	publisher   *recordingPublisher
}

func newServiceFixture(now time.Time) *fixture {
	w, _ := domain.NewWindow(windowStart, windowStart.Add(time.Hour))
	options := []string{"a", "b", "c"}
	return &fixture{
		clock: &testClock{now: now},
		activities: &stubActivities{
			joinKey: "KEY",
			activity: map[string]*domain.Activity{
				"c1": {ID: "c1", Kind: domain.ActivityKindChallenge, Title: "Weekly", Window: w, Questions: []domain.Question{
					{ID: "q1", Kind: domain.QuestionKindCoding, Title: "Two Sum", Marks: 10},
					{ID: "q2", Kind: domain.QuestionKindCoding, Title: "Three Sum", Marks: 20},
				}},
				"z1": {ID: "z1", Kind: domain.ActivityKindQuiz, Title: "Quiz", Window: w, Questions: []domain.Question{
					{ID: "m1", Kind: domain.QuestionKindChoice, Options: options, Marks: 1},
					{ID: "m2", Kind: domain.QuestionKindChoice, Options: options, Marks: 1},
				}},
			},
		},
		submissions: &stubSubmissions{},
		progress:    &stubProgress{},
		answers:     &stubAnswers{},
		journal:     repository.NewMemoryJournal(),
		publisher:   &recordingPublisher{},
	}
}

func (f *fixture) service() *SessionService {
	return NewSessionService(SessionDeps{
		Activities:  f.activities,
		TestCases:   stubTestCases{},
		Submissions: f.submissions,
		Progress:    f.progress,
		Answers:     f.answers,
		Journal:     f.journal,
		Runner:      passingRunner{},
		Publisher:   f.publisher,
		Languages:   domain.LanguageTable{domain.LanguagePython: {Version: "3.10.0"}},
		Clock:       f.clock,
	}, noop.NewTracerProvider().Tracer("test"), zap.NewNop())
}

func TestJoinValidatesBeforeBackend(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	svc := f.service()
	ctx := context.Background()

	if _, err := svc.Join(ctx, "u1", &domain.JoinSessionRequest{Kind: domain.ActivityKindChallenge}); !errors.Is(err, domain.ErrEmptyAccessKey) {
		t.Fatalf("expected ErrEmptyAccessKey, got %v", err)
	}
	if _, err := svc.Join(ctx, "u1", &domain.JoinSessionRequest{Kind: domain.ActivityKindChallenge, AccessKey: "WRONG"}); !errors.Is(err, domain.ErrInvalidAccessKey) {
		t.Fatalf("expected ErrInvalidAccessKey, got %v", err)
	}
	if svc.LiveCount() != 0 {
		t.Fatalf("expected no live sessions, got %d", svc.LiveCount())
	}

	snap, err := svc.Join(ctx, "u1", &domain.JoinSessionRequest{Kind: domain.ActivityKindChallenge, AccessKey: "KEY"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if snap.ActivityID != "c1" || snap.State != domain.SessionStateActive {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if _, err := f.journal.FindSession(ctx, "c1", "u1"); err != nil {
		t.Fatalf("expected journaled session: %v", err)
	}
}

func TestOpenFailsWithoutProgress(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	f.progress.err = domain.ErrBackendUnavailable
	svc := f.service()

	_, err := svc.Open(context.Background(), "u1", domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge})
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
	if svc.LiveCount() != 0 {
		t.Fatalf("a failed load must not leave a session behind")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	svc := f.service()
	ref := domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}

	for i := 0; i < 3; i++ {
		if _, err := svc.Open(context.Background(), "u1", ref); err != nil {
			t.Fatalf("open: %v", err)
		}
	}
	if f.activities.finds != 1 || svc.LiveCount() != 1 {
		t.Fatalf("expected a single load, got %d finds and %d sessions", f.activities.finds, svc.LiveCount())
	}
}

func TestSubmitJournalsAndPublishes(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	svc := f.service()
	ctx := context.Background()

	if _, err := svc.Open(ctx, "u1", domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.SelectQuestion(ctx, "u1", "c1", "q1"); err != nil {
		t.Fatalf("select: %v", err)
	}
	f.clock.Advance(90 * time.Second)

	cmd := session.CodeCommand{QuestionID: "q1", Language: domain.LanguagePython, Code: "print(3)"}
	report, err := svc.Run(ctx, "u1", "c1", cmd)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !report.Verdict.AllPassed {
		t.Fatalf("expected passing run, got %+v", report.Verdict)
	}

	f.progress.mu.Lock()
	f.progress.solved = []string{"q1"}
	f.progress.mu.Unlock()

	receipt, err := svc.Submit(ctx, "u1", "c1", cmd)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !receipt.Solved || receipt.Submission.ElapsedSeconds != 90 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	subs := f.journal.Submissions()
	if len(subs) != 1 || subs[0].QuestionID != "q1" || subs[0].ElapsedSeconds != 90 {
		t.Fatalf("unexpected journaled submissions %+v", subs)
	}
	record, err := f.journal.FindSession(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	runs, err := f.journal.ListRuns(ctx, record.ID, "q1")
	if err != nil || len(runs) != 1 || !runs[0].AllPassed {
		t.Fatalf("expected one journaled run, got %+v, %v", runs, err)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.publisher.events))
	}
	evt := f.publisher.events[0]
	if evt.ActivityKind != "challenge" || !evt.PassedPublic || evt.ParticipantID != "u1" {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestSessionRestoredFromJournal(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	ctx := context.Background()

	first := f.service()
	if _, err := first.Open(ctx, "u1", domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.SelectQuestion(ctx, "u1", "c1", "q2"); err != nil {
		t.Fatalf("select: %v", err)
	}
	f.clock.Advance(30 * time.Second)
	if _, err := first.ReapEnded(ctx); err != nil {
		t.Fatalf("reap: %v", err)
	}

	// A fresh instance only knows the activity id; the kind comes from the journal.
	second := f.service()
	snap, err := second.Snapshot(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.CurrentQuestionID != "q2" {
		t.Fatalf("expected current question q2, got %q", snap.CurrentQuestionID)
	}
	f.clock.Advance(10 * time.Second)
	view, err := second.Question(ctx, "u1", "c1", "q2")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if view.ElapsedSeconds != 40 {
		t.Fatalf("expected timer to resume at 30s and reach 40s, got %d", view.ElapsedSeconds)
	}

	if _, err := second.Snapshot(ctx, "u2", "c1"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound for unknown participant, got %v", err)
	}
}

func TestReapEndedEvictsClosedSessions(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	svc := f.service()
	ctx := context.Background()

	for _, pid := range []string{"u1", "u2"} {
		if _, err := svc.Open(ctx, pid, domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}); err != nil {
			t.Fatalf("open: %v", err)
		}
	}
	if _, err := svc.End(ctx, "u1", "c1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if f.activities.ends != 1 {
		t.Fatalf("expected backend end call, got %d", f.activities.ends)
	}

	evicted, err := svc.ReapEnded(ctx)
	if err != nil || evicted != 1 || svc.LiveCount() != 1 {
		t.Fatalf("expected u1 evicted, got %d evicted, %d live, %v", evicted, svc.LiveCount(), err)
	}

	f.clock.Advance(2 * time.Hour)
	evicted, err = svc.ReapEnded(ctx)
	if err != nil || evicted != 1 || svc.LiveCount() != 0 {
		t.Fatalf("expected u2 evicted after window end, got %d evicted, %d live, %v", evicted, svc.LiveCount(), err)
	}

	open, err := f.journal.ListOpenSessions(ctx)
	if err != nil || len(open) != 0 {
		t.Fatalf("expected no open sessions in journal, got %+v, %v", open, err)
	}
	record, _ := f.journal.FindSession(ctx, "c1", "u2")
	if record.State != domain.SessionStateEnded {
		t.Fatalf("expected u2 ended, got %s", record.State)
	}
}

func TestQuizAnswersCountAsProgress(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	svc := f.service()
	ctx := context.Background()

	if _, err := svc.Join(ctx, "u1", &domain.JoinSessionRequest{Kind: domain.ActivityKindQuiz, AccessKey: "KEY"}); err != nil {
		t.Fatalf("join: %v", err)
	}
	option := 1
	if _, err := svc.Answer(ctx, "u1", "z1", session.AnswerCommand{QuestionID: "m2", SelectedOption: &option}); err != nil {
		t.Fatalf("answer: %v", err)
	}

	snap, err := svc.RefreshProgress(ctx, "u1", "z1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(snap.SolvedQuestions) != 1 || snap.SolvedQuestions[0] != "m2" {
		t.Fatalf("unexpected solved set %v", snap.SolvedQuestions)
	}

	if _, err := svc.End(ctx, "u1", "z1"); err != nil {
		t.Fatalf("end: %v", err)
	}
	if f.activities.ends != 0 {
		t.Fatalf("quiz end must not call the backend")
	}
}

func TestRestoredSessionKeepsLastRun(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	ctx := context.Background()
	cmd := session.CodeCommand{QuestionID: "q1", Language: domain.LanguagePython, Code: "print(3)"}

	first := f.service()
	if _, err := first.Open(ctx, "u1", domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Run(ctx, "u1", "c1", cmd); err != nil {
		t.Fatalf("run: %v", err)
	}

	second := f.service()
	view, err := second.Question(ctx, "u1", "c1", "q1")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if view.LastRun == nil || !view.LastRun.Verdict.AllPassed || view.LastRun.Language != domain.LanguagePython {
		t.Fatalf("expected the journaled run to be restored, got %+v", view.LastRun)
	}

	if _, err := second.Submit(ctx, "u1", "c1", cmd); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(f.publisher.events) != 1 || !f.publisher.events[0].PassedPublic {
		t.Fatalf("expected the restored passing run to mark the submission, got %+v", f.publisher.events)
	}
}

func TestReapClosesStaleJournaledSessions(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	ctx := context.Background()

	if _, err := f.service().Open(ctx, "u1", domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}); err != nil {
		t.Fatalf("open: %v", err)
	}

	// A restarted instance never loaded the session.
	restarted := f.service()
	f.clock.Advance(2 * time.Hour)
	if _, err := restarted.ReapEnded(ctx); err != nil {
		t.Fatalf("reap: %v", err)
	}

	open, err := f.journal.ListOpenSessions(ctx)
	if err != nil || len(open) != 0 {
		t.Fatalf("expected no open sessions, got %+v, %v", open, err)
	}
	record, err := f.journal.FindSession(ctx, "c1", "u1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	windowEnd := windowStart.Add(time.Hour)
	if record.State != domain.SessionStateEnded || record.EndedAt == nil || !record.EndedAt.Equal(windowEnd) {
		t.Fatalf("expected session ended at the window end, got %+v", record)
	}
}

func TestRefreshProgressAppliesExtendedWindow(t *testing.T) {
	f := newServiceFixture(windowStart.Add(time.Minute))
	svc := f.service()
	ctx := context.Background()

	if _, err := svc.Open(ctx, "u1", domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}); err != nil {
		t.Fatalf("open: %v", err)
	}
	f.clock.Advance(90 * time.Minute)
	snap, err := svc.Snapshot(ctx, "u1", "c1")
	if err != nil || snap.State != domain.SessionStateEnded {
		t.Fatalf("expected ended session, got %+v, %v", snap, err)
	}

	f.activities.mu.Lock()
	extended := *f.activities.activity["c1"]
	extended.Window = domain.Window{Start: windowStart, End: windowStart.Add(3 * time.Hour)}
	f.activities.activity["c1"] = &extended
	f.activities.mu.Unlock()

	snap, err = svc.RefreshProgress(ctx, "u1", "c1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if snap.State != domain.SessionStateActive || !snap.CanSubmit {
		t.Fatalf("expected the extended window to reopen the session, got %+v", snap)
	}
	w, err := svc.Window(ctx, "u1", "c1")
	if err != nil || !w.End.Equal(extended.Window.End) {
		t.Fatalf("expected window end %s, got %s, %v", extended.Window.End, w.End, err)
	}
}
