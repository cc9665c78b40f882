package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/event"
	"github.com/contest-maker-150/assessment/internal/infrastructure"
	"github.com/contest-maker-150/assessment/internal/session"
	"github.com/contest-maker-150/assessment/internal/window"
)

// SessionDeps groups the collaborators of the session service
type SessionDeps struct {
	Activities  domain.ActivityRepository
	TestCases   domain.TestCaseRepository
	Submissions domain.SubmissionRepository
	Progress    domain.ProgressRepository
	Answers     domain.AnswerRepository
	Journal     domain.JournalRepository
	Runner      session.Runner
	Publisher   event.Publisher
	Languages   domain.LanguageTable
	Clock       window.Clock
	Metrics     *infrastructure.TelemetryMetrics
}

// SessionService owns the live sessions of this engine instance, loads them
// from the backend and keeps the journal in step
type SessionService struct {
	deps   SessionDeps
	tracer trace.Tracer
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*liveSession
}

type liveSession struct {
	*session.Session
	ref      domain.ActivityRef
	joinedAt time.Time

	mu       sync.Mutex
	recordID uuid.UUID
}

// NewSessionService creates a new session service
func NewSessionService(deps SessionDeps, tracer trace.Tracer, logger *zap.Logger) *SessionService {
	if deps.Clock == nil {
		deps.Clock = window.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = event.NopPublisher{}
	}
	return &SessionService{
		deps:     deps,
		tracer:   tracer,
		logger:   logger,
		sessions: make(map[string]*liveSession),
	}
}

func liveKey(activityID, participantID string) string {
	return activityID + "|" + participantID
}

// Join exchanges an access key for an activity and opens the session
func (s *SessionService) Join(ctx context.Context, participantID string, req *domain.JoinSessionRequest) (*session.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Join")
	defer span.End()

	span.SetAttributes(
		attribute.String("participant.id", participantID),
		attribute.String("activity.kind", string(req.Kind)),
	)

	if req.AccessKey == "" {
		return nil, domain.ErrEmptyAccessKey
	}
	if !req.Kind.Valid() {
		return nil, domain.ErrUnsupportedActivityKind
	}

	ref, err := s.deps.Activities.Join(ctx, req.Kind, req.AccessKey)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Participant joined activity",
		zap.String("activity_id", ref.ID),
		zap.String("participant_id", participantID),
	)
	return s.Open(ctx, participantID, *ref)
}

// Open returns the session of a participant, loading it when this instance
// does not hold it yet. Activity, progress and earlier answers are loaded
// together; the session is never built over partial data.
func (s *SessionService) Open(ctx context.Context, participantID string, ref domain.ActivityRef) (*session.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Open")
	defer span.End()

	span.SetAttributes(
		attribute.String("activity.id", ref.ID),
		attribute.String("participant.id", participantID),
	)

	live, err := s.open(ctx, participantID, ref)
	if err != nil {
		return nil, err
	}
	snap := live.Snapshot()
	return &snap, nil
}

func (s *SessionService) open(ctx context.Context, participantID string, ref domain.ActivityRef) (*liveSession, error) {
	if !ref.Kind.Valid() {
		return nil, domain.ErrUnsupportedActivityKind
	}
	key := liveKey(ref.ID, participantID)

	s.mu.RLock()
	live, ok := s.sessions[key]
	s.mu.RUnlock()
	if ok {
		return live, nil
	}

	var (
		activity *domain.Activity
		progress *domain.Progress
		answers  []domain.QuizAnswer
		record   *domain.SessionRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		activity, err = s.deps.Activities.FindByID(gctx, ref)
		return err
	})
	g.Go(func() error {
		if ref.Kind == domain.ActivityKindQuiz {
			var err error
			answers, err = s.deps.Answers.FindByQuiz(gctx, ref.ID)
			return err
		}
		var err error
		progress, err = s.deps.Progress.FindByActivity(gctx, ref)
		return err
	})
	g.Go(func() error {
		var err error
		record, err = s.deps.Journal.FindSession(gctx, ref.ID, participantID)
		if errors.Is(err, domain.ErrSessionNotFound) {
			record, err = nil, nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("Failed to load session",
			zap.String("activity_id", ref.ID),
			zap.String("participant_id", participantID),
			zap.Error(err),
		)
		return nil, err
	}

	if ref.Kind == domain.ActivityKindQuiz {
		progress = progressFromAnswers(ref.ID, participantID, answers)
	}

	cfg := session.Config{
		ParticipantID: participantID,
		Activity:      activity,
		Progress:      progress,
		Answers:       answers,
		Languages:     s.deps.Languages,
		Clock:         s.deps.Clock,
	}
	joinedAt := s.deps.Clock.Now()
	if record != nil {
		cfg.State = record.State
		cfg.CurrentQuestionID = record.CurrentQuestionID
		cfg.Timers = record.TimerMap()
		cfg.Runs = s.restoreRuns(ctx, record.ID, activity)
		joinedAt = record.JoinedAt
	}

	sess, err := session.New(cfg, session.Ports{
		Activities:  s.deps.Activities,
		TestCases:   s.deps.TestCases,
		Submissions: s.deps.Submissions,
		Answers:     s.deps.Answers,
		Runner:      s.deps.Runner,
	})
	if err != nil {
		return nil, err
	}
	live = &liveSession{Session: sess, ref: ref, joinedAt: joinedAt}

	s.mu.Lock()
	if existing, ok := s.sessions[key]; ok {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[key] = live
	s.mu.Unlock()

	if m := s.deps.Metrics; m != nil {
		m.ActiveSessions.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(ref.Kind))))
	}
	s.persist(ctx, live)

	s.logger.Info("Session opened",
		zap.String("activity_id", ref.ID),
		zap.String("participant_id", participantID),
		zap.String("state", string(live.State())),
		zap.Bool("restored", record != nil),
	)
	return live, nil
}

// restoreRuns reads back the latest journaled run of every coding question
func (s *SessionService) restoreRuns(ctx context.Context, sessionID uuid.UUID, activity *domain.Activity) map[string]*session.RunReport {
	runs := make(map[string]*session.RunReport)
	for _, q := range activity.Questions {
		if q.Kind != domain.QuestionKindCoding {
			continue
		}
		records, err := s.deps.Journal.ListRuns(ctx, sessionID, q.ID)
		if err != nil {
			s.logger.Warn("Failed to read journaled runs",
				zap.String("activity_id", activity.ID),
				zap.String("question_id", q.ID),
				zap.Error(err),
			)
			continue
		}
		if len(records) == 0 {
			continue
		}
		latest := records[0]
		verdict := domain.Aggregate(latest.Results)
		runs[q.ID] = &session.RunReport{
			QuestionID: latest.QuestionID,
			Language:   latest.Language,
			Results:    latest.Results,
			Verdict:    verdict,
			Message:    verdict.Message(),
			RanAt:      latest.CreatedAt,
		}
	}
	return runs
}

// lookup finds a live session, restoring it from the journal after a restart
func (s *SessionService) lookup(ctx context.Context, participantID, activityID string) (*liveSession, error) {
	s.mu.RLock()
	live, ok := s.sessions[liveKey(activityID, participantID)]
	s.mu.RUnlock()
	if ok {
		return live, nil
	}

	record, err := s.deps.Journal.FindSession(ctx, activityID, participantID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, participantID, domain.ActivityRef{ID: activityID, Kind: record.ActivityKind})
}

// Snapshot returns the current state of a session
func (s *SessionService) Snapshot(ctx context.Context, participantID, activityID string) (*session.Snapshot, error) {
	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	snap := live.Snapshot()
	return &snap, nil
}

// Window returns the window of a session's activity
func (s *SessionService) Window(ctx context.Context, participantID, activityID string) (domain.Window, error) {
	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return domain.Window{}, err
	}
	return live.Window(), nil
}

// SelectQuestion moves the participant to another question
func (s *SessionService) SelectQuestion(ctx context.Context, participantID, activityID, questionID string) (*session.QuestionView, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.SelectQuestion")
	defer span.End()

	span.SetAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("question.id", questionID),
	)

	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	view, err := live.SelectQuestion(questionID)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, live)
	return view, nil
}

// Question returns a question without changing the current one
func (s *SessionService) Question(ctx context.Context, participantID, activityID, questionID string) (*session.QuestionView, error) {
	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	return live.QuestionView(questionID)
}

// Run executes the public test cases of a coding question
func (s *SessionService) Run(ctx context.Context, participantID, activityID string, cmd session.CodeCommand) (*session.RunReport, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Run")
	defer span.End()

	span.SetAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("question.id", cmd.QuestionID),
		attribute.String("language", string(cmd.Language)),
	)

	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	report, err := live.Run(ctx, cmd)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("cases.total", report.Verdict.Total),
		attribute.Int("cases.passed", report.Verdict.Passed),
	)

	if id, ok := s.recordID(ctx, live); ok {
		run := &domain.RunRecord{
			SessionID:  id,
			QuestionID: report.QuestionID,
			Language:   report.Language,
			AllPassed:  report.Verdict.AllPassed,
			AnyFailed:  report.Verdict.AnyFailed,
			FirstError: report.Verdict.FirstError,
			Results:    report.Results,
			CreatedAt:  report.RanAt,
		}
		if err := s.deps.Journal.AppendRun(ctx, run); err != nil {
			s.logger.Error("Failed to journal run", zap.String("activity_id", activityID), zap.Error(err))
		}
	}
	return report, nil
}

// Submit sends code for grading, journals it, publishes an event and
// refreshes progress from the backend
func (s *SessionService) Submit(ctx context.Context, participantID, activityID string, cmd session.CodeCommand) (*session.SubmitReceipt, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("question.id", cmd.QuestionID),
		attribute.String("language", string(cmd.Language)),
	)

	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	receipt, err := live.Submit(ctx, cmd)
	if err != nil {
		return nil, err
	}

	sub := receipt.Submission
	if id, ok := s.recordID(ctx, live); ok {
		rec := &domain.SubmissionRecord{
			SessionID:      id,
			ActivityID:     sub.ActivityID,
			QuestionID:     sub.QuestionID,
			ParticipantID:  sub.ParticipantID,
			Language:       sub.Language,
			Code:           sub.Code,
			ElapsedSeconds: sub.ElapsedSeconds,
			SubmittedAt:    sub.SubmittedAt,
		}
		if err := s.deps.Journal.AppendSubmission(ctx, rec); err != nil {
			s.logger.Error("Failed to journal submission", zap.String("activity_id", activityID), zap.Error(err))
		}
	}

	evt := event.SubmissionEvent{
		ActivityID:     sub.ActivityID,
		ActivityKind:   string(live.ref.Kind),
		QuestionID:     sub.QuestionID,
		ParticipantID:  sub.ParticipantID,
		Language:       sub.Language,
		ElapsedSeconds: sub.ElapsedSeconds,
		PassedPublic:   receipt.Solved,
		SubmittedAt:    sub.SubmittedAt,
	}
	if err := s.deps.Publisher.PublishSubmission(ctx, evt); err != nil {
		s.logger.Warn("Failed to publish submission event", zap.String("activity_id", activityID), zap.Error(err))
	}
	if m := s.deps.Metrics; m != nil {
		m.SubmissionsSent.Add(ctx, 1, metric.WithAttributes(attribute.String("language", string(sub.Language))))
	}

	if err := s.refresh(ctx, live); err != nil {
		s.logger.Warn("Failed to refresh progress after submission", zap.String("activity_id", activityID), zap.Error(err))
	}
	receipt.Solved = live.Snapshot().IsSolved(sub.QuestionID)

	s.logger.Info("Submission sent",
		zap.String("activity_id", activityID),
		zap.String("question_id", sub.QuestionID),
		zap.String("participant_id", participantID),
		zap.Int64("elapsed_seconds", sub.ElapsedSeconds),
	)
	s.persist(ctx, live)
	return receipt, nil
}

// Answer records a quiz answer
func (s *SessionService) Answer(ctx context.Context, participantID, activityID string, cmd session.AnswerCommand) (*domain.QuizAnswer, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.Answer")
	defer span.End()

	span.SetAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("question.id", cmd.QuestionID),
	)

	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	answer, err := live.Answer(ctx, cmd)
	if err != nil {
		return nil, err
	}
	s.persist(ctx, live)
	return answer, nil
}

// RefreshProgress reloads the solved set from the backend
func (s *SessionService) RefreshProgress(ctx context.Context, participantID, activityID string) (*session.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.RefreshProgress")
	defer span.End()

	span.SetAttributes(attribute.String("activity.id", activityID))

	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	if err := s.refresh(ctx, live); err != nil {
		return nil, err
	}
	s.reloadWindow(ctx, live)
	s.persist(ctx, live)
	snap := live.Snapshot()
	return &snap, nil
}

// reloadWindow re-reads the activity so that a window edited by the host
// reaches sessions that are already open
func (s *SessionService) reloadWindow(ctx context.Context, live *liveSession) {
	activity, err := s.deps.Activities.FindByID(ctx, live.ref)
	if err != nil {
		s.logger.Warn("Failed to reload activity window",
			zap.String("activity_id", live.ref.ID),
			zap.Error(err),
		)
		return
	}
	live.UpdateWindow(activity.Window)
}

func (s *SessionService) refresh(ctx context.Context, live *liveSession) error {
	var progress *domain.Progress
	if live.ref.Kind == domain.ActivityKindQuiz {
		answers, err := s.deps.Answers.FindByQuiz(ctx, live.ref.ID)
		if err != nil {
			return err
		}
		progress = progressFromAnswers(live.ref.ID, live.ParticipantID(), answers)
	} else {
		var err error
		progress, err = s.deps.Progress.FindByActivity(ctx, live.ref)
		if err != nil {
			return err
		}
	}
	live.ApplyProgress(progress)
	return nil
}

// End closes the session at the participant's request
func (s *SessionService) End(ctx context.Context, participantID, activityID string) (*session.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.End")
	defer span.End()

	span.SetAttributes(
		attribute.String("activity.id", activityID),
		attribute.String("participant.id", participantID),
	)

	live, err := s.lookup(ctx, participantID, activityID)
	if err != nil {
		return nil, err
	}
	if err := live.End(ctx); err != nil {
		return nil, err
	}
	s.persist(ctx, live)

	s.logger.Info("Session ended",
		zap.String("activity_id", activityID),
		zap.String("participant_id", participantID),
	)
	snap := live.Snapshot()
	return &snap, nil
}

// ReapEnded journals every live session and evicts the closed ones. It
// returns how many sessions were evicted.
func (s *SessionService) ReapEnded(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "SessionService.ReapEnded")
	defer span.End()

	s.mu.RLock()
	live := make([]*liveSession, 0, len(s.sessions))
	for _, ls := range s.sessions {
		live = append(live, ls)
	}
	s.mu.RUnlock()

	var firstErr error
	evicted := 0
	for _, ls := range live {
		if err := s.save(ctx, ls); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ls.State().Closed() {
			continue
		}

		s.mu.Lock()
		delete(s.sessions, liveKey(ls.ref.ID, ls.ParticipantID()))
		s.mu.Unlock()
		evicted++
		if m := s.deps.Metrics; m != nil {
			m.ActiveSessions.Add(ctx, -1, metric.WithAttributes(attribute.String("kind", string(ls.ref.Kind))))
		}
	}

	closed, err := s.closeStale(ctx)
	if err != nil && firstErr == nil {
		firstErr = err
	}

	span.SetAttributes(
		attribute.Int("sessions.evicted", evicted),
		attribute.Int("sessions.closed_stale", closed),
	)
	if evicted > 0 {
		s.logger.Info("Evicted ended sessions", zap.Int("count", evicted))
	}
	if closed > 0 {
		s.logger.Info("Closed journaled sessions whose window ended", zap.Int("count", closed))
	}
	return evicted, firstErr
}

// closeStale ends journaled sessions that no instance holds live and whose
// window closed meanwhile, for example while the engine was down
func (s *SessionService) closeStale(ctx context.Context) (int, error) {
	records, err := s.deps.Journal.ListOpenSessions(ctx)
	if err != nil {
		return 0, err
	}

	now := s.deps.Clock.Now()
	closed := 0
	for i := range records {
		record := &records[i]
		if record.WindowEnd == nil || !now.After(*record.WindowEnd) {
			continue
		}
		s.mu.RLock()
		_, live := s.sessions[liveKey(record.ActivityID, record.ParticipantID)]
		s.mu.RUnlock()
		if live {
			continue
		}

		endedAt := *record.WindowEnd
		record.ID = uuid.Nil
		record.Timers = nil
		record.State = domain.SessionStateEnded
		record.CurrentQuestionID = ""
		record.EndedAt = &endedAt
		if err := s.deps.Journal.SaveSession(ctx, record); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}

// LiveCount returns how many sessions this instance holds
func (s *SessionService) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// persist journals the session, logging failures; the backend stays the
// system of record so a failed write never fails the request
func (s *SessionService) persist(ctx context.Context, live *liveSession) {
	if err := s.save(ctx, live); err != nil {
		s.logger.Error("Failed to journal session",
			zap.String("activity_id", live.ref.ID),
			zap.String("participant_id", live.ParticipantID()),
			zap.Error(err),
		)
	}
}

func (s *SessionService) save(ctx context.Context, live *liveSession) error {
	snap := live.Snapshot()
	timers := live.Timers()
	windowEnd := live.Window().End

	record := &domain.SessionRecord{
		ActivityID:        live.ref.ID,
		ActivityKind:      live.ref.Kind,
		ParticipantID:     live.ParticipantID(),
		State:             snap.State,
		CurrentQuestionID: snap.CurrentQuestionID,
		SolvedQuestions:   snap.SolvedQuestions,
		JoinedAt:          live.joinedAt,
		WindowEnd:         &windowEnd,
		EndedAt:           snap.EndedAt,
		Timers:            make([]domain.QuestionTimer, 0, len(timers)),
	}
	for qid, d := range timers {
		record.Timers = append(record.Timers, domain.QuestionTimer{
			QuestionID:     qid,
			ElapsedSeconds: int64(d / time.Second),
		})
	}
	sort.Slice(record.Timers, func(i, j int) bool { return record.Timers[i].QuestionID < record.Timers[j].QuestionID })

	if err := s.deps.Journal.SaveSession(ctx, record); err != nil {
		return err
	}
	live.mu.Lock()
	live.recordID = record.ID
	live.mu.Unlock()
	return nil
}

// recordID returns the journal id of a session, saving it first if needed
func (s *SessionService) recordID(ctx context.Context, live *liveSession) (uuid.UUID, bool) {
	live.mu.Lock()
	id := live.recordID
	live.mu.Unlock()
	if id != uuid.Nil {
		return id, true
	}

	if err := s.save(ctx, live); err != nil {
		s.logger.Error("Failed to journal session", zap.String("activity_id", live.ref.ID), zap.Error(err))
		return uuid.Nil, false
	}
	live.mu.Lock()
	defer live.mu.Unlock()
	return live.recordID, live.recordID != uuid.Nil
}

// progressFromAnswers treats every answered quiz question as solved
func progressFromAnswers(quizID, participantID string, answers []domain.QuizAnswer) *domain.Progress {
	progress := &domain.Progress{
		ActivityID:      quizID,
		ParticipantID:   participantID,
		SolvedQuestions: make([]string, 0, len(answers)),
	}
	for _, a := range answers {
		progress.SolvedQuestions = append(progress.SolvedQuestions, a.QuestionID)
	}
	return progress
}
