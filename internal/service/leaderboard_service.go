package service

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
	"github.com/contest-maker-150/assessment/internal/window"
)

// LeaderboardView is a ranked leaderboard as last applied for an activity
type LeaderboardView struct {
	ActivityID string                    `json:"activity_id"`
	Kind       domain.ActivityKind       `json:"kind"`
	Entries    []domain.LeaderboardEntry `json:"entries"`
	Sequence   uint64                    `json:"sequence"`
	FetchedAt  time.Time                 `json:"fetched_at"`

	// Discarded is set when the response belonged to a superseded request;
	// the view then holds the latest applied data, if any
	Discarded bool `json:"discarded"`
}

// LeaderboardService fetches and recomputes leaderboards. Every request is
// tagged with a per-activity sequence number and a response is applied only
// when it answers the most recently issued request.
type LeaderboardService struct {
	repo   domain.LeaderboardRepository
	clock  window.Clock
	tracer trace.Tracer
	logger *zap.Logger

	mu     sync.Mutex
	issued map[domain.ActivityRef]uint64
	views  map[domain.ActivityRef]*LeaderboardView
}

// NewLeaderboardService creates a new leaderboard service
func NewLeaderboardService(repo domain.LeaderboardRepository, clock window.Clock, tracer trace.Tracer, logger *zap.Logger) *LeaderboardService {
	if clock == nil {
		clock = window.SystemClock{}
	}
	return &LeaderboardService{
		repo:   repo,
		clock:  clock,
		tracer: tracer,
		logger: logger,
		issued: make(map[domain.ActivityRef]uint64),
		views:  make(map[domain.ActivityRef]*LeaderboardView),
	}
}

// Fetch reads the current leaderboard
func (s *LeaderboardService) Fetch(ctx context.Context, ref domain.ActivityRef) (*LeaderboardView, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.Fetch")
	defer span.End()

	span.SetAttributes(attribute.String("activity.id", ref.ID))
	return s.load(ctx, ref, s.repo.Fetch)
}

// Recompute asks the backend to recalculate scores and reads the result
func (s *LeaderboardService) Recompute(ctx context.Context, ref domain.ActivityRef) (*LeaderboardView, error) {
	ctx, span := s.tracer.Start(ctx, "LeaderboardService.Recompute")
	defer span.End()

	span.SetAttributes(attribute.String("activity.id", ref.ID))
	view, err := s.load(ctx, ref, s.repo.Recompute)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Leaderboard recomputed",
		zap.String("activity_id", ref.ID),
		zap.Int("entries", len(view.Entries)),
		zap.Bool("discarded", view.Discarded),
	)
	return view, nil
}

// Latest returns the last applied view without calling the backend
func (s *LeaderboardService) Latest(ref domain.ActivityRef) (*LeaderboardView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	view, ok := s.views[ref]
	if !ok {
		return nil, false
	}
	cp := *view
	return &cp, true
}

func (s *LeaderboardService) load(ctx context.Context, ref domain.ActivityRef, fetch func(context.Context, domain.ActivityRef) ([]domain.LeaderboardEntry, error)) (*LeaderboardView, error) {
	if !ref.Kind.Valid() {
		return nil, domain.ErrUnsupportedActivityKind
	}
	seq := s.issue(ref)

	entries, err := fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return s.apply(ref, seq, domain.RankLeaderboard(entries)), nil
}

func (s *LeaderboardService) issue(ref domain.ActivityRef) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[ref]++
	return s.issued[ref]
}

// apply stores the response when seq is the latest issued request and
// otherwise returns the current view flagged as discarded
func (s *LeaderboardService) apply(ref domain.ActivityRef, seq uint64, entries []domain.LeaderboardEntry) *LeaderboardView {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.issued[ref] {
		s.logger.Debug("Discarding superseded leaderboard response",
			zap.String("activity_id", ref.ID),
			zap.Uint64("sequence", seq),
			zap.Uint64("latest", s.issued[ref]),
		)
		view := &LeaderboardView{ActivityID: ref.ID, Kind: ref.Kind, Entries: []domain.LeaderboardEntry{}}
		if current, ok := s.views[ref]; ok {
			cp := *current
			view = &cp
		}
		view.Discarded = true
		return view
	}

	view := &LeaderboardView{
		ActivityID: ref.ID,
		Kind:       ref.Kind,
		Entries:    entries,
		Sequence:   seq,
		FetchedAt:  s.clock.Now(),
	}
	s.views[ref] = view
	cp := *view
	return &cp
}
