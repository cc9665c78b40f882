package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/contest-maker-150/assessment/internal/domain"
)

type countingActivities struct {
	mu    sync.Mutex
	calls int
}

func (c *countingActivities) Join(ctx context.Context, kind domain.ActivityKind, key string) (*domain.ActivityRef, error) {
	return &domain.ActivityRef{ID: "c1", Kind: kind}, nil
}

func (c *countingActivities) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &domain.Activity{
		ID:     ref.ID,
		Kind:   ref.Kind,
		Title:  "Weekly",
		Window: domain.Window{Start: start, End: start.Add(time.Hour)},
		Questions: []domain.Question{
			{ID: "q1", Kind: domain.QuestionKindCoding, Title: "Two Sum", Marks: 10},
		},
	}, nil
}

func (c *countingActivities) End(ctx context.Context, ref domain.ActivityRef) error { return nil }

type countingTestCases struct {
	calls int
}

func (c *countingTestCases) FindPublicByQuestion(ctx context.Context, questionID string) ([]domain.TestCase, error) {
	c.calls++
	return []domain.TestCase{{Input: "1", Output: "2"}}, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestCachedActivityRepository(t *testing.T) {
	mr, client := newRedis(t)
	loader := &countingActivities{}
	repo := NewCachedActivityRepository(client, loader, time.Minute, zap.NewNop())
	ref := domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}

	first, err := repo.FindByID(context.Background(), ref)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	second, err := repo.FindByID(context.Background(), ref)
	if err != nil {
		t.Fatalf("find cached: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
	if !second.Window.Start.Equal(first.Window.Start) || len(second.Questions) != 1 {
		t.Fatalf("cached activity differs: %+v", second)
	}

	ttl := mr.TTL("activity:challenge:c1")
	if ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %s", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := repo.FindByID(context.Background(), ref); err != nil {
		t.Fatalf("find after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after expiry, got %d calls", loader.calls)
	}
}

func TestCachedActivityRepositoryCollapsesConcurrentMisses(t *testing.T) {
	_, client := newRedis(t)
	loader := &countingActivities{}
	repo := NewCachedActivityRepository(client, loader, time.Minute, zap.NewNop())
	ref := domain.ActivityRef{ID: "c1", Kind: domain.ActivityKindChallenge}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.FindByID(context.Background(), ref); err != nil {
				t.Errorf("find: %v", err)
			}
		}()
	}
	wg.Wait()

	loader.mu.Lock()
	defer loader.mu.Unlock()
	if loader.calls < 1 || loader.calls > 8 {
		t.Fatalf("unexpected loader calls %d", loader.calls)
	}
}

func TestCachedTestCaseRepository(t *testing.T) {
	_, client := newRedis(t)
	loader := &countingTestCases{}
	repo := NewCachedTestCaseRepository(client, loader, time.Minute, zap.NewNop())

	for i := 0; i < 3; i++ {
		cases, err := repo.FindPublicByQuestion(context.Background(), "q1")
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if len(cases) != 1 || cases[0].Output != "2" {
			t.Fatalf("unexpected cases %+v", cases)
		}
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}
}

func TestCacheFallsBackWhenRedisIsDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	loader := &countingTestCases{}
	repo := NewCachedTestCaseRepository(client, loader, time.Minute, zap.NewNop())
	mr.Close()

	if _, err := repo.FindPublicByQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("expected load from backend, got %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called, got %d", loader.calls)
	}
}
