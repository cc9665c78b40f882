package repository

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// ttlJitter spreads expiries by up to a tenth of the ttl
type ttlJitter struct {
	ttl time.Duration
	mu  sync.Mutex
	rnd *rand.Rand
}

func newTTLJitter(ttl time.Duration) *ttlJitter {
	return &ttlJitter{ttl: ttl, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (j *ttlJitter) next() time.Duration {
	if j.ttl <= 0 {
		return 0
	}
	jitterMax := int64(j.ttl) / 10
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.ttl + time.Duration(j.rnd.Int63n(jitterMax+1))
}

// cachedActivityRepository caches activities in Redis and loads misses from
// the backend once per key
type cachedActivityRepository struct {
	client *redis.Client
	next   domain.ActivityRepository
	ttl    *ttlJitter
	sf     singleflight.Group
	logger *zap.Logger
}

// NewCachedActivityRepository wraps next with a Redis read-through cache
func NewCachedActivityRepository(client *redis.Client, next domain.ActivityRepository, ttl time.Duration, logger *zap.Logger) domain.ActivityRepository {
	return &cachedActivityRepository{
		client: client,
		next:   next,
		ttl:    newTTLJitter(ttl),
		logger: logger,
	}
}

func activityKey(ref domain.ActivityRef) string {
	return "activity:" + string(ref.Kind) + ":" + ref.ID
}

// Join is never cached; every join is checked by the backend
func (r *cachedActivityRepository) Join(ctx context.Context, kind domain.ActivityKind, accessKey string) (*domain.ActivityRef, error) {
	return r.next.Join(ctx, kind, accessKey)
}

// FindByID returns the cached activity or loads it
func (r *cachedActivityRepository) FindByID(ctx context.Context, ref domain.ActivityRef) (*domain.Activity, error) {
	key := activityKey(ref)
	if activity, ok := r.get(ctx, key); ok {
		return activity, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if activity, ok := r.get(ctx, key); ok {
			return activity, nil
		}
		activity, err := r.next.FindByID(ctx, ref)
		if err != nil {
			return nil, err
		}
		if payload, err := sonic.Marshal(activity); err == nil {
			if err := r.client.Set(ctx, key, payload, r.ttl.next()).Err(); err != nil {
				r.logger.Warn("Failed to cache activity", zap.String("key", key), zap.Error(err))
			}
		}
		return activity, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.Activity), nil
}

// End forwards to the backend
func (r *cachedActivityRepository) End(ctx context.Context, ref domain.ActivityRef) error {
	return r.next.End(ctx, ref)
}

func (r *cachedActivityRepository) get(ctx context.Context, key string) (*domain.Activity, bool) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Activity cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var activity domain.Activity
	if err := sonic.Unmarshal(payload, &activity); err != nil {
		return nil, false
	}
	return &activity, true
}

// cachedTestCaseRepository caches public test cases per question
type cachedTestCaseRepository struct {
	client *redis.Client
	next   domain.TestCaseRepository
	ttl    *ttlJitter
	sf     singleflight.Group
	logger *zap.Logger
}

// NewCachedTestCaseRepository wraps next with a Redis read-through cache
func NewCachedTestCaseRepository(client *redis.Client, next domain.TestCaseRepository, ttl time.Duration, logger *zap.Logger) domain.TestCaseRepository {
	return &cachedTestCaseRepository{
		client: client,
		next:   next,
		ttl:    newTTLJitter(ttl),
		logger: logger,
	}
}

func testCasesKey(questionID string) string {
	return "testcases:" + questionID + ":public"
}

// FindPublicByQuestion returns the cached test cases or loads them
func (r *cachedTestCaseRepository) FindPublicByQuestion(ctx context.Context, questionID string) ([]domain.TestCase, error) {
	key := testCasesKey(questionID)
	if cases, ok := r.get(ctx, key); ok {
		return cases, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if cases, ok := r.get(ctx, key); ok {
			return cases, nil
		}
		cases, err := r.next.FindPublicByQuestion(ctx, questionID)
		if err != nil {
			return nil, err
		}
		if payload, err := sonic.Marshal(cases); err == nil {
			if err := r.client.Set(ctx, key, payload, r.ttl.next()).Err(); err != nil {
				r.logger.Warn("Failed to cache test cases", zap.String("key", key), zap.Error(err))
			}
		}
		return cases, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.TestCase), nil
}

func (r *cachedTestCaseRepository) get(ctx context.Context, key string) ([]domain.TestCase, bool) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("Test case cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var cases []domain.TestCase
	if err := sonic.Unmarshal(payload, &cases); err != nil {
		return nil, false
	}
	return cases, true
}
