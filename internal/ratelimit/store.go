package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Result is the outcome of a single Allow call
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Store counts hits per key and holds cooldown markers
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	// Acquire sets key for ttl unless it is already set; it reports whether key was set
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisStore is a fixed-window counter shared by every API instance
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	key = "ratelimit:" + key

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return Result{}, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	if count <= int64(limit) {
		return Result{Allowed: true, Remaining: limit - int(count)}, nil
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("failed to get rate limit ttl: %w", err)
	}
	if ttl <= 0 {
		// counter lost its expiry, start a fresh window
		ttl = window
		s.client.Expire(ctx, key, window)
	}
	return Result{Allowed: false, RetryAfter: ttl}, nil
}

func (s *RedisStore) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, "cooldown:"+key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set cooldown: %w", err)
	}
	return ok, nil
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryStore keeps token buckets per key in process memory.
// Buckets refill at limit/window and allow a burst of limit.
type MemoryStore struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	cooldowns map[string]time.Time
	now       func() time.Time
	stop      chan struct{}
	stopOnce  sync.Once
}

func NewMemoryStore() *MemoryStore {
	s := newMemoryStore(time.Now)
	go s.cleanupLoop(time.Minute)
	return s
}

func newMemoryStore(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		buckets:   make(map[string]*bucket),
		cooldowns: make(map[string]time.Time),
		now:       now,
		stop:      make(chan struct{}),
	}
}

func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := s.now()

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	if b.limiter.AllowN(now, 1) {
		return Result{Allowed: true, Remaining: int(b.limiter.TokensAt(now))}, nil
	}

	r := b.limiter.ReserveN(now, 1)
	delay := r.DelayFrom(now)
	r.CancelAt(now)
	return Result{Allowed: false, RetryAfter: delay}, nil
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if until, ok := s.cooldowns[key]; ok && now.Before(until) {
		return false, nil
	}
	s.cooldowns[key] = now.Add(ttl)
	return true, nil
}

// Close stops the cleanup goroutine
func (s *MemoryStore) Close() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup(15 * time.Minute)
		case <-s.stop:
			return
		}
	}
}

// cleanup drops buckets idle for longer than idle and expired cooldowns
func (s *MemoryStore) cleanup(idle time.Duration) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(s.buckets, key)
		}
	}
	for key, until := range s.cooldowns {
		if !now.Before(until) {
			delete(s.cooldowns, key)
		}
	}
}
