// Package idempotency provides short-lived claims on booking keys so that two
// concurrent commits for the same owner and instant cannot both proceed.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var ErrInvalidTTL = errors.New("idempotency: ttl must be positive")

// Guard claims keys. Claim reports false when the key is already held.
type Guard interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// RedisGuard holds claims as SET NX keys with an expiry.
type RedisGuard struct {
	redis  *redis.Client
	prefix string
	tracer trace.Tracer
}

func NewRedisGuard(client *redis.Client, prefix string) *RedisGuard {
	if client == nil {
		panic("idempotency: redis client cannot be nil")
	}
	return &RedisGuard{
		redis:  client,
		prefix: prefix,
		tracer: otel.Tracer("tarot-time.internal.platform.idempotency"),
	}
}

func (g *RedisGuard) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	ctx, span := g.tracer.Start(ctx, "idempotency.claim")
	defer span.End()

	ok, err := g.redis.SetNX(ctx, g.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("idempotency: claim %s: %w", key, err)
	}
	return ok, nil
}

func (g *RedisGuard) Release(ctx context.Context, key string) error {
	ctx, span := g.tracer.Start(ctx, "idempotency.release")
	defer span.End()

	if err := g.redis.Del(ctx, g.prefix+key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("idempotency: release %s: %w", key, err)
	}
	return nil
}

// MemoryGuard is the single-process fallback used when no Redis is
// configured.
type MemoryGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
	now    func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claims: make(map[string]time.Time), now: time.Now}
}

func (g *MemoryGuard) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return false, ErrInvalidTTL
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if exp, ok := g.claims[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.claims[key] = now.Add(ttl)

	for k, exp := range g.claims {
		if !now.Before(exp) {
			delete(g.claims, k)
		}
	}
	return true, nil
}

func (g *MemoryGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	delete(g.claims, key)
	g.mu.Unlock()
	return nil
}
