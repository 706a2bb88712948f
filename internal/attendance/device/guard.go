// Package device detects one physical device checking in multiple identities
// on the same event. The guard here is a fast-path pre-check shared across
// instances; the storage uniqueness constraint on non-deleted, non-manual
// records remains the authoritative enforcement.
package device

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// Guard claims a device fingerprint for a user on an event. A claim by a
// different user for the same (event, fingerprint) fails with
// sentinel.ErrAlreadyUsed.
type Guard interface {
	Claim(ctx context.Context, eventID id.EventID, fingerprint string, userID id.UserID) error
	Release(ctx context.Context, eventID id.EventID, fingerprint string) error
}

const claimKeyPrefix = "attendance:device:"

func claimKey(eventID id.EventID, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", claimKeyPrefix, eventID, fingerprint)
}

// RedisGuard shares device claims across instances via SET NX. Claims carry a
// TTL so abandoned entries age out; Redis going away degrades to the storage
// constraint alone, never to corrupt state.
type RedisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard constructs a Redis-backed guard. The TTL should cover the
// widest check-in window an event can have.
func NewRedisGuard(client *redis.Client, ttl time.Duration) *RedisGuard {
	return &RedisGuard{client: client, ttl: ttl}
}

func (g *RedisGuard) Claim(ctx context.Context, eventID id.EventID, fingerprint string, userID id.UserID) error {
	key := claimKey(eventID, fingerprint)
	set, err := g.client.SetNX(ctx, key, userID.String(), g.ttl).Result()
	if err != nil {
		return fmt.Errorf("claim device fingerprint: %w", err)
	}
	if set {
		return nil
	}

	owner, err := g.client.Get(ctx, key).Result()
	if err == redis.Nil {
		// Claim expired between SETNX and GET; retry once.
		set, err := g.client.SetNX(ctx, key, userID.String(), g.ttl).Result()
		if err != nil {
			return fmt.Errorf("claim device fingerprint: %w", err)
		}
		if set {
			return nil
		}
		return sentinel.ErrAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("read device fingerprint claim: %w", err)
	}
	if owner == userID.String() {
		return nil
	}
	return sentinel.ErrAlreadyUsed
}

func (g *RedisGuard) Release(ctx context.Context, eventID id.EventID, fingerprint string) error {
	if err := g.client.Del(ctx, claimKey(eventID, fingerprint)).Err(); err != nil {
		return fmt.Errorf("release device fingerprint: %w", err)
	}
	return nil
}

// MemoryGuard is the single-process implementation used by tests and by
// deployments without Redis configured.
type MemoryGuard struct {
	mu     sync.Mutex
	claims map[string]id.UserID
}

// NewMemoryGuard constructs an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{claims: make(map[string]id.UserID)}
}

func (g *MemoryGuard) Claim(_ context.Context, eventID id.EventID, fingerprint string, userID id.UserID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := claimKey(eventID, fingerprint)
	if owner, ok := g.claims[key]; ok && owner != userID {
		return sentinel.ErrAlreadyUsed
	}
	g.claims[key] = userID
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, eventID id.EventID, fingerprint string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, claimKey(eventID, fingerprint))
	return nil
}

// NoopGuard disables the fast path entirely, leaving conflict detection to
// the storage constraint.
type NoopGuard struct{}

func (NoopGuard) Claim(context.Context, id.EventID, string, id.UserID) error { return nil }

func (NoopGuard) Release(context.Context, id.EventID, string) error { return nil }
