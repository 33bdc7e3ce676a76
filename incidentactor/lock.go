package incidentactor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RunLock guards "only one suggestion turn in flight per incident" across
// process boundaries, for deployments where more than one actor host might
// briefly own the same incident id during a rollover. A single in-process
// Actor never needs it (its own mutex already serializes callers); it
// exists for the multi-host case.
type RunLock interface {
	// TryLock attempts to acquire the lock for incidentID, returning true
	// if acquired. The lock expires automatically after ttl if never
	// released, so a crashed holder cannot wedge the incident forever.
	TryLock(ctx context.Context, incidentID string, ttl time.Duration) (Release func(context.Context), acquired bool, err error)
}

// RedisRunLock is a Redis-backed advisory lock using SET NX PX plus a
// random token, so a holder only ever releases the lock it acquired.
type RedisRunLock struct {
	client *redis.Client
	prefix string
}

// NewRedisRunLock wraps client in a RedisRunLock. prefix namespaces lock
// keys (e.g. "incident-agent:suggest-lock:").
func NewRedisRunLock(client *redis.Client, prefix string) *RedisRunLock {
	return &RedisRunLock{client: client, prefix: prefix}
}

// TryLock implements RunLock.
func (l *RedisRunLock) TryLock(ctx context.Context, incidentID string, ttl time.Duration) (func(context.Context), bool, error) {
	key := l.prefix + incidentID
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("incidentactor: acquire run lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(releaseCtx context.Context) {
		// Only delete the key if it still holds our token: a TTL expiry
		// followed by another host's acquisition must not be clobbered.
		current, err := l.client.Get(releaseCtx, key).Result()
		if err != nil || current != token {
			return
		}
		l.client.Del(releaseCtx, key)
	}
	return release, true, nil
}
