package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrLockNotAcquired = errors.New("practitioner calendar lock not acquired")

// Locker serializes booking work per practitioner calendar. Two concurrent
// requests against the same practitioner take turns; requests against
// different practitioners proceed in parallel.
type Locker interface {
	WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisCalendarLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCalendarLocker creates a locker backed by one Redis key per practitioner.
func NewRedisCalendarLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisCalendarLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisCalendarLocker) WithPractitionerLock(ctx context.Context, practitionerID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:practitioner:%s", practitionerID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire practitioner lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

// unlockScript deletes the key only when it still holds our token, so an
// expired lock grabbed by another request is never released from here.
var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisCalendarLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release practitioner lock: %w", err)
	}
	return nil
}
