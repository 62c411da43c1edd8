package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when a turn lock could not be acquired in time.
var ErrLockBusy = errors.New("usage: turn lock busy")

// TurnLocker serialises consolidation for one (user, session) pair.
type TurnLocker interface {
	Lock(ctx context.Context, userID, sessionID string) (unlock func(), err error)
}

// NoopLocker never blocks. Same-session writers are expected to be sequential.
type NoopLocker struct{}

// Lock implements TurnLocker.
func (NoopLocker) Lock(context.Context, string, string) (func(), error) { return func() {}, nil }

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisTurnLocker is a lease lock shared between gateway instances.
type RedisTurnLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisTurnLocker returns a locker whose leases expire after ttl.
func NewRedisTurnLocker(client redis.UniversalClient, ttl time.Duration) *RedisTurnLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisTurnLocker{client: client, ttl: ttl, retry: 25 * time.Millisecond}
}

func turnLockKey(userID, sessionID string) string {
	return fmt.Sprintf("gateway:turn-lock:%s:%s", userID, sessionID)
}

// Lock polls until the lease is acquired or ctx ends.
func (l *RedisTurnLocker) Lock(ctx context.Context, userID, sessionID string) (func(), error) {
	key := turnLockKey(userID, sessionID)
	token := uuid.NewString()
	for {
		ok, errSet := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if errSet != nil {
			return nil, fmt.Errorf("usage: acquire turn lock: %w", errSet)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
			}, nil
		}
		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %v", ErrLockBusy, ctx.Err())
		case <-timer.C:
		}
	}
}
