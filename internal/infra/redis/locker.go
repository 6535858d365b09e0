package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker implements app.Locker across instances with SET NX PX. The lease
// bounds how long a crashed holder can block a key.
type Locker struct {
	client *redis.Client
	lease  time.Duration
	poll   time.Duration
	log    logrus.FieldLogger
}

func NewLocker(client *redis.Client, lease time.Duration, logger logrus.FieldLogger) *Locker {
	if lease <= 0 {
		lease = 10 * time.Second
	}
	return &Locker{client: client, lease: lease, poll: 20 * time.Millisecond, log: logger}
}

// Lock retries until the key is acquired or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "lock:" + key
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.lease).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		timer := time.NewTimer(l.poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(unlockCtx, l.client, []string{lockKey}, token).Err(); err != nil {
			l.log.WithError(err).WithField("key", key).Warn("redis unlock failed")
		}
	}, nil
}
