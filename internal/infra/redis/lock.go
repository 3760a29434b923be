package redis

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"psychic-credits/internal/domain"
	"psychic-credits/internal/domain/ports/adapter"
	"psychic-credits/internal/infra/metrics"
)

var _ adapter.Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli      *redis.Client
	tries    int
	backoff  time.Duration
	newToken func() string
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{cli: c.cli, tries: 5, backoff: 50 * time.Millisecond, newToken: uuid.NewString}
}

// TryLock returns a token that must be passed to Unlock. After a few short retries it
// gives up with domain.ErrLockBusy.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := l.newToken()
	var lastErr error
	for i := 0; i < l.tries; i++ {
		ok, err := l.cli.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			lastErr = err
		} else if ok {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	metrics.IncLockContention(lockScope(key))
	return "", domain.ErrLockBusy
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.cli, []string{key}, token).Result()
	return err
}

func lockScope(key string) string {
	if strings.HasPrefix(key, "lock:payment:") {
		return "payment"
	}
	return "other"
}
