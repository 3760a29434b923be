package adapter

import (
	"context"
	"time"
)

// Locker is a best-effort distributed mutex. It narrows races between replicas but
// correctness never depends on it; the database writes stay conditional.
type Locker interface {
	// TryLock fails with domain.ErrLockBusy when another holder keeps the key.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
