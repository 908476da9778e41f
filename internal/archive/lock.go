package archive

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultLockTTL bounds how long an archival lock survives a crashed
// run before another run may proceed.
const DefaultLockTTL = 30 * time.Minute

// releaseScript deletes the lock only if this holder still owns it, so a
// slow run cannot release a lock that already expired and was re-acquired.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements per-tenant single-flight for archival runs with
// a Redis SET NX lease.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker creates a Redis-backed archival locker.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, logger: logger}
}

var _ Locker = (*RedisLocker)(nil)

// Acquire takes the tenant's archival lease. The returned release func is
// safe to call exactly once; it only removes the lease if this caller
// still holds it.
func (l *RedisLocker) Acquire(ctx context.Context, tenantID uuid.UUID) (func(), bool, error) {
	key := "archival:lock:" + tenantID.String()
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// Release uses a fresh context so cancellation of the run does
		// not leak the lease until TTL expiry.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil && l.logger != nil {
			l.logger.Warn("archival_lock_release_failed",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
		}
	}
	return release, true, nil
}
