package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Release must only delete a lock it still owns, so the token is checked
// server-side.
const inflightReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// InflightLock is a redis SetNX lock keyed per (user, idempotency key). It
// keeps a double-submitted create from reaching the coordinator twice while
// the first request is still in flight; the TTL bounds how long a crashed
// holder can block retries.
type InflightLock struct {
	client  *redis.Client
	release *redis.Script
}

func NewInflightLock(client *redis.Client) *InflightLock {
	if client == nil {
		return nil
	}
	return &InflightLock{
		client:  client,
		release: redis.NewScript(inflightReleaseScript),
	}
}

// TryAcquire attempts to take the lock. The returned token must be passed to
// Release; acquired is false when another request holds the key.
func (l *InflightLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (token string, acquired bool, err error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token = uuid.NewString()
	acquired, err = l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, acquired, nil
}

// Release frees the lock if the token still owns it. Releasing an expired or
// foreign lock is a no-op.
func (l *InflightLock) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.release.Run(ctx, l.client, []string{key}, token).Err()
}
