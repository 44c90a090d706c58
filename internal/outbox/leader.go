package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/vantage-wms/vantage/internal/shared"
)

// releaseScript deletes the lease only when still held by this owner.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a redis-backed advisory lock electing a single relay drainer.
// Losing the lease is harmless; delivery stays at-least-once either way.
type Lease struct {
	client *redis.Client
	key    string
	token  string
	ttl    time.Duration
}

// NewLease constructs a Lease with a unique owner token.
func NewLease(client *redis.Client, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lease{
		client: client,
		key:    shared.RelayLockKey(),
		token:  uuid.NewString(),
		ttl:    ttl,
	}
}

// Acquire takes or renews the lease. It returns false when another instance
// currently holds it.
func (l *Lease) Acquire(ctx context.Context) (bool, error) {
	if l == nil || l.client == nil {
		return false, errors.New("outbox: lease not initialised")
	}
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	holder, err := l.client.Get(ctx, l.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if holder != l.token {
		return false, nil
	}
	// Still ours: renew the TTL.
	if err := l.client.Expire(ctx, l.key, l.ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Release frees the lease if this instance still owns it.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil || l.client == nil {
		return nil
	}
	return releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
}
