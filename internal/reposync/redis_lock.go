package reposync

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker implements Locker with a SETNX-based distributed lock,
// used instead of the in-process mutex when multiple runner processes
// share one artifacts root and could otherwise race on the same
// working tree. It polls rather than blocking on a Redis primitive
// that doesn't exist (plain SETNX has no native "wait" mode).
type RedisLocker struct {
	Client     *redis.Client
	TTL        time.Duration
	PollEvery  time.Duration
	KeyPrefix  string
}

// NewRedisLocker builds a RedisLocker with sane defaults: a 5-minute
// lease (long enough for a shallow clone of a large repo) and a
// 100ms poll interval.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		Client:    client,
		TTL:       5 * time.Minute,
		PollEvery: 100 * time.Millisecond,
		KeyPrefix: "codelocbench:reposync:",
	}
}

// Lock blocks (polling) until it acquires the lease for repoID or ctx
// is canceled. The returned unlock releases the lease early; it is
// best-effort and safe to call even if the lease already expired.
func (r *RedisLocker) Lock(ctx context.Context, repoID string) (func(), error) {
	key := r.KeyPrefix + repoID
	token := uuid.NewString()

	ticker := time.NewTicker(r.PollEvery)
	defer ticker.Stop()

	for {
		ok, err := r.Client.SetNX(ctx, key, token, r.TTL).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "reposync: redis setnx for %s", repoID)
		}
		if ok {
			return func() { r.unlock(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("reposync: context canceled waiting for lock on %s: %w", repoID, ctx.Err())
		case <-ticker.C:
		}
	}
}

// unlock releases the lease only if it still holds the token this
// Lock call set, via the standard compare-and-delete Lua script, so a
// slow caller never deletes a lease some other process has since
// acquired after this one's TTL expired.
func (r *RedisLocker) unlock(key, token string) {
	script := redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	script.Run(ctx, r.Client, []string{key}, token)
}
