package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const admissionLockPrefix = "lock:admission:"

var ErrLockTimeout = errors.New("timed out waiting for lock")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// AdmissionLocker serialises device admission for one user.
type AdmissionLocker interface {
	Acquire(ctx context.Context, userID string) (release func(), err error)
}

// RedisAdmissionLock is a lease held with SET NX PX. The lease expires on its own
// if the holder dies before releasing. Waiters poll for as long as one lease can last.
type RedisAdmissionLock struct {
	rdb  redis.Cmdable
	ttl  time.Duration
	wait time.Duration
	poll time.Duration
}

func NewRedisAdmissionLock(rdb redis.Cmdable) *RedisAdmissionLock {
	return &RedisAdmissionLock{
		rdb:  rdb,
		ttl:  5 * time.Second,
		wait: 5 * time.Second,
		poll: 25 * time.Millisecond,
	}
}

func (l *RedisAdmissionLock) Acquire(ctx context.Context, userID string) (func(), error) {
	key := admissionLockPrefix + userID
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(ctx, l.rdb, []string{key}, token).Err()
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
}
