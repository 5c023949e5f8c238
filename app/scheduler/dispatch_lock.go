package scheduler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	releaseLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)
	extendLockScript = redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`)
)

// DispatchLock is a Redis lock owned through a random token, so a process
// can only release or extend a lock it acquired itself.
type DispatchLock struct {
	rc    *redis.Client
	key   string
	token string
	ttl   time.Duration
}

// NewDispatchLock creates a lock for key. Nothing is written until Acquire.
func NewDispatchLock(rc *redis.Client, key string, ttl time.Duration) *DispatchLock {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return &DispatchLock{rc: rc, key: key, token: hex.EncodeToString(b), ttl: ttl}
}

// Key is the Redis key the lock guards
func (l *DispatchLock) Key() string { return l.key }

// Acquire sets the key only if it does not exist yet
func (l *DispatchLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.rc.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", l.key, err)
	}
	return ok, nil
}

// Release deletes the key if this lock still owns it
func (l *DispatchLock) Release(ctx context.Context) error {
	if err := releaseLockScript.Run(ctx, l.rc, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.key, err)
	}
	return nil
}

// Extend resets the TTL and reports whether the lock is still owned
func (l *DispatchLock) Extend(ctx context.Context) (bool, error) {
	n, err := extendLockScript.Run(ctx, l.rc, []string{l.key}, l.token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to extend lock %s: %w", l.key, err)
	}
	return n == 1, nil
}

// KeepAlive extends the lock every ttl/3 until the returned stop function is called
func (l *DispatchLock) KeepAlive(ctx context.Context, onLost func(error)) func() {
	every := l.ttl / 3
	if every <= 0 {
		every = time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				owned, err := l.Extend(ctx)
				if err != nil && ctx.Err() != nil {
					return
				}
				if err != nil || !owned {
					if onLost != nil {
						onLost(err)
					}
					return
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
