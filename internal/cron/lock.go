package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/partsdirect-backend/pkg/instance"
)

const defaultLockTTL = 25 * time.Minute

// ErrLeaseLost means another instance owns the lock now.
var ErrLeaseLost = errors.New("cron lock lease lost")

// Lock hands out exclusive leases across worker instances. Acquire returns a
// nil Lease when someone else holds the lock.
type Lock interface {
	Acquire(ctx context.Context) (Lease, error)
}

// Lease is one holder's claim on a Lock.
type Lease interface {
	// Extend pushes the expiry out; false means the lease already lapsed.
	Extend(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ExpireIfValue(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
}

// RedisLock stores the holder's token under key with a TTL, so a crashed
// holder blocks the job for at most one TTL.
type RedisLock struct {
	store leaseStore
	key   string
	ttl   time.Duration
}

func NewRedisLock(store leaseStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("lock store is required")
	case key == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// TTL is the lease lifetime granted by Acquire and Extend.
func (l *RedisLock) TTL() time.Duration { return l.ttl }

func (l *RedisLock) Acquire(ctx context.Context) (Lease, error) {
	token := instance.GetID() + ":" + uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if !won {
		return nil, nil
	}
	return &redisLease{lock: l, token: token}, nil
}

type redisLease struct {
	lock  *RedisLock
	token string
}

func (r *redisLease) Extend(ctx context.Context) (bool, error) {
	ok, err := r.lock.store.ExpireIfValue(ctx, r.lock.key, r.token, r.lock.ttl)
	if err != nil {
		return false, fmt.Errorf("extend %s: %w", r.lock.key, err)
	}
	return ok, nil
}

// Release leaves the key alone if it expired and was re-taken elsewhere.
func (r *redisLease) Release(ctx context.Context) error {
	if _, err := r.lock.store.DelIfValue(ctx, r.lock.key, r.token); err != nil {
		return fmt.Errorf("release %s: %w", r.lock.key, err)
	}
	return nil
}
