package cron

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// The lock outlives one daily cycle so a slow run is never doubled up.
const defaultLockTTL = 25 * time.Hour

// Lock keeps the daily renewal cycle to a single worker across replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	// Holder reports who owns the lock, empty when it is free.
	Holder(ctx context.Context) (string, error)
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock stores "<host>:<pid>:<token>" under the key so an operator can
// tell which replica holds the cycle.
type RedisLock struct {
	client   redisStore
	key      string
	ttl      time.Duration
	identity string
	owner    string
}

func NewRedisLock(client redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for cron lock")
	}
	if key == "" {
		return nil, errors.New("cron lock key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return &RedisLock{
		client:   client,
		key:      key,
		ttl:      ttl,
		identity: fmt.Sprintf("%s:%d", host, os.Getpid()),
	}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := l.identity + ":" + uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire cron lock %s: %w", l.key, err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release deletes the key only while this worker still owns it; a lock that
// expired and was taken by another replica is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	defer func() { l.owner = "" }()
	holder, err := l.Holder(ctx)
	if err != nil {
		return err
	}
	if holder != l.owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release cron lock %s: %w", l.key, err)
	}
	return nil
}

func (l *RedisLock) Holder(ctx context.Context) (string, error) {
	value, err := l.client.Get(ctx, l.key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cron lock %s: %w", l.key, err)
	}
	return value, nil
}
