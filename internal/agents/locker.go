package agents

import (
	"context"
	"sync"
	"time"

	"tiergate/internal/adapters/redis"
	"tiergate/internal/metrics"
	"tiergate/pkg/errors"
	"tiergate/pkg/logger"
)

// SessionLocker serializes turns of one session. Lock blocks until the key
// is free or ctx ends, and returns the function that releases it.
type SessionLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// LocalLocker serializes turns within this process
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

func (l *LocalLocker) Lock(ctx context.Context, key string) (func(), error) {
	started := time.Now()

	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, errors.Wrapf(errors.ErrLockNotAcquired, "session %s: %v", key, ctx.Err())
	}
	metrics.RecordLockWait(time.Since(started))

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.unref(key, slot)
		})
	}, nil
}

func (l *LocalLocker) unref(key string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

// RedisLocker serializes turns across replicas with a Redis lock
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
	log    *logger.Logger
}

// NewRedisLocker holds locks for ttl and waits at most wait for one
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, log *logger.Logger) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		poll:   50 * time.Millisecond,
		log:    log.With("component", "session_locker"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	started := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		lock, err := l.client.AcquireLock(waitCtx, "session:"+key, l.ttl)
		if err == nil {
			metrics.RecordLockWait(time.Since(started))
			return l.releaser(lock), nil
		}
		if !errors.Is(err, errors.ErrLockNotAcquired) {
			return nil, errors.Wrap(err, "acquire session lock")
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			return nil, errors.Wrapf(errors.ErrLockNotAcquired, "session %s busy for %s", key, l.wait)
		}
	}
}

func (l *RedisLocker) releaser(lock *redis.Lock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.client.ReleaseLock(ctx, lock); err != nil {
				l.log.Warnw("Failed to release session lock", "key", lock.Key(), "error", err)
			}
		})
	}
}

var (
	_ SessionLocker = (*LocalLocker)(nil)
	_ SessionLocker = (*RedisLocker)(nil)
)
