package infra

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("lock is held by another worker")

// Locker provides named single-flight locks. Release must be called once the work is done.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// NewRedisClient returns nil when no address is configured.
func NewRedisClient(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewLocker picks a redsync-backed locker when a redis client exists, else an in-process one.
func NewLocker(rdb *redis.Client) Locker {
	if rdb == nil {
		return NewLocalLocker()
	}
	return &redsyncLocker{rs: redsync.New(goredis.NewPool(rdb))}
}

type redsyncLocker struct {
	rs *redsync.Redsync
}

func (l *redsyncLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	mutex := l.rs.NewMutex(
		"lock:"+name,
		redsync.WithExpiry(ttl),
		redsync.WithTries(1),
	)
	// a single try: any failure means another worker holds it or redis is unreachable
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLockHeld, name, err)
	}

	return func(ctx context.Context) error {
		if _, err := mutex.UnlockContext(ctx); err != nil {
			return fmt.Errorf("release %s: %w", name, err)
		}
		return nil
	}, nil
}

type LocalLocker struct {
	mu   sync.Mutex
	held map[string]time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]time.Time)}
}

func (l *LocalLocker) Acquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.held[name]; ok && time.Now().Before(until) {
		return nil, ErrLockHeld
	}
	until := time.Now().Add(ttl)
	l.held[name] = until

	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[name]; ok && cur.Equal(until) {
			delete(l.held, name)
		}
		return nil
	}, nil
}
