package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

// Locker grants exclusive ownership of a key. Lock never blocks: a held key yields ErrLocked.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker is an in-process keyed lock for single-replica deployments.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker constructs an empty in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// Lock takes key or fails with ErrLocked.
func (l *LocalLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, appErrors.Clone(appErrors.ErrLocked, "bulletin is being modified, retry shortly")
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

type lockStore interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	Release(ctx context.Context, key, token string) error
}

// RedisLocker shares locks across replicas. Locks expire after ttl if the holder dies.
type RedisLocker struct {
	store  lockStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(store lockStore, ttl time.Duration, logger *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{store: store, ttl: ttl, logger: logger}
}

// Lock takes key or fails with ErrLocked.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := l.store.Acquire(ctx, key, l.ttl)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire bulletin lock")
	}
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrLocked, "bulletin is being modified, retry shortly")
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := l.store.Release(releaseCtx, key, token); err != nil {
				l.logger.Warn("release bulletin lock", zap.String("key", key), zap.Error(err))
			}
		})
	}, nil
}

// lockWithin retries Lock until it succeeds, wait elapses or ctx ends.
func lockWithin(ctx context.Context, locker Locker, key string, wait time.Duration) (func(), error) {
	deadline := time.Now().Add(wait)
	for {
		unlock, err := locker.Lock(ctx, key)
		if err == nil {
			return unlock, nil
		}
		if !errorsIsLocked(err) || time.Now().After(deadline) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(25 * time.Millisecond):
		}
	}
}

func errorsIsLocked(err error) bool {
	appErr := appErrors.FromError(err)
	return appErr != nil && appErr.Code == appErrors.ErrLocked.Code
}

func bulletinLockKey(id string) string {
	return "bulletin:" + id
}

func studentTermLockKey(studentID, termID string) string {
	return "student-term:" + studentID + ":" + termID
}

func cohortLockKey(key string) string {
	return "cohort:" + key
}
