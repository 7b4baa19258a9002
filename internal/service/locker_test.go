package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-bulletin-api/pkg/errors"
)

type lockStoreStub struct {
	mu       sync.Mutex
	held     map[string]string
	released []string
	err      error
}

func (s *lockStoreStub) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.held == nil {
		s.held = map[string]string{}
	}
	if _, ok := s.held[key]; ok {
		return "", nil
	}
	s.held[key] = "token-" + key
	return s.held[key], nil
}

func (s *lockStoreStub) Release(ctx context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held[key] == token {
		delete(s.held, key)
	}
	s.released = append(s.released, key)
	return nil
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "bulletin:1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "bulletin:1")
	assert.ErrorIs(t, err, appErrors.ErrLocked)

	other, err := locker.Lock(ctx, "bulletin:2")
	require.NoError(t, err)
	other()

	unlock()
	unlock()
	again, err := locker.Lock(ctx, "bulletin:1")
	require.NoError(t, err)
	again()
}

func TestRedisLocker(t *testing.T) {
	store := &lockStoreStub{}
	locker := NewRedisLocker(store, time.Second, nil)
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "bulletin:1")
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "bulletin:1")
	assert.ErrorIs(t, err, appErrors.ErrLocked)

	unlock()
	unlock()
	assert.Equal(t, []string{"bulletin:1"}, store.released)

	store.err = errBoom
	_, err = locker.Lock(ctx, "bulletin:9")
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestLockWithinWaitsForRelease(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()
	unlock, err := locker.Lock(ctx, "cohort:c1:t1")
	require.NoError(t, err)

	go func() {
		time.Sleep(60 * time.Millisecond)
		unlock()
	}()

	got, err := lockWithin(ctx, locker, "cohort:c1:t1", time.Second)
	require.NoError(t, err)
	got()
}

func TestLockWithinGivesUp(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()
	unlock, err := locker.Lock(ctx, "cohort:c1:t1")
	require.NoError(t, err)
	defer unlock()

	_, err = lockWithin(ctx, locker, "cohort:c1:t1", 50*time.Millisecond)
	assert.ErrorIs(t, err, appErrors.ErrLocked)
}
