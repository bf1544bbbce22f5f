package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/contracts_backend/config"
)

// SweepLocker serializes save sweeps and adjustments of one contract across processes.
// The returned release func is always non-nil when err is nil.
type SweepLocker interface {
	Acquire(ctx context.Context, contractID int) (release func(context.Context), err error)
}

// RedisSweepLocker holds a redislock key per contract for the duration of a sweep.
type RedisSweepLocker struct {
	Client *redislock.Client
	TTL    time.Duration
}

func NewRedisSweepLocker() *RedisSweepLocker {
	return &RedisSweepLocker{
		Client: config.GetRedisLock(),
		TTL:    config.SweepLockTTL(),
	}
}

func sweepLockKey(contractID int) string {
	return fmt.Sprintf("lock:contract-sweep:%d", contractID)
}

func (l *RedisSweepLocker) Acquire(ctx context.Context, contractID int) (func(context.Context), error) {
	if l == nil || l.Client == nil {
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = config.SweepLockTTL()
	}
	lock, err := l.Client.Obtain(ctx, sweepLockKey(contractID), ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrSaveInProgress
	} else if err != nil {
		return nil, fmt.Errorf("failed to obtain sweep lock: %w", err)
	}
	return func(ctx context.Context) {
		if releaseErr := lock.Release(ctx); releaseErr != nil && !errors.Is(releaseErr, redislock.ErrLockNotHeld) {
			config.LogError(config.GetLogger(), "sweepLock.go", "Acquire", "Release", contractID, releaseErr)
		}
	}, nil
}

// begin takes the in-process guard and, when configured, the distributed lock.
func (s *Session) begin(ctx context.Context) (func(), error) {
	if !s.running.TryLock() {
		return nil, ErrSaveInProgress
	}
	if s.Locker == nil {
		return s.running.Unlock, nil
	}
	release, err := s.Locker.Acquire(ctx, s.ContractID)
	if err != nil {
		s.running.Unlock()
		return nil, err
	}
	return func() {
		release(context.WithoutCancel(ctx))
		s.running.Unlock()
	}, nil
}
