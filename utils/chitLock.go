package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/jewelry_pos/config"
)

const chitLockTTL = 10 * time.Second

// ObtainChitLock serialises payment/settlement requests for one chit across
// instances. It is best-effort: without Redis (or with the lock switched off)
// it returns a no-op release and the version check on the chit row is the
// only guard.
func ObtainChitLock(ctx context.Context, chitId int) (func(), error) {
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil || !config.ChitPaymentLockEnabled() {
		return noop, nil
	}

	lockKey := fmt.Sprintf("lock:chit:%d", chitId)
	lock, err := locker.Obtain(ctx, lockKey, chitLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return noop, ErrConcurrentModification
	}
	if err != nil {
		config.LogError(config.GetLogger(), "Utils", "ObtainChitLock", "redis lock unavailable", lockKey, err)
		return noop, nil
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
