/*
 * Radon
 *
 * Copyright 2018 The Radon Authors.
 * Code is licensed under the GPLv3.
 *
 */

package xbase

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/beefsack/go-rate"
)

// Throttle limits the callers to a quota per second, a quota <= 0 means unlimited.
type Throttle struct {
	limit atomic.Int32
	rate  *rate.RateLimiter
	mu    sync.Mutex
}

// NewThrottle creates the new throttle.
func NewThrottle(l int) *Throttle {
	throttle := &Throttle{
		rate: rate.New(l, time.Second),
	}
	throttle.limit.Store(int32(l))
	return throttle
}

// Acquire blocks until the caller fits the quota.
func (throttle *Throttle) Acquire() {
	if throttle.limit.Load() <= 0 {
		return
	}

	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	throttle.rate.Wait()
}

// TryAcquire reports whether the caller fits the quota without blocking.
func (throttle *Throttle) TryAcquire() bool {
	if throttle.limit.Load() <= 0 {
		return true
	}

	throttle.mu.Lock()
	defer throttle.mu.Unlock()
	ok, _ := throttle.rate.Try()
	return ok
}

// Release used to do nothing.
func (throttle *Throttle) Release() {
}

// Set used to set the quota for the throttle.
func (throttle *Throttle) Set(l int) {
	throttle.mu.Lock()
	defer throttle.mu.Unlock()

	throttle.limit.Store(int32(l))
	throttle.rate = rate.New(l, time.Second)
}

// Limits returns the limits of the throttle.
func (throttle *Throttle) Limits() int {
	return int(throttle.limit.Load())
}
