package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow reports whether a request may proceed now, consuming a token if so
	Allow() bool
	// Wait blocks until a request is allowed or ctx is done
	Wait(ctx context.Context) error
	// Reset restores the limiter to its initial state
	Reset()
}

// TokenBucket holds up to capacity tokens and adds one back every interval
type TokenBucket struct {
	capacity   int
	tokens     int
	interval   time.Duration
	lastRefill time.Time
	now        func() time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a full bucket of capacity tokens refilled one per interval
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	tb := &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		interval: interval,
		now:      time.Now,
	}
	tb.lastRefill = tb.now()
	return tb
}

// PerMinute creates a bucket allowing requestsPerMinute on average with bursts of burst
func PerMinute(requestsPerMinute, burst int) *TokenBucket {
	if requestsPerMinute < 1 {
		requestsPerMinute = 1
	}
	return NewTokenBucket(burst, time.Minute/time.Duration(requestsPerMinute))
}

// Allow checks if a request can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// Wait blocks until a token is available
func (tb *TokenBucket) Wait(ctx context.Context) error {
	for !tb.Allow() {
		tb.mu.Lock()
		untilNext := tb.interval - tb.now().Sub(tb.lastRefill)
		tb.mu.Unlock()
		if untilNext <= 0 {
			untilNext = time.Millisecond
		}

		timer := time.NewTimer(untilNext)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// Available returns the current token count
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

func (tb *TokenBucket) refill() {
	if tb.interval <= 0 {
		tb.tokens = tb.capacity
		return
	}
	now := tb.now()
	elapsed := now.Sub(tb.lastRefill)
	if elapsed < tb.interval {
		return
	}
	added := int(elapsed / tb.interval)
	tb.tokens += added
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = tb.lastRefill.Add(time.Duration(added) * tb.interval)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }

func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

func (Unlimited) Reset() {}
