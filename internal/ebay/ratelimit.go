package ebay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrDailyLimitReached is returned when the daily Trading API quota has been
// exhausted.
var ErrDailyLimitReached = errors.New("daily API limit reached")

// RateLimiter combines a token bucket for burst control with a rolling
// 24-hour call quota, matching how eBay meters application calls.
type RateLimiter struct {
	limiter  *rate.Limiter
	maxDaily int64
	nowFunc  func() time.Time

	mu      sync.Mutex
	count   int64
	resetAt time.Time
}

// RateLimiterOption configures the RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithRateLimiterNowFunc overrides the time function for testing.
func WithRateLimiterNowFunc(f func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) {
		r.nowFunc = f
	}
}

// NewRateLimiter creates a rate limiter with the given per-second rate,
// burst size and daily quota. A non-positive maxDaily disables the quota.
func NewRateLimiter(
	perSecond float64,
	burst int,
	maxDaily int64,
	opts ...RateLimiterOption,
) *RateLimiter {
	r := &RateLimiter{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		maxDaily: maxDaily,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.resetAt = r.nowFunc().Add(24 * time.Hour)
	return r
}

// Wait reserves one call. It blocks until the token bucket allows it or ctx
// is done, and fails fast with ErrDailyLimitReached once the quota is used.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := r.reserveDaily(); err != nil {
		return err
	}

	if err := r.limiter.Wait(ctx); err != nil {
		r.release()
		return fmt.Errorf("rate limiter wait: %w", err)
	}
	return nil
}

func (r *RateLimiter) reserveDaily() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.nowFunc()
	if now.After(r.resetAt) {
		r.count = 0
		r.resetAt = now.Add(24 * time.Hour)
	}

	if r.maxDaily > 0 && r.count >= r.maxDaily {
		return fmt.Errorf("%w (%d/%d)", ErrDailyLimitReached, r.count, r.maxDaily)
	}
	r.count++
	return nil
}

func (r *RateLimiter) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count > 0 {
		r.count--
	}
}

// Usage is a point-in-time view of the daily quota and the burst settings.
type Usage struct {
	Count     int64     `json:"count"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
	PerSecond float64   `json:"per_second"`
	Burst     int       `json:"burst"`
}

// Exhausted reports whether the next call would be refused.
func (u Usage) Exhausted() bool {
	return u.Limit > 0 && u.Remaining == 0
}

// Usage returns the current quota usage.
func (r *RateLimiter) Usage() Usage {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := Usage{
		Count:     r.count,
		Limit:     r.maxDaily,
		ResetAt:   r.resetAt,
		PerSecond: float64(r.limiter.Limit()),
		Burst:     r.limiter.Burst(),
	}
	if r.maxDaily > 0 {
		u.Remaining = max(r.maxDaily-r.count, 0)
	}
	return u
}

// DailyCount returns the number of calls made in the current window.
func (r *RateLimiter) DailyCount() int64 {
	return r.Usage().Count
}
