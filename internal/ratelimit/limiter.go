package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/Snaxxwax/movecrm/pkg/logger"
	"github.com/Snaxxwax/movecrm/prometheus"
	"go.uber.org/zap"
)

// Info is the rate-limit metadata reported alongside every decision and
// surfaced as X-RateLimit-* response headers.
type Info struct {
	Limit         int   `json:"limit"`
	Remaining     int   `json:"remaining"`
	ResetTime     int64 `json:"reset_time"`
	WindowMinutes int   `json:"window_minutes"`
}

// CounterStore is the fast volatile store holding per-bucket counters.
// Implementations must make the increment and the expiry-set atomic as a
// pair, or a crash between them strands a counter that never expires.
type CounterStore interface {
	Get(ctx context.Context, key string) (int64, error)
	IncrWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// FallbackStore is the durable store used when the counter store is
// unreachable: count requests in the window, then record this one. The race
// between concurrent count-then-insert can transiently over-admit, which is
// acceptable in degraded mode.
type FallbackStore interface {
	CountSince(ctx context.Context, identifier, endpoint string, since time.Time) (int64, error)
	Record(ctx context.Context, identifier, endpoint string, at time.Time) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Limiter is a sliding-window-by-bucket request counter keyed by
// (identifier, endpoint). Time is divided into fixed buckets of the window
// length; a burst at a bucket boundary can momentarily allow ~2x the limit,
// traded for O(1) space and a single atomic increment per request.
type Limiter struct {
	counters CounterStore
	fallback FallbackStore
	now      func() time.Time
}

// NewLimiter builds a limiter over a fast counter store and a durable
// fallback. Both handles are shared by all requests.
func NewLimiter(counters CounterStore, fallback FallbackStore) *Limiter {
	return &Limiter{
		counters: counters,
		fallback: fallback,
		now:      time.Now,
	}
}

func bucketKey(identifier, endpoint string, now time.Time, windowMinutes int) string {
	windowSeconds := int64(windowMinutes) * 60
	bucket := now.Unix() / windowSeconds
	return fmt.Sprintf("rate_limit:%s:%s:%d", identifier, endpoint, bucket)
}

// Check reports whether a request under the given identifier and endpoint
// class fits the limit, incrementing the current bucket when it does. A
// denied request is not counted. The counter store failing over to the
// durable path, or both failing, never fails the request itself.
func (l *Limiter) Check(ctx context.Context, identifier, endpoint string, limit, windowMinutes int) (bool, *Info) {
	now := l.now()
	window := time.Duration(windowMinutes) * time.Minute
	key := bucketKey(identifier, endpoint, now, windowMinutes)

	info := &Info{
		Limit:         limit,
		Remaining:     0,
		ResetTime:     now.Add(window).Unix(),
		WindowMinutes: windowMinutes,
	}

	current, err := l.counters.Get(ctx, key)
	if err != nil {
		return l.checkFallback(ctx, identifier, endpoint, limit, now, window, info)
	}

	if current >= int64(limit) {
		return false, info
	}

	count, err := l.counters.IncrWithExpiry(ctx, key, window)
	if err != nil {
		return l.checkFallback(ctx, identifier, endpoint, limit, now, window, info)
	}

	if count > int64(limit) {
		// Lost the race against concurrent increments for the last slot.
		return false, info
	}

	info.Remaining = limit - int(count)
	return true, info
}

// checkFallback is the degraded path: count rows in the window, then insert
// one. If even the durable store is down the request is admitted: limiter
// unavailability must not become a denial-of-service vector.
func (l *Limiter) checkFallback(ctx context.Context, identifier, endpoint string, limit int, now time.Time, window time.Duration, info *Info) (bool, *Info) {
	prometheus.RateLimitFallbackCounter.Inc()
	log := logger.FromContext(ctx)
	log.Warn("rate limit counter store unavailable, using durable fallback",
		zap.String("identifier", identifier),
		zap.String("endpoint", endpoint))

	count, err := l.fallback.CountSince(ctx, identifier, endpoint, now.Add(-window))
	if err != nil {
		log.Error("rate limit fallback unavailable, admitting request", zap.Error(err))
		info.Remaining = limit
		return true, info
	}

	if count >= int64(limit) {
		return false, info
	}

	if err := l.fallback.Record(ctx, identifier, endpoint, now); err != nil {
		log.Error("failed to record rate limit entry", zap.Error(err))
	}

	info.Remaining = limit - int(count) - 1
	return true, info
}

// CleanupOldEntries prunes durable fallback rows older than the retention
// horizon. Housekeeping only: expiry correctness in the fast store comes
// from per-key TTLs.
func (l *Limiter) CleanupOldEntries(ctx context.Context, retention time.Duration) (int64, error) {
	return l.fallback.DeleteBefore(ctx, l.now().Add(-retention))
}
