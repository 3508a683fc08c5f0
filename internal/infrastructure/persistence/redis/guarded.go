package redis

import (
	"context"
	"errors"

	"github.com/almuhajirin/hafalan-hub/internal/application/query"
	"github.com/almuhajirin/hafalan-hub/internal/application/report"
	"github.com/almuhajirin/hafalan-hub/pkg/circuitbreaker"
	"github.com/almuhajirin/hafalan-hub/pkg/logger"
)

// GuardedCache puts a circuit breaker in front of a report cache.
//
// While the breaker is open, reads behave as misses and writes are dropped,
// so analysis keeps working without Redis. Invalidations still report the
// rejection to the caller; stale entries then expire by TTL.
type GuardedCache struct {
	inner   query.ReportCache
	breaker *circuitbreaker.CircuitBreaker
}

var _ query.ReportCache = (*GuardedCache)(nil)

// NewGuardedCache wraps inner with the report cache breaker preset.
func NewGuardedCache(inner query.ReportCache, log *logger.Logger) *GuardedCache {
	if log == nil {
		log = logger.Discard()
	}
	log = log.With(logger.Component("report_cache"))

	cb := circuitbreaker.CacheBreaker(
		func(name string, from, to circuitbreaker.State) {
			log.Warn("cache breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
		isCacheFailure,
	)
	return NewGuardedCacheWith(inner, cb)
}

// NewGuardedCacheWith wraps inner with a caller-supplied breaker.
func NewGuardedCacheWith(inner query.ReportCache, cb *circuitbreaker.CircuitBreaker) *GuardedCache {
	return &GuardedCache{inner: inner, breaker: cb}
}

// Breaker exposes the breaker for health reporting.
func (g *GuardedCache) Breaker() *circuitbreaker.CircuitBreaker { return g.breaker }

// GetReport returns query.ErrCacheMiss when the breaker rejects the call.
func (g *GuardedCache) GetReport(ctx context.Context, key string) (*report.Report, error) {
	rep, err := circuitbreaker.Call(ctx, g.breaker, func(ctx context.Context) (*report.Report, error) {
		return g.inner.GetReport(ctx, key)
	})
	if circuitbreaker.IsRejected(err) {
		return nil, query.ErrCacheMiss
	}
	return rep, err
}

// SetReport silently skips the write when the breaker rejects it.
func (g *GuardedCache) SetReport(ctx context.Context, key string, rep *report.Report) error {
	return g.breaker.ExecuteWithFallback(ctx,
		func(ctx context.Context) error { return g.inner.SetReport(ctx, key, rep) },
		func(error) error { return nil },
	)
}

func (g *GuardedCache) InvalidatePeriod(ctx context.Context, period string) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.InvalidatePeriod(ctx, period)
	})
}

func (g *GuardedCache) InvalidateAll(ctx context.Context) error {
	return g.breaker.Execute(ctx, g.inner.InvalidateAll)
}

// isCacheFailure counts only transport-level problems. A miss or a bad key
// says nothing about Redis health.
func isCacheFailure(err error) bool {
	switch {
	case errors.Is(err, query.ErrCacheMiss),
		errors.Is(err, ErrCacheKeyEmpty),
		errors.Is(err, ErrCacheNilValue),
		errors.Is(err, ErrCacheSerialization),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
