package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
)

// GuardOptions configures the throttle and circuit breaker in front of the extractor.
type GuardOptions struct {
	RatePerMinute int           // 0 = unlimited
	Burst         int           // token bucket size (min 1)
	MaxFailures   int           // consecutive failures that open the breaker (default 5)
	OpenTimeout   time.Duration // time spent open before probing again (default 60s)
}

// GuardedFetcher throttles calls to the extractor and stops calling it for a
// while after repeated failures, so callers fall back immediately instead of
// waiting out the fetch timeout on every request.
type GuardedFetcher struct {
	next    Fetcher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewGuardedFetcher(next Fetcher, opts GuardOptions, log logger.Logger, m *metrics.Metrics) *GuardedFetcher {
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 5
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 60 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RatePerMinute > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(opts.RatePerMinute)/60.0), burst)
	}

	maxFailures := uint32(opts.MaxFailures)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "extractor",
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("extractor circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
			m.SetBreakerOpen(to == gobreaker.StateOpen)
		},
		// A caller walking away says nothing about the extractor's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &GuardedFetcher{
		next:    next,
		limiter: limiter,
		breaker: breaker,
	}
}

func (g *GuardedFetcher) Fetch(ctx context.Context, target string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("extractor throttled: %w", err)
		}
	}

	body, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Fetch(ctx, target)
	})
	if err != nil {
		return "", err
	}
	return body.(string), nil
}

// State reports the breaker state ("closed", "half-open" or "open").
func (g *GuardedFetcher) State() string {
	return g.breaker.State().String()
}
