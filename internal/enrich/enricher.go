// Package enrich derives a bookmark's summary and favicon from its URL.
//
// The pipeline is normalize -> fetch from the text extractor -> clean, with a
// heuristic fallback whenever the fetch does not produce a usable body.
// Enrich is total: every input string yields metadata, never an error.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
)

const (
	DefaultTimeout = 15 * time.Second

	OutcomeExtracted = "extracted"
	OutcomeCached    = "cached"
	OutcomeFallback  = "fallback"
)

// Cache keeps successful extractions keyed by normalized URL.
type Cache interface {
	GetMetadata(ctx context.Context, normalized string) (domain.Metadata, bool, error)
	PutMetadata(ctx context.Context, normalized string, meta domain.Metadata) error
}

type Enricher struct {
	fetcher Fetcher
	cache   Cache
	timeout time.Duration
	logger  logger.Logger
	metrics *metrics.Metrics
}

// NewEnricher wires a fetcher with the per-call timeout. m may be nil.
func NewEnricher(fetcher Fetcher, timeout time.Duration, log logger.Logger, m *metrics.Metrics) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{
		fetcher: fetcher,
		timeout: timeout,
		logger:  log,
		metrics: m,
	}
}

// WithCache makes e consult c before calling the extractor.
func (e *Enricher) WithCache(c Cache) *Enricher {
	e.cache = c
	return e
}

// Enrich returns the summary and favicon for raw. A failed or slow fetch
// yields Fallback metadata for the normalized URL.
func (e *Enricher) Enrich(ctx context.Context, raw string) (meta domain.Metadata) {
	normalized := Normalize(raw)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("enrichment panicked, using fallback metadata",
				logger.String("url", normalized),
				logger.Any("panic", r))
			e.metrics.ObserveEnrichment(OutcomeFallback)
			meta = Fallback(normalized)
		}
	}()

	if cached, ok := e.cached(ctx, normalized); ok {
		e.metrics.ObserveEnrichment(OutcomeCached)
		return cached
	}

	body, err := e.fetch(ctx, normalized)
	if err != nil {
		e.logger.Warn("extractor unavailable, using fallback metadata",
			logger.String("url", normalized),
			logger.Error(err))
		e.metrics.ObserveEnrichment(OutcomeFallback)
		return Fallback(normalized)
	}

	meta = domain.Metadata{
		Summary: CleanSummary(body),
		Favicon: Favicon(normalized),
	}
	e.metrics.ObserveEnrichment(OutcomeExtracted)
	e.store(ctx, normalized, meta)
	e.logger.Debug("enriched url",
		logger.String("url", normalized),
		logger.Int("raw_bytes", len(body)),
		logger.Int("summary_bytes", len(meta.Summary)))
	return meta
}

func (e *Enricher) fetch(ctx context.Context, normalized string) (string, error) {
	if e.fetcher == nil {
		return "", fmt.Errorf("no extractor configured")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	body, err := e.fetcher.Fetch(ctx, normalized)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	e.metrics.ObserveExtractor(outcome, time.Since(start).Seconds())

	return body, err
}

func (e *Enricher) cached(ctx context.Context, normalized string) (domain.Metadata, bool) {
	if e.cache == nil {
		return domain.Metadata{}, false
	}
	meta, ok, err := e.cache.GetMetadata(ctx, normalized)
	if err != nil {
		e.logger.Warn("extraction cache lookup failed", logger.String("url", normalized), logger.Error(err))
		return domain.Metadata{}, false
	}
	if ok {
		e.logger.Debug("extraction cache hit", logger.String("url", normalized))
	}
	return meta, ok
}

func (e *Enricher) store(ctx context.Context, normalized string, meta domain.Metadata) {
	if e.cache == nil {
		return
	}
	if err := e.cache.PutMetadata(ctx, normalized, meta); err != nil {
		e.logger.Warn("extraction cache write failed", logger.String("url", normalized), logger.Error(err))
	}
}
