package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
)

const (
	RetrySuccess = "success"
	RetryFailed  = "failed"
	RetryDropped = "dropped"

	writeTimeout = 5 * time.Second
)

type MetadataEnricher interface {
	Enrich(ctx context.Context, raw string) domain.Metadata
}

type MetadataWriter interface {
	UpdateMetadata(ctx context.Context, id string, meta domain.Metadata) error
}

type retryJob struct {
	id  string
	url string
}

// RetryOptions sizes the worker pool.
type RetryOptions struct {
	Workers   int
	QueueSize int
	Delay     time.Duration // wait before the single attempt
}

// MetadataRetrier runs one background enrichment per scheduled bookmark and
// writes the result with UpdateMetadata. A job is attempted exactly once.
type MetadataRetrier struct {
	enricher MetadataEnricher
	store    MetadataWriter
	logger   logger.Logger
	metrics  *metrics.Metrics
	workers  int
	delay    time.Duration

	jobs   chan retryJob
	stopCh chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewMetadataRetrier creates a retrier; call Start before jobs are processed.
func NewMetadataRetrier(
	enricher MetadataEnricher,
	store MetadataWriter,
	log logger.Logger,
	m *metrics.Metrics,
	opts RetryOptions,
) *MetadataRetrier {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	return &MetadataRetrier{
		enricher: enricher,
		store:    store,
		logger:   log,
		metrics:  m,
		workers:  opts.Workers,
		delay:    opts.Delay,
		jobs:     make(chan retryJob, opts.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the workers. Jobs run under ctx, not under the request that
// scheduled them.
func (r *MetadataRetrier) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.stopped {
		return
	}
	r.started = true

	ctx, r.cancel = context.WithCancel(ctx)
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(ctx)
	}

	r.logger.Info("metadata retrier started",
		logger.Int("workers", r.workers),
		logger.Int("queue_size", cap(r.jobs)),
		logger.Duration("delay", r.delay))
}

// Stop cancels in-flight attempts and waits for the workers. Jobs still
// queued are dropped.
func (r *MetadataRetrier) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.stopCh)
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	if pending := len(r.jobs); pending > 0 {
		r.logger.Warn("metadata retrier stopped with queued jobs", logger.Int("dropped", pending))
	}
	r.logger.Info("metadata retrier stopped")
}

// Schedule queues one enrichment for bookmark id. It never blocks: when the
// queue is full or the retrier is stopped the job is dropped and false is
// returned.
func (r *MetadataRetrier) Schedule(id, url string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		r.drop(id, "retrier stopped")
		return false
	}

	select {
	case r.jobs <- retryJob{id: id, url: url}:
		r.logger.Debug("metadata retry scheduled", logger.String("id", id))
		return true
	default:
		r.drop(id, "queue full")
		return false
	}
}

func (r *MetadataRetrier) drop(id, reason string) {
	r.logger.Warn("metadata retry dropped",
		logger.String("id", id),
		logger.String("reason", reason))
	r.metrics.ObserveRetry(RetryDropped)
}

func (r *MetadataRetrier) work(ctx context.Context) {
	defer r.wg.Done()

	for {
		select {
		case job := <-r.jobs:
			if !r.wait(ctx) {
				return
			}
			r.run(ctx, job)
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// wait sleeps for the configured delay. It reports false when stopping.
func (r *MetadataRetrier) wait(ctx context.Context) bool {
	if r.delay <= 0 {
		return true
	}
	timer := time.NewTimer(r.delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-r.stopCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (r *MetadataRetrier) run(ctx context.Context, job retryJob) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("metadata retry panicked",
				logger.String("id", job.id),
				logger.Any("panic", rec))
			r.metrics.ObserveRetry(RetryFailed)
		}
	}()

	meta := r.enricher.Enrich(ctx, job.url)
	if err := ctx.Err(); err != nil {
		r.logger.Warn("metadata retry abandoned",
			logger.String("id", job.id),
			logger.Error(err))
		r.metrics.ObserveRetry(RetryFailed)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := r.store.UpdateMetadata(writeCtx, job.id, meta); err != nil {
		r.logger.Warn("metadata retry could not be saved",
			logger.String("id", job.id),
			logger.Error(err))
		r.metrics.ObserveRetry(RetryFailed)
		return
	}

	r.logger.Info("metadata filled in background", logger.String("id", job.id))
	r.metrics.ObserveRetry(RetrySuccess)
}
