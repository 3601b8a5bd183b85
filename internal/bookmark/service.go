// Package bookmark holds the use cases behind the bookmark API: owner-scoped
// CRUD, search, Homepage imports, and the creation-time metadata flow.
package bookmark

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/sources/homepage"
)

// persistTimeout bounds writes that must outlive the caller's request.
const persistTimeout = 5 * time.Second

var (
	ErrEmptyQuery = errors.New("search query is required")
	ErrQueueFull  = errors.New("metadata refresh queue is full")
)

// Repository is the persistence contract implemented by the Redis and memory
// stores.
type Repository interface {
	Create(ctx context.Context, b *domain.Bookmark) error
	Get(ctx context.Context, id, userID string) (*domain.Bookmark, error)
	List(ctx context.Context, userID string, req domain.PageRequest) (*domain.Page, error)
	Search(ctx context.Context, userID, query string, req domain.PageRequest) (*domain.Page, error)
	Update(ctx context.Context, id, userID string, mutate func(*domain.Bookmark)) (*domain.Bookmark, error)
	UpdateMetadata(ctx context.Context, id string, meta domain.Metadata) error
	Delete(ctx context.Context, id, userID string) error
	Ping(ctx context.Context) error
}

type Enricher interface {
	Enrich(ctx context.Context, raw string) domain.Metadata
}

// RetryScheduler queues one background enrichment. It must not block.
type RetryScheduler interface {
	Schedule(id, url string) bool
}

// ImportResult reports what a bookmarks.yaml import did. Unenriched counts
// imported bookmarks whose background enrichment could not be queued; they
// keep empty metadata until refreshed.
type ImportResult struct {
	Imported   int `json:"imported"`
	Skipped    int `json:"skipped"`
	Unenriched int `json:"unenriched"`
}

type Service struct {
	repo      Repository
	enricher  Enricher
	retrier   RetryScheduler
	logger    logger.Logger
	importMax int
	newID     func() string
}

func NewService(repo Repository, enricher Enricher, retrier RetryScheduler, log logger.Logger, importMax int) *Service {
	return &Service{
		repo:      repo,
		enricher:  enricher,
		retrier:   retrier,
		logger:    log,
		importMax: importMax,
		newID:     uuid.NewString,
	}
}

// Create enriches the URL synchronously and persists the bookmark. When
// enrichment yields nothing usable the bookmark is stored with empty metadata
// and one background attempt is scheduled. Only persistence errors are
// returned.
func (s *Service) Create(ctx context.Context, userID string, in domain.CreateInput) (*domain.Bookmark, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}

	b := &domain.Bookmark{
		ID:          s.newID(),
		UserID:      userID,
		URL:         in.URL,
		Title:       in.Title,
		Description: in.Description,
	}

	meta, ok := s.safeEnrich(ctx, in.URL)
	if ok {
		b.Apply(meta)
	}

	writeCtx, cancel := detached(ctx)
	defer cancel()

	if err := s.repo.Create(writeCtx, b); err != nil {
		return nil, fmt.Errorf("create bookmark: %w", err)
	}

	if !ok {
		scheduled := s.retrier.Schedule(b.ID, b.URL)
		s.logger.Warn("bookmark saved without metadata",
			logger.String("id", b.ID),
			logger.Bool("retry_scheduled", scheduled))
	}

	s.logger.Info("bookmark created",
		logger.String("id", b.ID),
		logger.String("user_id", userID))
	return b, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Bookmark, error) {
	return s.repo.Get(ctx, id, userID)
}

func (s *Service) List(ctx context.Context, userID string, req domain.PageRequest) (*domain.Page, error) {
	return s.repo.List(ctx, userID, req)
}

func (s *Service) Search(ctx context.Context, userID, query string, req domain.PageRequest) (*domain.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	return s.repo.Search(ctx, userID, query, req)
}

// Update applies a partial update. A changed URL is re-enriched; if that
// yields nothing usable the stored metadata is left as it was.
func (s *Service) Update(ctx context.Context, userID, id string, in domain.UpdateInput) (*domain.Bookmark, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}

	current, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	var meta *domain.Metadata
	if in.URL != nil && *in.URL != current.URL {
		if m, ok := s.safeEnrich(ctx, *in.URL); ok {
			meta = &m
		} else {
			s.logger.Warn("url changed but enrichment failed, keeping metadata",
				logger.String("id", id))
		}
	}

	writeCtx, cancel := detached(ctx)
	defer cancel()

	return s.repo.Update(writeCtx, id, userID, func(b *domain.Bookmark) {
		if in.Title != nil {
			b.Title = *in.Title
		}
		if in.URL != nil {
			b.URL = *in.URL
		}
		if in.Description != nil {
			b.Description = *in.Description
		}
		if meta != nil {
			b.Apply(*meta)
		}
	})
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		return err
	}
	s.logger.Info("bookmark deleted", logger.String("id", id), logger.String("user_id", userID))
	return nil
}

// Import stores every usable entry of a Homepage bookmarks.yaml with empty
// metadata and hands each one to the background retrier. A malformed
// document is an ErrInvalidInput.
func (s *Service) Import(ctx context.Context, userID string, data []byte) (ImportResult, error) {
	config, err := homepage.ParseBookmarks(data)
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	inputs, skipped := homepage.MapBookmarks(config, s.importMax)
	result := ImportResult{Skipped: skipped}

	for _, in := range inputs {
		if err := domain.Validate(in); err != nil {
			s.logger.Debug("import entry rejected", logger.String("url", in.URL), logger.Error(err))
			result.Skipped++
			continue
		}

		b := &domain.Bookmark{
			ID:          s.newID(),
			UserID:      userID,
			URL:         in.URL,
			Title:       in.Title,
			Description: in.Description,
		}
		if err := s.repo.Create(ctx, b); err != nil {
			return result, fmt.Errorf("import bookmark %q: %w", in.URL, err)
		}
		result.Imported++
		if !s.retrier.Schedule(b.ID, b.URL) {
			result.Unenriched++
		}
	}

	if result.Unenriched > 0 {
		s.logger.Warn("import outran the metadata queue",
			logger.String("user_id", userID),
			logger.Int("unenriched", result.Unenriched))
	}
	s.logger.Info("bookmarks imported",
		logger.String("user_id", userID),
		logger.Int("imported", result.Imported),
		logger.Int("skipped", result.Skipped))
	return result, nil
}

// Refresh queues a background re-enrichment of a bookmark the caller owns.
func (s *Service) Refresh(ctx context.Context, userID, id string) error {
	b, err := s.repo.Get(ctx, id, userID)
	if err != nil {
		return err
	}
	if !s.retrier.Schedule(b.ID, b.URL) {
		return ErrQueueFull
	}
	s.logger.Info("metadata refresh queued", logger.String("id", id))
	return nil
}

// Ping reports whether the backing store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// safeEnrich runs the enricher and reports whether it produced a result. A
// panic, or a caller context that ended while enriching, counts as no result.
func (s *Service) safeEnrich(ctx context.Context, url string) (meta domain.Metadata, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("enrichment panicked",
				logger.String("url", url),
				logger.Any("panic", r))
			meta, ok = domain.Metadata{}, false
		}
	}()

	meta = s.enricher.Enrich(ctx, url)
	if err := ctx.Err(); err != nil {
		s.logger.Warn("request ended during enrichment",
			logger.String("url", url),
			logger.Error(err))
		return domain.Metadata{}, false
	}
	return meta, true
}

// detached keeps request values but not its cancellation, so a write that
// follows a slow enrichment still lands.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
