package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
)

// GetMetadata returns a cached extraction for a normalized URL
func (s *Store) GetMetadata(ctx context.Context, normalized string) (domain.Metadata, bool, error) {
	if s.cacheTTL <= 0 {
		return domain.Metadata{}, false, nil
	}

	data, err := s.client.Get(ctx, CacheKey(normalized)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Metadata{}, false, nil // Cache miss
		}
		return domain.Metadata{}, false, fmt.Errorf("failed to get cached metadata: %w", err)
	}

	var meta domain.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Metadata{}, false, fmt.Errorf("failed to unmarshal cached metadata: %w", err)
	}
	return meta, true, nil
}

// PutMetadata caches an extraction for a normalized URL
func (s *Store) PutMetadata(ctx context.Context, normalized string, meta domain.Metadata) error {
	if s.cacheTTL <= 0 {
		return nil
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := s.client.Set(ctx, CacheKey(normalized), data, s.cacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache metadata: %w", err)
	}
	return nil
}
