package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultCacheTTL is the default TTL for cached extractions (24 hours)
	DefaultCacheTTL = 24 * time.Hour

	// maxTxRetries bounds optimistic transactions that lose a WATCH race.
	maxTxRetries = 5

	// mgetChunk bounds the number of keys fetched per MGET.
	mgetChunk = 200
)

// Store handles Redis persistence of bookmarks and the extraction cache
type Store struct {
	client   *redis.Client
	cacheTTL time.Duration
	now      func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client:   client,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
	}
}

// WithCacheTTL sets how long extractions are cached. Zero disables caching.
func (s *Store) WithCacheTTL(ttl time.Duration) *Store {
	s.cacheTTL = ttl
	return s
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
