package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
)

// Create stores a new bookmark and indexes it under its owner.
// CreatedAt and UpdatedAt are set by the store.
func (s *Store) Create(ctx context.Context, b *domain.Bookmark) error {
	now := s.now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	// Millisecond timestamps collide during imports; the counter never does.
	seq, err := s.client.Incr(ctx, KeySequence).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate bookmark sequence: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, BookmarkKey(b.ID), data, 0)
		pipe.ZAdd(ctx, UserBookmarksKey(b.UserID), redis.Z{
			Score:  float64(seq),
			Member: b.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}
	return nil
}

// Get retrieves a bookmark owned by userID
func (s *Store) Get(ctx context.Context, id, userID string) (*domain.Bookmark, error) {
	b, err := s.load(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

// List returns one page of a user's bookmarks, newest first
func (s *Store) List(ctx context.Context, userID string, req domain.PageRequest) (*domain.Page, error) {
	key := UserBookmarksKey(userID)

	total, err := s.client.ZCard(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to count bookmarks: %w", err)
	}

	start, end := req.Window(int(total))
	if start == end {
		return domain.NewPage(nil, req, int(total)), nil
	}

	ids, err := s.client.ZRevRange(ctx, key, int64(start), int64(end-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}

	bookmarks, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	return domain.NewPage(bookmarks, req, int(total)), nil
}

// Search matches query case-insensitively against title, description and
// summary of a user's bookmarks, newest first
func (s *Store) Search(ctx context.Context, userID, query string, req domain.PageRequest) (*domain.Page, error) {
	ids, err := s.client.ZRevRange(ctx, UserBookmarksKey(userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}

	all, err := s.loadMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	matches := make([]*domain.Bookmark, 0, len(all))
	for _, b := range all {
		if domain.Matches(b, needle) {
			matches = append(matches, b)
		}
	}

	start, end := req.Window(len(matches))
	return domain.NewPage(matches[start:end], req, len(matches)), nil
}

// Update applies mutate to a bookmark owned by userID inside an optimistic
// transaction and returns the stored result.
func (s *Store) Update(ctx context.Context, id, userID string, mutate func(*domain.Bookmark)) (*domain.Bookmark, error) {
	return s.modify(ctx, id, func(b *domain.Bookmark) error {
		if b.UserID != userID {
			return domain.ErrNotFound
		}
		mutate(b)
		return nil
	})
}

// UpdateMetadata overwrites summary and favicon only. It is not owner-scoped:
// background enrichment only knows the bookmark ID.
func (s *Store) UpdateMetadata(ctx context.Context, id string, meta domain.Metadata) error {
	_, err := s.modify(ctx, id, func(b *domain.Bookmark) error {
		b.Apply(meta)
		return nil
	})
	return err
}

// Delete removes a bookmark owned by userID and its index entry
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	key := BookmarkKey(id)

	txf := func(tx *redis.Tx) error {
		b, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if b.UserID != userID {
			return domain.ErrNotFound
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZRem(ctx, UserBookmarksKey(userID), id)
			return nil
		})
		return err
	}

	return s.watch(ctx, txf, key)
}

func (s *Store) modify(ctx context.Context, id string, fn func(*domain.Bookmark) error) (*domain.Bookmark, error) {
	key := BookmarkKey(id)
	var updated *domain.Bookmark

	txf := func(tx *redis.Tx) error {
		b, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		b.UpdatedAt = s.now().UTC()

		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = b
		}
		return err
	}

	if err := s.watch(ctx, txf, key); err != nil {
		return nil, err
	}
	return updated, nil
}

// watch runs txf under WATCH, retrying when another client wins the race.
func (s *Store) watch(ctx context.Context, txf func(*redis.Tx) error, keys ...string) error {
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("transaction on %v kept conflicting after %d attempts", keys, maxTxRetries)
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, id string) (*domain.Bookmark, error) {
	data, err := c.Get(ctx, BookmarkKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var b domain.Bookmark
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}
	return &b, nil
}

// loadMany fetches bookmarks in ids order, skipping IDs whose value vanished
// between the index read and the MGET.
func (s *Store) loadMany(ctx context.Context, ids []string) ([]*domain.Bookmark, error) {
	bookmarks := make([]*domain.Bookmark, 0, len(ids))

	for start := 0; start < len(ids); start += mgetChunk {
		end := min(start+mgetChunk, len(ids))

		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, BookmarkKey(id))
		}

		values, err := s.client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to get bookmarks: %w", err)
		}

		for _, v := range values {
			raw, ok := v.(string)
			if !ok {
				continue
			}
			var b domain.Bookmark
			if err := json.Unmarshal([]byte(raw), &b); err != nil {
				// Skip bookmarks that couldn't be decoded
				continue
			}
			bookmarks = append(bookmarks, &b)
		}
	}

	return bookmarks, nil
}
