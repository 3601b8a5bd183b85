// Package memory is an in-process bookmark store for single-instance
// deployments and tests. It mirrors the Redis store's semantics.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
)

type entry struct {
	bookmark *domain.Bookmark
	seq      uint64 // creation order, the only sort key
}

// Store keeps bookmarks in maps guarded by a RWMutex. Values never leave the
// store without being cloned.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry   // ID -> entry
	byUser  map[string][]string // UserID -> IDs, insertion order
	seq     uint64
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[string]*entry),
		byUser:  make(map[string][]string),
		now:     time.Now,
	}
}

func (s *Store) Create(_ context.Context, b *domain.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	b.CreatedAt = now
	b.UpdatedAt = now

	s.seq++
	s.entries[b.ID] = &entry{bookmark: b.Clone(), seq: s.seq}
	s.byUser[b.UserID] = append(s.byUser[b.UserID], b.ID)
	return nil
}

func (s *Store) Get(_ context.Context, id, userID string) (*domain.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.bookmark.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return e.bookmark.Clone(), nil
}

func (s *Store) List(_ context.Context, userID string, req domain.PageRequest) (*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.newestFirst(userID)
	start, end := req.Window(len(all))
	return domain.NewPage(all[start:end], req, len(all)), nil
}

func (s *Store) Search(_ context.Context, userID, query string, req domain.PageRequest) (*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query)
	matches := make([]*domain.Bookmark, 0)
	for _, b := range s.newestFirst(userID) {
		if domain.Matches(b, needle) {
			matches = append(matches, b)
		}
	}

	start, end := req.Window(len(matches))
	return domain.NewPage(matches[start:end], req, len(matches)), nil
}

func (s *Store) Update(_ context.Context, id, userID string, mutate func(*domain.Bookmark)) (*domain.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.bookmark.UserID != userID {
		return nil, domain.ErrNotFound
	}

	b := e.bookmark.Clone()
	mutate(b)
	b.UpdatedAt = s.now().UTC()
	e.bookmark = b
	return b.Clone(), nil
}

// UpdateMetadata is not owner-scoped; see the Redis store.
func (s *Store) UpdateMetadata(_ context.Context, id string, meta domain.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return domain.ErrNotFound
	}

	b := e.bookmark.Clone()
	b.Apply(meta)
	b.UpdatedAt = s.now().UTC()
	e.bookmark = b
	return nil
}

func (s *Store) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.bookmark.UserID != userID {
		return domain.ErrNotFound
	}
	delete(s.entries, id)

	ids := s.byUser[userID]
	for i, other := range ids {
		if other == id {
			s.byUser[userID] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(s.byUser[userID]) == 0 {
		delete(s.byUser, userID)
	}
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

// Count returns the number of bookmarks across all users
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// newestFirst returns clones of a user's bookmarks. Callers hold the lock.
func (s *Store) newestFirst(userID string) []*domain.Bookmark {
	ids := s.byUser[userID]
	es := make([]*entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.entries[id]; ok {
			es = append(es, e)
		}
	}

	// Creation order rather than CreatedAt, matching the Redis index: equal
	// or skewed timestamps cannot reorder a bulk import.
	sort.Slice(es, func(i, j int) bool { return es[i].seq > es[j].seq })

	out := make([]*domain.Bookmark, 0, len(es))
	for _, e := range es {
		out = append(out, e.bookmark.Clone())
	}
	return out
}
