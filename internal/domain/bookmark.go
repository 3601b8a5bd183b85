package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a bookmark does not exist or belongs to another user.
var ErrNotFound = errors.New("bookmark not found")

// Bookmark is a saved URL owned by exactly one user.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is a UUID generated at creation.
	ID string `json:"id"`

	// UserID is the owner. Every read and write is scoped by it.
	UserID string `json:"userId"`

	// ─────────────────────────────
	// User-supplied
	// ─────────────────────────────

	// URL is stored exactly as given, scheme or not.
	URL string `json:"url"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// ─────────────────────────────
	// Derived (owned by the enricher)
	// ─────────────────────────────

	// Summary is the cleaned page text, or a heuristic sentence when the
	// extractor was unavailable. Empty until the first enrichment lands.
	Summary string `json:"summary"`

	// Favicon is "<scheme>://<host>/favicon.ico" or empty.
	Favicon string `json:"favicon"`

	// ─────────────────────────────
	// Persistence
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata is what enrichment derives from a URL.
type Metadata struct {
	Summary string `json:"summary"`
	Favicon string `json:"favicon"`
}

// Apply overwrites the derived fields of b. Nothing else is touched.
func (b *Bookmark) Apply(m Metadata) {
	b.Summary = m.Summary
	b.Favicon = m.Favicon
}

// Clone returns a copy safe to hand out of a store.
func (b *Bookmark) Clone() *Bookmark {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Matches reports whether the lowercased needle occurs in the title,
// description or summary of b, ignoring case.
func Matches(b *Bookmark, needle string) bool {
	return strings.Contains(strings.ToLower(b.Title), needle) ||
		strings.Contains(strings.ToLower(b.Description), needle) ||
		strings.Contains(strings.ToLower(b.Summary), needle)
}

// CreateInput carries the user-supplied fields of a new bookmark.
type CreateInput struct {
	Title       string `json:"title" validate:"required,notblank,max=512"`
	URL         string `json:"url" validate:"required,notblank,max=2048"`
	Description string `json:"description" validate:"max=4096"`
}

// UpdateInput is a partial update; nil fields are left untouched.
type UpdateInput struct {
	Title       *string `json:"title" validate:"omitempty,notblank,max=512"`
	URL         *string `json:"url" validate:"omitempty,notblank,max=2048"`
	Description *string `json:"description" validate:"omitempty,max=4096"`
}
