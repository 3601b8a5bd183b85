package redis

const (
	// KeyPrefixBookmark is the prefix for bookmark keys
	KeyPrefixBookmark = "linkvault:bookmark:"
	// KeyPrefixUser is the prefix for per-user index keys
	KeyPrefixUser = "linkvault:user:"
	// KeyPrefixCache is the prefix for cached extractions
	KeyPrefixCache = "linkvault:cache:"
	// KeySequence is the counter that scores the per-user indexes
	KeySequence = "linkvault:bookmark:seq"
)

// BookmarkKey returns the Redis key for a bookmark
func BookmarkKey(id string) string {
	return KeyPrefixBookmark + id
}

// UserBookmarksKey returns the sorted set of a user's bookmark IDs, scored by
// the global creation sequence.
func UserBookmarksKey(userID string) string {
	return KeyPrefixUser + userID + ":bookmarks"
}

// CacheKey returns the Redis key for a cached extraction
func CacheKey(normalized string) string {
	return KeyPrefixCache + normalized
}
