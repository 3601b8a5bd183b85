package homepage

import (
	"sort"
	"strings"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
)

// MapBookmarks converts a parsed bookmarks.yaml into create inputs, in file
// order. The bookmark name becomes the title and the category the
// description unless the entry carries its own. Entries without href and
// repeated URLs are skipped, and at most max inputs are returned (max <= 0
// means no limit). skipped counts every entry left out.
func MapBookmarks(config BookmarksConfig, max int) (inputs []domain.CreateInput, skipped int) {
	seen := make(map[string]struct{})

	for _, category := range config {
		for _, categoryName := range sortedKeys(category) {
			for _, bookmarkMap := range category[categoryName] {
				for _, bookmarkName := range sortedKeys(bookmarkMap) {
					entries := bookmarkMap[bookmarkName]
					// Each bookmark has a list with a single entry
					if len(entries) == 0 {
						skipped++
						continue
					}
					entry := entries[0]

					href := strings.TrimSpace(entry.Href)
					if href == "" {
						skipped++
						continue
					}
					if _, dup := seen[href]; dup {
						skipped++
						continue
					}
					if max > 0 && len(inputs) >= max {
						skipped++
						continue
					}
					seen[href] = struct{}{}

					title := strings.TrimSpace(bookmarkName)
					if title == "" {
						title = entry.Abbr
					}
					description := entry.Description
					if description == "" {
						description = categoryName
					}

					inputs = append(inputs, domain.CreateInput{
						Title:       title,
						URL:         href,
						Description: description,
					})
				}
			}
		}
	}

	return inputs, skipped
}

// sortedKeys keeps output deterministic when one YAML item holds several keys.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
