package enrich

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
)

// StaticSummary is used when the URL cannot even be parsed.
const StaticSummary = "Interesting content to explore"

var (
	slugSeparators = strings.NewReplacer("-", " ", "_", " ")
	pageExtension  = regexp.MustCompile(`(?i)\.(html|php|aspx?)$`)
)

type category struct {
	keywords []string
	format   string
}

// Checked in order, first match wins.
var categories = []category{
	{keywords: []string{"github"}, format: "Open source projects and code repositories on %s"},
	{keywords: []string{"stackoverflow", "stack"}, format: "Programming questions and developer discussions on %s"},
	{keywords: []string{"medium", "blog"}, format: "Articles and insights from %s"},
	{keywords: []string{"youtube", "video"}, format: "Video content and tutorials from %s"},
	{keywords: []string{"news", "reuters", "bbc"}, format: "Latest news and updates from %s"},
	{keywords: []string{"wikipedia", "wiki"}, format: "Knowledge and information from %s"},
}

const genericFormat = "Valuable content and resources from %s"

// Fallback builds metadata from the URL alone. It never fails and always
// returns a non-empty summary.
func Fallback(normalized string) domain.Metadata {
	u, err := url.Parse(normalized)
	if err != nil || u.Hostname() == "" {
		return domain.Metadata{Summary: StaticSummary}
	}

	site := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	summary := ""
	if segment := lastSegment(u.Path); segment != "" {
		if words := readable(segment); words != "" {
			summary = fmt.Sprintf(`Explore "%s" on %s`, words, site)
		}
	}
	if summary == "" {
		summary = describeSite(site)
	}

	return domain.Metadata{
		Summary: summary,
		Favicon: faviconFor(u),
	}
}

// lastSegment returns the final non-empty path segment, ignoring index.html.
func lastSegment(path string) string {
	parts := strings.Split(path, "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if p := parts[i]; p != "" && p != "index.html" {
			return p
		}
	}
	return ""
}

// readable turns a URL slug like "my-cool_article.html" into "My Cool Article".
func readable(slug string) string {
	s := slugSeparators.Replace(slug)
	s = pageExtension.ReplaceAllString(s, "")

	words := strings.Split(s, " ")
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func capitalize(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

func describeSite(site string) string {
	for _, c := range categories {
		for _, kw := range c.keywords {
			if strings.Contains(site, kw) {
				return fmt.Sprintf(c.format, site)
			}
		}
	}
	return fmt.Sprintf(genericFormat, site)
}
