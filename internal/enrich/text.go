package enrich

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// EmptySummary replaces a cleaned body that ended up with no text at all.
const EmptySummary = "Content retrieved from URL"

var (
	// Extractor header lines that carry no page content.
	droppedLinePrefixes = []string{"Title:", "URL Source:", "Published Time:", "Warning:"}
	markdownPrefix      = "Markdown Content:"

	excessNewlines = regexp.MustCompile(`\n{3,}`)
	repeatedSpaces = regexp.MustCompile(`[ \t]{2,}`)
)

// Normalize makes sure the URL carries an explicit scheme. Anything not
// starting with "http" gets "https://" in front; nothing else is validated.
func Normalize(raw string) string {
	if strings.HasPrefix(raw, "http") {
		return raw
	}
	return "https://" + raw
}

// CleanSummary turns an extractor response into the stored summary text.
// The output is a fixed point: cleaning it again returns it unchanged.
func CleanSummary(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line, ok := cleanLine(line)
		if !ok {
			continue
		}
		kept = append(kept, line)
	}

	text := strings.Join(kept, "\n")
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return EmptySummary
	}
	return text
}

// cleanLine collapses blanks and strips any number of "Markdown Content:"
// prefixes. A line that starts with a header label, once leading whitespace
// is ignored, is dropped.
func cleanLine(line string) (string, bool) {
	line = repeatedSpaces.ReplaceAllString(line, " ")
	for {
		probe := strings.TrimLeftFunc(line, unicode.IsSpace)
		if hasAnyPrefix(probe, droppedLinePrefixes) {
			return "", false
		}
		rest, ok := strings.CutPrefix(probe, markdownPrefix)
		if !ok {
			break
		}
		line = strings.TrimLeftFunc(rest, unicode.IsSpace)
	}
	return strings.TrimRight(line, " \t"), true
}

// Favicon returns "<scheme>://<host>/favicon.ico", or "" when the URL has no
// usable host.
func Favicon(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return faviconFor(u)
}

func faviconFor(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	if host == "" || u.Scheme == "" {
		return ""
	}
	return u.Scheme + "://" + host + "/favicon.ico"
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
