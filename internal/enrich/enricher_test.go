package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
)

type fetchFunc func(ctx context.Context, target string) (string, error)

func (f fetchFunc) Fetch(ctx context.Context, target string) (string, error) { return f(ctx, target) }

func TestEnrichExtracted(t *testing.T) {
	var gotTarget string
	fetcher := fetchFunc(func(ctx context.Context, target string) (string, error) {
		gotTarget = target
		return "Title: Foo\nURL Source: http://x\nMarkdown Content:\n\n\nHello   world", nil
	})
	m := metrics.New()
	e := NewEnricher(fetcher, time.Second, logger.Nop(), m)

	got := e.Enrich(context.Background(), "example.com/post")

	if gotTarget != "https://example.com/post" {
		t.Errorf("fetcher got %q, want normalized URL", gotTarget)
	}
	if got.Summary != "Hello world" {
		t.Errorf("Summary = %q, want %q", got.Summary, "Hello world")
	}
	if got.Favicon != "https://example.com/favicon.ico" {
		t.Errorf("Favicon = %q", got.Favicon)
	}
	if n := testutil.ToFloat64(m.Enrichments.WithLabelValues(OutcomeExtracted)); n != 1 {
		t.Errorf("extracted counter = %v, want 1", n)
	}
}

func TestEnrichFallbackOnFetchError(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, target string) (string, error) {
		return "", errors.New("boom")
	})
	m := metrics.New()
	e := NewEnricher(fetcher, time.Second, logger.Nop(), m)

	got := e.Enrich(context.Background(), "example.com/my-cool-article")

	if got.Summary != `Explore "My Cool Article" on example.com` {
		t.Errorf("Summary = %q", got.Summary)
	}
	if got.Favicon != "https://example.com/favicon.ico" {
		t.Errorf("Favicon = %q", got.Favicon)
	}
	if n := testutil.ToFloat64(m.Enrichments.WithLabelValues(OutcomeFallback)); n != 1 {
		t.Errorf("fallback counter = %v, want 1", n)
	}
}

func TestEnrichFallbackOnUpstreamStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	e := NewEnricher(NewJinaClient(JinaOptions{BaseURL: ts.URL + "/"}), time.Second, logger.Nop(), nil)

	got := e.Enrich(context.Background(), "github.com")
	if got != Fallback("https://github.com") {
		t.Errorf("Enrich() = %+v, want fallback", got)
	}
}

func TestEnrichTimeoutFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
			_, _ = w.Write([]byte("too late"))
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	e := NewEnricher(NewJinaClient(JinaOptions{BaseURL: ts.URL + "/"}), 50*time.Millisecond, logger.Nop(), nil)

	start := time.Now()
	got := e.Enrich(context.Background(), "example.com/my-cool-article")

	if got != Fallback("https://example.com/my-cool-article") {
		t.Errorf("Enrich() = %+v, want fallback", got)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Enrich() took %v, timeout not applied", elapsed)
	}
}

func TestEnrichRecoversFromPanickingFetcher(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, target string) (string, error) {
		panic("extractor exploded")
	})
	e := NewEnricher(fetcher, time.Second, logger.Nop(), nil)

	got := e.Enrich(context.Background(), "github.com")
	if got != Fallback("https://github.com") {
		t.Errorf("Enrich() = %+v, want fallback", got)
	}
}

func TestEnrichNeverFails(t *testing.T) {
	// Nothing listens here once the server is closed.
	ts := httptest.NewServer(http.NotFoundHandler())
	base := ts.URL + "/"
	ts.Close()

	e := NewEnricher(NewJinaClient(JinaOptions{BaseURL: base}), 500*time.Millisecond, logger.Nop(), nil)
	inputs := []string{
		"", " ", "::::", "https://", "http://[::1", "%%%", "unreachable.invalid",
		"https://does-not-exist.invalid/some/page", "exa mple.com/a b",
	}

	for _, in := range inputs {
		got := e.Enrich(context.Background(), in)
		if got.Summary == "" {
			t.Errorf("Enrich(%q) returned empty summary", in)
		}
	}
}

func TestEnrichNilFetcherFallsBack(t *testing.T) {
	e := NewEnricher(nil, 0, logger.Nop(), nil)
	got := e.Enrich(context.Background(), "example.com")
	if got.Summary != "Valuable content and resources from example.com" {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestEnrichCancelledContextFallsBack(t *testing.T) {
	fetcher := fetchFunc(func(ctx context.Context, target string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	e := NewEnricher(fetcher, time.Minute, logger.Nop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := e.Enrich(ctx, "medium.com")
	if got.Summary != "Articles and insights from medium.com" {
		t.Errorf("Summary = %q", got.Summary)
	}
}

type mapCache struct {
	entries map[string]domain.Metadata
	gets    int
}

func (c *mapCache) GetMetadata(ctx context.Context, normalized string) (domain.Metadata, bool, error) {
	c.gets++
	m, ok := c.entries[normalized]
	return m, ok, nil
}

func (c *mapCache) PutMetadata(ctx context.Context, normalized string, meta domain.Metadata) error {
	c.entries[normalized] = meta
	return nil
}

func TestEnrichUsesCache(t *testing.T) {
	upstream := &countingFetcher{body: "Markdown Content: cached body"}
	cache := &mapCache{entries: map[string]domain.Metadata{}}
	m := metrics.New()
	e := NewEnricher(upstream, time.Second, logger.Nop(), m).WithCache(cache)

	first := e.Enrich(context.Background(), "example.com/a")
	second := e.Enrich(context.Background(), "https://example.com/a")

	if first != second || first.Summary != "cached body" {
		t.Errorf("Enrich() = %+v then %+v", first, second)
	}
	if got := upstream.calls.Load(); got != 1 {
		t.Errorf("extractor called %d times, want 1", got)
	}
	if n := testutil.ToFloat64(m.Enrichments.WithLabelValues(OutcomeCached)); n != 1 {
		t.Errorf("cached counter = %v, want 1", n)
	}
}

func TestEnrichDoesNotCacheFallback(t *testing.T) {
	upstream := &countingFetcher{err: errors.New("down")}
	cache := &mapCache{entries: map[string]domain.Metadata{}}
	e := NewEnricher(upstream, time.Second, logger.Nop(), nil).WithCache(cache)

	_ = e.Enrich(context.Background(), "example.com/a")
	_ = e.Enrich(context.Background(), "example.com/a")

	if len(cache.entries) != 0 {
		t.Errorf("fallback metadata was cached: %+v", cache.entries)
	}
	if got := upstream.calls.Load(); got != 2 {
		t.Errorf("extractor called %d times, want 2", got)
	}
}
