package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/bookmark"
	"github.com/MrSnakeDoc/linkvault/internal/config"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/metrics"
	"github.com/MrSnakeDoc/linkvault/internal/store/memory"
)

const testSecret = "test-secret"

type stubEnricher struct{}

func (stubEnricher) Enrich(ctx context.Context, raw string) domain.Metadata {
	return domain.Metadata{Summary: "Summary of " + raw, Favicon: "https://example.com/favicon.ico"}
}

type stubRetrier struct {
	mu     sync.Mutex
	full   bool
	queued []string
}

func (r *stubRetrier) Schedule(id, url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return false
	}
	r.queued = append(r.queued, id)
	return true
}

// downStore is a memory store whose health check fails.
type downStore struct{ *memory.Store }

func (downStore) Ping(ctx context.Context) error { return errors.New("connection refused") }

type stubBreaker string

func (b stubBreaker) State() string { return string(b) }

type fixture struct {
	handler http.Handler
	retrier *stubRetrier
	tokens  *auth.Manager
}

func newFixture(t *testing.T, mutate func(*deps.Deps, *config.Config)) *fixture {
	t.Helper()
	return newFixtureWithRepo(t, memory.New(), mutate)
}

func newFixtureWithRepo(t *testing.T, repo bookmark.Repository, mutate func(*deps.Deps, *config.Config)) *fixture {
	t.Helper()

	retrier := &stubRetrier{}
	tokens := auth.NewManager(testSecret, time.Hour)
	cfg := &config.Config{
		ListenPort:     ":0",
		RequestTimeout: 5 * time.Second,
		ClientURLs:     []string{"http://localhost:5173"},
	}
	d := deps.Deps{
		Logger:    logger.Nop(),
		StartTime: time.Now(),
		Version:   "test",
		Storage:   config.StorageMemory,
		Bookmarks: bookmark.NewService(repo, stubEnricher{}, retrier, logger.Nop(), 100),
		Auth:      tokens,
		Metrics:   metrics.New(),
	}
	if mutate != nil {
		mutate(&d, cfg)
	}

	return &fixture{
		handler: NewRouter(cfg, logger.Nop(), d),
		retrier: retrier,
		tokens:  tokens,
	}
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := f.tokens.Issue(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[struct {
		Message string `json:"message"`
	}](t, rec).Message
}

func TestBookmarkRoutesRequireToken(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name   string
		token  string
		method string
		path   string
	}{
		{name: "list without token", method: http.MethodGet, path: "/api/bookmarks"},
		{name: "create without token", method: http.MethodPost, path: "/api/bookmarks"},
		{name: "garbage token", token: "not-a-jwt", method: http.MethodGet, path: "/api/bookmarks"},
		{name: "refresh without token", method: http.MethodPost, path: "/api/bookmarks/abc/refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.token, "")
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", rec.Code)
			}
			if got := rec.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
				t.Errorf("WWW-Authenticate = %q", got)
			}
		})
	}
}

func TestCreateBookmark(t *testing.T) {
	f := newFixture(t, nil)
	tok := f.token(t, "user-1")

	rec := f.do(t, http.MethodPost, "/api/bookmarks", tok, `{"title":"Go","url":"go.dev","description":"docs"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	b := decode[domain.Bookmark](t, rec)
	if b.ID == "" || b.UserID != "user-1" {
		t.Errorf("identity = %q/%q", b.ID, b.UserID)
	}
	if b.URL != "go.dev" {
		t.Errorf("URL = %q, want it stored as given", b.URL)
	}
	if b.Summary != "Summary of go.dev" {
		t.Errorf("Summary = %q", b.Summary)
	}
	if b.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestCreateBookmarkRejectsBadInput(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps, _ *config.Config) { d.MaxBodyBytes = 64 })
	tok := f.token(t, "user-1")

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing title", body: `{"url":"go.dev"}`, want: "Title and URL are required"},
		{name: "blank url", body: `{"title":"Go","url":"   "}`, want: "Title and URL are required"},
		{name: "not json", body: `title=Go`, want: "request body must be valid JSON"},
		{name: "two objects", body: `{"title":"a","url":"b"}{}`, want: "request body must contain a single JSON object"},
		{name: "too large", body: `{"title":"` + strings.Repeat("x", 100) + `","url":"go.dev"}`, want: "request body exceeds 64 bytes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/bookmarks", tok, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if got := message(t, rec); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBookmarkLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	owner := f.token(t, "owner")
	other := f.token(t, "intruder")

	created := decode[domain.Bookmark](t, f.do(t, http.MethodPost, "/api/bookmarks", owner, `{"title":"Go","url":"go.dev"}`))
	path := "/api/bookmarks/" + created.ID

	if rec := f.do(t, http.MethodGet, path, owner, ""); rec.Code != http.StatusOK {
		t.Fatalf("owner GET status = %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, path, other, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign GET status = %d, want 404", rec.Code)
	}
	if got := message(t, rec); got != "Bookmark not found" {
		t.Errorf("message = %q", got)
	}

	rec = f.do(t, http.MethodPut, path, owner, `{"title":"The Go site"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body)
	}
	if updated := decode[domain.Bookmark](t, rec); updated.Title != "The Go site" || updated.URL != "go.dev" {
		t.Errorf("updated = %+v", updated)
	}

	rec = f.do(t, http.MethodPut, path, owner, `{"title":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank title PUT status = %d, want 400", rec.Code)
	}
	if got := message(t, rec); !strings.Contains(got, "title must not be blank") {
		t.Errorf("message = %q", got)
	}
	if kept := decode[domain.Bookmark](t, f.do(t, http.MethodGet, path, owner, "")); kept.Title != "The Go site" {
		t.Errorf("title after rejected PUT = %q", kept.Title)
	}

	if rec := f.do(t, http.MethodDelete, path, other, ""); rec.Code != http.StatusNotFound {
		t.Errorf("foreign DELETE status = %d, want 404", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, path, owner, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("DELETE body = %q, want empty", rec.Body)
	}

	if rec := f.do(t, http.MethodGet, path, owner, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rec.Code)
	}
}

func TestListAndSearchBookmarks(t *testing.T) {
	f := newFixture(t, nil)
	tok := f.token(t, "user-1")

	for _, body := range []string{
		`{"title":"Go","url":"go.dev"}`,
		`{"title":"Rust book","url":"doc.rust-lang.org/book"}`,
		`{"title":"Gophers","url":"gophers.slack.com"}`,
	} {
		if rec := f.do(t, http.MethodPost, "/api/bookmarks", tok, body); rec.Code != http.StatusCreated {
			t.Fatalf("create status = %d", rec.Code)
		}
	}

	page := decode[domain.Page](t, f.do(t, http.MethodGet, "/api/bookmarks?page=1&limit=2", tok, ""))
	if len(page.Bookmarks) != 2 {
		t.Fatalf("page size = %d, want 2", len(page.Bookmarks))
	}
	if page.Pagination.Total != 3 || page.Pagination.Pages != 2 {
		t.Errorf("pagination = %+v", page.Pagination)
	}

	found := decode[domain.Page](t, f.do(t, http.MethodGet, "/api/bookmarks/search?q=GO", tok, ""))
	if found.Pagination.Total != 2 {
		t.Errorf("search total = %d, want 2", found.Pagination.Total)
	}

	rec := f.do(t, http.MethodGet, "/api/bookmarks/search?q=%20%20", tok, "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank search status = %d, want 400", rec.Code)
	}
	if got := message(t, rec); got != "Search query is required" {
		t.Errorf("message = %q", got)
	}
}

func TestImportBookmarks(t *testing.T) {
	f := newFixture(t, nil)
	tok := f.token(t, "user-1")

	doc := `
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/
    - Go:
        - href: https://go.dev/
          description: Language docs
- Broken:
    - Nothing:
        - abbr: NO
`
	rec := f.do(t, http.MethodPost, "/api/bookmarks/import", tok, doc)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	result := decode[bookmark.ImportResult](t, rec)
	if result.Imported != 2 || result.Skipped != 1 {
		t.Errorf("result = %+v, want 2 imported and 1 skipped", result)
	}
	if len(f.retrier.queued) != 2 {
		t.Errorf("retries queued = %d, want 2", len(f.retrier.queued))
	}

	if rec := f.do(t, http.MethodPost, "/api/bookmarks/import", tok, "- [unclosed"); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed import status = %d, want 400", rec.Code)
	}
}

func TestRefreshBookmark(t *testing.T) {
	f := newFixture(t, nil)
	tok := f.token(t, "user-1")

	created := decode[domain.Bookmark](t, f.do(t, http.MethodPost, "/api/bookmarks", tok, `{"title":"Go","url":"go.dev"}`))

	rec := f.do(t, http.MethodPost, "/api/bookmarks/"+created.ID+"/refresh", tok, "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if len(f.retrier.queued) != 1 || f.retrier.queued[0] != created.ID {
		t.Errorf("queued = %v", f.retrier.queued)
	}

	if rec := f.do(t, http.MethodPost, "/api/bookmarks/missing/refresh", tok, ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec.Code)
	}

	f.retrier.full = true
	rec = f.do(t, http.MethodPost, "/api/bookmarks/"+created.ID+"/refresh", tok, "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("full queue status = %d, want 503", rec.Code)
	}
	if got := message(t, rec); got != "Metadata refresh queue is full" {
		t.Errorf("message = %q", got)
	}
}

func TestHealthz(t *testing.T) {
	f := newFixtureWithRepo(t, downStore{memory.New()}, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even with the store down", rec.Code)
	}
	body := decode[map[string]any](t, rec)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
}

func TestReadyz(t *testing.T) {
	up := newFixture(t, nil)
	if rec := up.do(t, http.MethodGet, "/readyz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("healthy store status = %d, want 200", rec.Code)
	}

	down := newFixtureWithRepo(t, downStore{memory.New()}, nil)
	rec := down.do(t, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("failing store status = %d, want 503", rec.Code)
	}
	if body := decode[map[string]any](t, rec); body["ready"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestInfra(t *testing.T) {
	tests := []struct {
		name     string
		repo     bookmark.Repository
		breaker  deps.BreakerState
		wantMode string
	}{
		{name: "operational", repo: memory.New(), breaker: stubBreaker("closed"), wantMode: "operational"},
		{name: "unguarded extractor", repo: memory.New(), wantMode: "operational"},
		{name: "breaker open", repo: memory.New(), breaker: stubBreaker("open"), wantMode: "degraded"},
		{name: "store down", repo: downStore{memory.New()}, breaker: stubBreaker("open"), wantMode: "critical"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixtureWithRepo(t, tt.repo, func(d *deps.Deps, _ *config.Config) { d.Extractor = tt.breaker })

			rec := f.do(t, http.MethodGet, "/infra", "", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := decode[map[string]any](t, rec)["mode"]; got != tt.wantMode {
				t.Errorf("mode = %v, want %s", got, tt.wantMode)
			}
		})
	}
}

func TestOpsEndpointsRestrictedByCIDR(t *testing.T) {
	restricted := newFixture(t, func(d *deps.Deps, _ *config.Config) { d.AllowedCIDRS = []string{"10.0.0.0/8"} })
	allowed := newFixture(t, func(d *deps.Deps, _ *config.Config) { d.AllowedCIDRS = []string{"192.0.2.0/24"} })

	// httptest requests come from 192.0.2.1.
	for _, path := range []string{"/readyz", "/infra", "/metrics"} {
		if rec := restricted.do(t, http.MethodGet, path, "", ""); rec.Code != http.StatusForbidden {
			t.Errorf("%s from outside the allow-list = %d, want 403", path, rec.Code)
		}
		if rec := allowed.do(t, http.MethodGet, path, "", ""); rec.Code != http.StatusOK {
			t.Errorf("%s from inside the allow-list = %d, want 200", path, rec.Code)
		}
	}

	if rec := restricted.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("/healthz must stay open, got %d", rec.Code)
	}
}

func TestMetricsDisabled(t *testing.T) {
	f := newFixture(t, func(d *deps.Deps, _ *config.Config) { d.Metrics = nil })
	if rec := f.do(t, http.MethodGet, "/metrics", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("/metrics status = %d, want 404", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/bookmarks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}
}
