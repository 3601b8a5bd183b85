package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

func TestLogLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  zapcore.Level
	}{
		{status: http.StatusOK, level: zapcore.InfoLevel},
		{status: http.StatusNotFound, level: zapcore.WarnLevel},
		{status: http.StatusServiceUnavailable, level: zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			r := chi.NewRouter()
			r.Use(Log(logger.FromZap(zap.New(core))))
			r.Get("/api/bookmarks/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})

			r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/bookmarks/42", nil))

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("got %d access lines, want 1", len(entries))
			}
			if entries[0].Level != tt.level {
				t.Errorf("level = %v, want %v", entries[0].Level, tt.level)
			}
			fields := entries[0].ContextMap()
			if fields["route"] != "/api/bookmarks/{id}" || fields["path"] != "/api/bookmarks/42" {
				t.Errorf("fields = %v", fields)
			}
		})
	}
}

type staticValidator map[string]auth.Session

func (v staticValidator) Validate(token string) (auth.Session, error) {
	if s, ok := v[token]; ok {
		return s, nil
	}
	return auth.Session{}, auth.ErrInvalidToken
}

func TestRequireAuth(t *testing.T) {
	v := staticValidator{"good": {UserID: "user-1", Email: "a@example.com"}}

	var seen auth.Session
	h := RequireAuth(v, false, logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.SessionFrom(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer good", want: http.StatusOK},
		{name: "scheme case-insensitive", header: "bearer good", want: http.StatusOK},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "basic scheme", header: "Basic Z29vZA==", want: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer   ", want: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer bad", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = auth.Session{}
			req := httptest.NewRequest(http.MethodGet, "/api/bookmarks", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK && seen.UserID != "user-1" {
				t.Errorf("session = %+v", seen)
			}
		})
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name       string
		allowed    []string
		trustProxy bool
		remote     string
		forwarded  string
		want       int
	}{
		{name: "empty list passes", remote: "203.0.113.9:4000", want: http.StatusOK},
		{name: "inside range", allowed: []string{"10.0.0.0/8"}, remote: "10.1.2.3:4000", want: http.StatusOK},
		{name: "outside range", allowed: []string{"10.0.0.0/8"}, remote: "203.0.113.9:4000", want: http.StatusForbidden},
		{name: "forwarded ignored without trust", allowed: []string{"10.0.0.0/8"}, remote: "203.0.113.9:4000", forwarded: "10.1.2.3", want: http.StatusForbidden},
		{name: "forwarded used with trust", allowed: []string{"10.0.0.0/8"}, trustProxy: true, remote: "172.17.0.1:4000", forwarded: "10.1.2.3", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			req.RemoteAddr = tt.remote
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			rec := httptest.NewRecorder()
			AllowOnlyCIDRS(tt.allowed, tt.trustProxy, logger.Nop())(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

