package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/bookmark"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

const (
	msgTitleURLRequired = "Title and URL are required"
	msgQueryRequired    = "Search query is required"
	msgNotFound         = "Bookmark not found"
	msgQueueFull        = "Metadata refresh queue is full"
	msgUnauthorized     = "Unauthorized"
)

func CreateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		var in domain.CreateInput
		if err := decodeJSON(w, r, d, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.URL) == "" {
			writeError(w, http.StatusBadRequest, msgTitleURLRequired)
			return
		}

		b, err := d.Bookmarks.Create(r.Context(), session.UserID, in)
		if err != nil {
			serviceError(w, r, d, "create bookmark failed", err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func ListBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		page, err := d.Bookmarks.List(r.Context(), session.UserID, pageRequest(r))
		if err != nil {
			serviceError(w, r, d, "list bookmarks failed", err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func SearchBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			writeError(w, http.StatusBadRequest, msgQueryRequired)
			return
		}

		page, err := d.Bookmarks.Search(r.Context(), session.UserID, query, pageRequest(r))
		if err != nil {
			serviceError(w, r, d, "search bookmarks failed", err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func GetBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		b, err := d.Bookmarks.Get(r.Context(), session.UserID, chi.URLParam(r, "id"))
		if err != nil {
			serviceError(w, r, d, "get bookmark failed", err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func UpdateBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		var in domain.UpdateInput
		if err := decodeJSON(w, r, d, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		b, err := d.Bookmarks.Update(r.Context(), session.UserID, chi.URLParam(r, "id"), in)
		if err != nil {
			serviceError(w, r, d, "update bookmark failed", err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func DeleteBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		if err := d.Bookmarks.Delete(r.Context(), session.UserID, chi.URLParam(r, "id")); err != nil {
			serviceError(w, r, d, "delete bookmark failed", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RefreshBookmark queues a background metadata refresh.
func RefreshBookmark(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		id := chi.URLParam(r, "id")
		if err := d.Bookmarks.Refresh(r.Context(), session.UserID, id); err != nil {
			serviceError(w, r, d, "refresh bookmark failed", err)
			return
		}

		d.Logger.Info("metadata refresh requested",
			logger.String("id", id),
			logger.String("user_id", session.UserID))
		writeJSON(w, http.StatusAccepted, map[string]bool{"queued": true})
	}
}

// ImportBookmarks accepts a Homepage bookmarks.yaml document as the raw body.
func ImportBookmarks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, ok := sessionOr401(w, r)
		if !ok {
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody(d)))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "Import file is too large")
			return
		}

		result, err := d.Bookmarks.Import(r.Context(), session.UserID, data)
		if err != nil {
			serviceError(w, r, d, "import bookmarks failed", err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// serviceError maps service errors to HTTP answers.
func serviceError(w http.ResponseWriter, r *http.Request, d deps.Deps, msg string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, msgNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, bookmark.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, msgQueryRequired)
	case errors.Is(err, bookmark.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, msgQueueFull)
	default:
		internalError(w, r, d, msg, err)
	}
}

func sessionOr401(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	session, ok := auth.SessionFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	}
	return session, ok
}

// pageRequest reads ?page and ?limit; junk values fall back to defaults.
func pageRequest(r *http.Request) domain.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return domain.NewPageRequest(page, limit)
}
