package handlers

import (
	"context"
	"net/http"

	"github.com/MrSnakeDoc/linkvault/internal/httpserver/deps"
)

type componentStatus struct {
	OK     bool   `json:"ok"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type infraResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Infra summarises the store and the extractor guard for operators.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"store":     checkStore(r.Context(), d),
			"extractor": checkExtractor(d),
		}

		writeJSON(w, http.StatusOK, infraResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

// determineMode: a dead store is critical, an open breaker only degrades
// summaries to the heuristic fallback.
func determineMode(components map[string]componentStatus) string {
	if store, ok := components["store"]; ok && !store.OK {
		return "critical"
	}
	if extractor, ok := components["extractor"]; ok && !extractor.OK {
		return "degraded"
	}
	return "operational"
}

func checkStore(ctx context.Context, d deps.Deps) componentStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := d.Bookmarks.Ping(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   d.Storage,
			Impact: "bookmarks-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: d.Storage}
}

func checkExtractor(d deps.Deps) componentStatus {
	if d.Extractor == nil {
		return componentStatus{OK: true, Mode: "unguarded"}
	}

	state := d.Extractor.State()
	if state == "open" {
		return componentStatus{
			OK:     false,
			Mode:   state,
			Impact: "fallback-summaries-only",
		}
	}
	return componentStatus{OK: true, Mode: state}
}
