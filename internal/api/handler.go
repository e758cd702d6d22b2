// Package api exposes the workspace over HTTP (chi) and MCP.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scrapedesk/scrapedesk/internal/chat"
	"github.com/scrapedesk/scrapedesk/internal/rag"
	"github.com/scrapedesk/scrapedesk/internal/scrape"
	"github.com/scrapedesk/scrapedesk/internal/settings"
	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Deps holds everything the HTTP handlers need.
type Deps struct {
	Workspace *workspace.Store
	Scraper   *scrape.Orchestrator
	Chat      *chat.Manager
	Retriever *rag.Retriever
	Corpus    *rag.Corpus
	Settings  *settings.Manager
	Logger    *slog.Logger
}

// NewHandler builds the HTTP API router.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/v1/models", handleListModels)
	r.Post("/chat", handleChat(deps))

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", handleListProjects(deps))
		r.Post("/", handleCreateProject(deps))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handleGetProject(deps))
			r.Patch("/", handleRenameProject(deps))
			r.Delete("/", handleDeleteProject(deps))

			r.Post("/urls", handleAddURL(deps))
			r.Delete("/urls", handleClearURLs(deps))

			r.Post("/scrape", handleStartScrape(deps))
			r.Get("/results", handleGetResults(deps))
			r.Get("/results/{n}/export", handleExportResult(deps))

			r.Get("/history", handleListHistory(deps))
			r.Delete("/history/{hid}", handleDeleteHistory(deps))

			r.Post("/rag", handleRagDecision(deps))
			r.Get("/chat", handleGetTranscript(deps))
		})
	})

	r.Get("/workspace/active", handleGetActive(deps))
	r.Put("/workspace/active", handleSetActive(deps))

	r.Get("/settings", handleGetSettings(deps))
	r.Put("/settings", handlePutSettings(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleListModels(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"models":  chat.Catalog(),
		"default": chat.DefaultModel,
	})
}

func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// parseIntParam reads a positive integer query parameter, falling back to
// def. Values above max (when max > 0) are clamped.
func parseIntParam(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// requireConfirm gates destructive endpoints behind ?confirm=true.
func requireConfirm(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") != "true" {
		httpError(w, http.StatusBadRequest, "confirmation_required", "destructive operation requires ?confirm=true")
		return false
	}
	return true
}
