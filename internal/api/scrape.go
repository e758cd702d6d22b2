package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scrapedesk/scrapedesk/internal/export"
	"github.com/scrapedesk/scrapedesk/internal/scrape"
	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

func handleStartScrape(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		summary, err := deps.Scraper.StartScraping(r.Context(), id)
		if err != nil {
			switch {
			case errors.Is(err, workspace.ErrProjectNotFound):
				httpError(w, http.StatusNotFound, "not_found", "project not found")
			case errors.Is(err, scrape.ErrRunInProgress):
				httpError(w, http.StatusConflict, "run_in_progress", "a scrape run is already in progress for this project")
			case errors.Is(err, scrape.ErrEmptyQueue), errors.Is(err, scrape.ErrMissingConditions):
				// The gate has already recorded the message on the project.
				p, perr := deps.Workspace.Project(id)
				msg := err.Error()
				if perr == nil && p.ErrorMessage != "" {
					msg = p.ErrorMessage
				}
				httpError(w, http.StatusUnprocessableEntity, "validation_failed", "%s", msg)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "scrape run failed: %v", err)
			}
			return
		}

		respondJSON(w, http.StatusOK, summary)
	}
}

func handleGetResults(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Workspace.Project(chi.URLParam(r, "id"))
		if errors.Is(err, workspace.ErrProjectNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}

		results := p.Results
		if results == nil {
			results = []workspace.URLResult{}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"results":           results,
			"is_scraping_error": p.IsScrapingError,
			"error_message":     p.ErrorMessage,
		})
	}
}

func handleExportResult(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Workspace.Project(chi.URLParam(r, "id"))
		if errors.Is(err, workspace.ErrProjectNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}

		n, err := strconv.Atoi(chi.URLParam(r, "n"))
		if err != nil || n < 1 || n > len(p.Results) {
			httpError(w, http.StatusNotFound, "not_found", "no result %s (project has %d)", chi.URLParam(r, "n"), len(p.Results))
			return
		}

		rawFormat := r.URL.Query().Get("format")
		if rawFormat == "" {
			s, serr := deps.Settings.Get()
			if serr != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "loading settings: %v", serr)
				return
			}
			rawFormat = s.DefaultExportFormat
		}
		format, err := export.ParseFormat(rawFormat)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		res := p.Results[n-1]
		data, err := export.RenderOne(res, format)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "rendering export: %v", err)
			return
		}

		name := export.Filename(res.URL, n, format)
		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}
