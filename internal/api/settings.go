package api

import (
	"encoding/json"
	"net/http"

	"github.com/scrapedesk/scrapedesk/internal/settings"
)

func handleGetSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Settings.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading settings: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, s)
	}
}

func handlePutSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var s settings.Settings
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if err := deps.Settings.Update(s); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		updated, err := deps.Settings.Get()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reloading settings: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, updated)
	}
}
