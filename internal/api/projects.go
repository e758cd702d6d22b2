package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/scrapedesk/scrapedesk/internal/pagination"
	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

type createProjectRequest struct {
	Name string `json:"name"`
}

type renameProjectRequest struct {
	Name string `json:"name"`
}

type addURLRequest struct {
	URL        string `json:"url"`
	Conditions string `json:"conditions"`
}

type ragDecisionRequest struct {
	Decision string `json:"decision"`
}

type setActiveRequest struct {
	ID string `json:"id"`
}

func handleListProjects(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promptID, open := deps.Workspace.RagPrompt()
		resp := map[string]any{
			"projects":  deps.Workspace.Projects(),
			"active_id": deps.Workspace.ActiveID(),
		}
		if open {
			resp["rag_prompt"] = map[string]string{"project_id": promptID}
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

func handleCreateProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req createProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		p, err := deps.Workspace.CreateProject(req.Name)
		if err != nil {
			if workspace.IsValidation(err) {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "creating project: %v", err)
			return
		}

		deps.Logger.Info("project created", "project_id", p.ID, "name", p.Name)
		respondJSON(w, http.StatusCreated, p)
	}
}

func handleGetProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Workspace.Project(chi.URLParam(r, "id"))
		if errors.Is(err, workspace.ErrProjectNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func handleRenameProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req renameProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id := chi.URLParam(r, "id")
		if err := deps.Workspace.RenameProject(id, req.Name); err != nil {
			if errors.Is(err, workspace.ErrProjectNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "project not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "renaming project: %v", err)
			return
		}

		p, err := deps.Workspace.Project(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reloading project: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProject(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireConfirm(w, r) {
			return
		}

		id := chi.URLParam(r, "id")
		if err := deps.Workspace.DeleteProject(id); err != nil {
			if errors.Is(err, workspace.ErrProjectNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "project not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "deleting project: %v", err)
			return
		}

		// Dependent state goes with the project.
		deps.Chat.DropProject(id)
		deps.Corpus.DropProject(id)

		deps.Logger.Info("project deleted", "project_id", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleGetActive(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"active_id": deps.Workspace.ActiveID()})
	}
}

func handleSetActive(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req setActiveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		if req.ID == "" {
			deps.Workspace.ClearActive()
		} else {
			deps.Workspace.SelectProject(req.ID)
		}
		respondJSON(w, http.StatusOK, map[string]string{"active_id": deps.Workspace.ActiveID()})
	}
}

func handleAddURL(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req addURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		entry, err := deps.Workspace.AddURL(chi.URLParam(r, "id"), req.URL, req.Conditions)
		if err != nil {
			switch {
			case errors.Is(err, workspace.ErrProjectNotFound):
				httpError(w, http.StatusNotFound, "not_found", "project not found")
			case workspace.IsValidation(err):
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			default:
				httpError(w, http.StatusInternalServerError, "api_error", "adding url: %v", err)
			}
			return
		}
		respondJSON(w, http.StatusCreated, entry)
	}
}

func handleClearURLs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Workspace.RemoveAllURLs(chi.URLParam(r, "id")); err != nil {
			if errors.Is(err, workspace.ErrProjectNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "project not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "clearing urls: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Workspace.Project(chi.URLParam(r, "id"))
		if errors.Is(err, workspace.ErrProjectNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}

		pageSize := parseIntParam(r, "page_size", pagination.DefaultPageSize, 100)
		current := parseIntParam(r, "page", 1, 0)
		page := pagination.Paginate(len(p.History), pageSize, current)

		items := p.History[page.Start:page.End]
		if items == nil {
			items = []workspace.HistoryItem{}
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"items": items,
			"page":  page,
		})
	}
}

func handleDeleteHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireConfirm(w, r) {
			return
		}

		hid, err := strconv.Atoi(chi.URLParam(r, "hid"))
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid history id")
			return
		}

		if err := deps.Workspace.DeleteHistory(chi.URLParam(r, "id"), hid); err != nil {
			if errors.Is(err, workspace.ErrProjectNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "project not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "deleting history item: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRagDecision(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req ragDecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		id := chi.URLParam(r, "id")
		var err error
		switch req.Decision {
		case "dismiss":
			err = deps.Workspace.DismissRagPrompt(id)
		case string(workspace.DecisionEnable), string(workspace.DecisionDisable), string(workspace.DecisionLater):
			err = deps.Workspace.ApplyRagDecision(id, workspace.RagDecision(req.Decision))
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown decision %q (valid: enable, disable, later, dismiss)", req.Decision)
			return
		}
		if err != nil {
			if errors.Is(err, workspace.ErrProjectNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "project not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "applying decision: %v", err)
			return
		}

		p, err := deps.Workspace.Project(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "reloading project: %v", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"rag_status": string(p.RagStatus)})
	}
}
