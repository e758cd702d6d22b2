package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/scrapedesk/scrapedesk/internal/chat"
	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

const chatContextTopK = 3

type chatRequest struct {
	ProjectID string `json:"project_id"`
	Message   string `json:"message"`
	Model     string `json:"model"`
}

type chatResponse struct {
	Reply   chat.Message `json:"reply"`
	RagUsed bool         `json:"rag_used"`
}

func handleChat(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Message == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "message is required")
			return
		}

		p, err := deps.Workspace.Project(req.ProjectID)
		if errors.Is(err, workspace.ErrProjectNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}

		ragUsed := deps.Workspace.RagEnabled(p.ID)
		var context []string
		if ragUsed {
			for _, s := range deps.Retriever.Retrieve(p.ID, req.Message, chatContextTopK) {
				context = append(context, s.Text)
			}
		}

		_, task, err := deps.Chat.Send(chat.Request{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Message:     req.Message,
			Model:       req.Model,
			RagEnabled:  ragUsed,
			Context:     context,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "sending message: %v", err)
			return
		}

		reply, err := task.Wait(r.Context())
		if err != nil {
			httpError(w, http.StatusBadGateway, "api_error", "waiting for response: %v", err)
			return
		}

		respondJSON(w, http.StatusOK, chatResponse{Reply: reply, RagUsed: ragUsed})
	}
}

func handleGetTranscript(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := deps.Workspace.Project(id); errors.Is(err, workspace.ErrProjectNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "project not found")
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"messages": deps.Chat.Transcript(id),
		})
	}
}
