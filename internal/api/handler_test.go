package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrapedesk/scrapedesk/internal/chat"
	"github.com/scrapedesk/scrapedesk/internal/rag"
	"github.com/scrapedesk/scrapedesk/internal/scrape"
	"github.com/scrapedesk/scrapedesk/internal/settings"
	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

func setupHandler(t *testing.T) (http.Handler, *workspace.Store) {
	t.Helper()

	ws := workspace.NewStore()
	corpus := rag.NewCorpus()
	orch := scrape.New(ws, &scrape.SimulatedEngine{}, scrape.WithSink(corpus))
	chatMgr := chat.NewManager(&chat.SimulatedResponder{})
	t.Cleanup(chatMgr.Close)

	store, err := settings.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(Deps{
		Workspace: ws,
		Scraper:   orch,
		Chat:      chatMgr,
		Retriever: rag.NewRetriever(corpus, ws),
		Corpus:    corpus,
		Settings:  settings.NewManager(store),
	})
	return handler, ws
}

func doJSON(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
}

func createProject(t *testing.T, h http.Handler, name string) workspace.Project {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/projects", fmt.Sprintf(`{"name":%q}`, name))
	if w.Code != http.StatusCreated {
		t.Fatalf("create project status = %d: %s", w.Code, w.Body.String())
	}
	var p workspace.Project
	decodeBody(t, w, &p)
	return p
}

func addURL(t *testing.T, h http.Handler, projectID, url, conditions string) {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/projects/"+projectID+"/urls",
		fmt.Sprintf(`{"url":%q,"conditions":%q}`, url, conditions))
	if w.Code != http.StatusCreated {
		t.Fatalf("add url status = %d: %s", w.Code, w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	h, _ := setupHandler(t)
	w := doJSON(t, h, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListModels(t *testing.T) {
	h, _ := setupHandler(t)
	w := doJSON(t, h, http.MethodGet, "/v1/models", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Models  []chat.Model `json:"models"`
		Default string       `json:"default"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Models) != 2 {
		t.Errorf("models = %d, want 2", len(resp.Models))
	}
	if resp.Default != chat.DefaultModel {
		t.Errorf("default = %q, want %q", resp.Default, chat.DefaultModel)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	h, _ := setupHandler(t)
	w := doJSON(t, h, http.MethodPost, "/projects", `{"name":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProjectLifecycle(t *testing.T) {
	h, _ := setupHandler(t)

	p := createProject(t, h, "Shoes")
	if p.ID == "" || p.Name != "Shoes" {
		t.Fatalf("project = %+v", p)
	}

	// New project becomes active.
	w := doJSON(t, h, http.MethodGet, "/workspace/active", "")
	var active struct {
		ActiveID string `json:"active_id"`
	}
	decodeBody(t, w, &active)
	if active.ActiveID != p.ID {
		t.Errorf("active = %q, want %q", active.ActiveID, p.ID)
	}

	// Rename.
	w = doJSON(t, h, http.MethodPatch, "/projects/"+p.ID, `{"name":"Sneakers"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("rename status = %d", w.Code)
	}
	var renamed workspace.Project
	decodeBody(t, w, &renamed)
	if renamed.Name != "Sneakers" {
		t.Errorf("name = %q, want Sneakers", renamed.Name)
	}

	// Delete requires confirmation.
	w = doJSON(t, h, http.MethodDelete, "/projects/"+p.ID, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed delete status = %d, want 400", w.Code)
	}
	w = doJSON(t, h, http.MethodDelete, "/projects/"+p.ID+"?confirm=true", "")
	if w.Code != http.StatusNoContent {
		t.Errorf("confirmed delete status = %d, want 204", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/projects/"+p.ID, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d, want 404", w.Code)
	}
}

func TestGetProjectNotFound(t *testing.T) {
	h, _ := setupHandler(t)
	w := doJSON(t, h, http.MethodGet, "/projects/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestAddURLValidation(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")

	w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/urls", `{"url":"https://example.com","conditions":"  "}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestScrapeEmptyQueue(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")

	w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/scrape", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	decodeBody(t, w, &resp)
	want := "No URLs to scrape. Please add at least one URL to the project."
	if resp.Error.Message != want {
		t.Errorf("message = %q, want %q", resp.Error.Message, want)
	}
}

func TestScrapeAndResults(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")
	addURL(t, h, p.ID, "https://shop.example.com/a", "price, title")
	addURL(t, h, p.ID, "https://shop.example.com/b", "price")

	w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/scrape", "")
	if w.Code != http.StatusOK {
		t.Fatalf("scrape status = %d: %s", w.Code, w.Body.String())
	}
	var summary workspace.RunSummary
	decodeBody(t, w, &summary)
	if summary.History.URL != "2 URLs scraped" {
		t.Errorf("history url = %q", summary.History.URL)
	}
	if summary.History.ItemsScraped != 6 {
		t.Errorf("items = %d, want 6", summary.History.ItemsScraped)
	}
	if !summary.RagPromptDue {
		t.Error("expected RAG prompt after first successful run")
	}

	w = doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/results", "")
	var results struct {
		Results         []workspace.URLResult `json:"results"`
		IsScrapingError bool                  `json:"is_scraping_error"`
	}
	decodeBody(t, w, &results)
	if len(results.Results) != 2 {
		t.Errorf("results = %d, want 2", len(results.Results))
	}
	if results.IsScrapingError {
		t.Error("unexpected error flag")
	}
}

func TestExportResult(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")
	addURL(t, h, p.ID, "https://shop.example.com/a", "price")
	if w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/scrape", ""); w.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", w.Code)
	}

	w := doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/results/1/export?format=csv", "")
	if w.Code != http.StatusOK {
		t.Fatalf("export status = %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	cd := w.Header().Get("Content-Disposition")
	if !strings.Contains(cd, "attachment") || !strings.Contains(cd, "_1.csv") {
		t.Errorf("content disposition = %q", cd)
	}
	if !strings.HasPrefix(w.Body.String(), "Title,Value") {
		t.Errorf("body = %q", w.Body.String())
	}

	// Default format comes from settings (json unless changed).
	w = doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/results/1/export", "")
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("default content type = %q", ct)
	}

	w = doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/results/9/export", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("out-of-range export status = %d, want 404", w.Code)
	}
	w = doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/results/1/export?format=xml", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", w.Code)
	}
}

func TestHistoryPagination(t *testing.T) {
	h, ws := setupHandler(t)
	p := createProject(t, h, "Shoes")
	for i := 0; i < 10; i++ {
		if _, err := ws.AppendHistory(p.ID, workspace.HistoryItem{URL: fmt.Sprintf("run-%d", i), Status: "Success"}); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	w := doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/history?page=3", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		Items []workspace.HistoryItem `json:"items"`
		Page  struct {
			Current    int `json:"current"`
			TotalPages int `json:"total_pages"`
		} `json:"page"`
	}
	decodeBody(t, w, &resp)
	if resp.Page.TotalPages != 3 || resp.Page.Current != 3 {
		t.Errorf("page = %+v", resp.Page)
	}
	if len(resp.Items) != 2 {
		t.Errorf("items on last page = %d, want 2", len(resp.Items))
	}
}

func TestDeleteHistoryRequiresConfirm(t *testing.T) {
	h, ws := setupHandler(t)
	p := createProject(t, h, "Shoes")
	item, err := ws.AppendHistory(p.ID, workspace.HistoryItem{URL: "run", Status: "Success"})
	if err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	url := fmt.Sprintf("/projects/%s/history/%d", p.ID, item.ID)
	if w := doJSON(t, h, http.MethodDelete, url, ""); w.Code != http.StatusBadRequest {
		t.Errorf("unconfirmed status = %d, want 400", w.Code)
	}
	if w := doJSON(t, h, http.MethodDelete, url+"?confirm=true", ""); w.Code != http.StatusNoContent {
		t.Errorf("confirmed status = %d, want 204", w.Code)
	}
}

func TestRagDecisionEndpoint(t *testing.T) {
	h, ws := setupHandler(t)
	p := createProject(t, h, "Shoes")

	w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/rag", `{"decision":"enable"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		RagStatus string `json:"rag_status"`
	}
	decodeBody(t, w, &resp)
	if resp.RagStatus != string(workspace.RagEnabled) {
		t.Errorf("rag_status = %q, want enabled", resp.RagStatus)
	}
	if !ws.RagEnabled(p.ID) {
		t.Error("store does not report consent")
	}

	w = doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/rag", `{"decision":"maybe"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("unknown decision status = %d, want 400", w.Code)
	}
}

func TestRagDismissEndpoint(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")

	w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/rag", `{"decision":"dismiss"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp struct {
		RagStatus string `json:"rag_status"`
	}
	decodeBody(t, w, &resp)
	if resp.RagStatus != string(workspace.RagPromptLater) {
		t.Errorf("rag_status = %q, want prompt_later", resp.RagStatus)
	}
}

func TestChatEndpoint(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")

	body := fmt.Sprintf(`{"project_id":%q,"message":"what did we find?"}`, p.ID)
	w := doJSON(t, h, http.MethodPost, "/chat", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp chatResponse
	decodeBody(t, w, &resp)
	if resp.RagUsed {
		t.Error("rag_used = true without consent")
	}
	if !strings.Contains(resp.Reply.Text, "what did we find?") {
		t.Errorf("reply = %q", resp.Reply.Text)
	}

	// Transcript: welcome + user + system.
	w = doJSON(t, h, http.MethodGet, "/projects/"+p.ID+"/chat", "")
	var transcript struct {
		Messages []chat.Message `json:"messages"`
	}
	decodeBody(t, w, &transcript)
	if len(transcript.Messages) != 3 {
		t.Errorf("messages = %d, want 3", len(transcript.Messages))
	}
}

func TestChatWithRagCitesScrapedContent(t *testing.T) {
	h, _ := setupHandler(t)
	p := createProject(t, h, "Shoes")
	addURL(t, h, p.ID, "https://shop.example.com/a", "price")
	if w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/scrape", ""); w.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", w.Code)
	}
	if w := doJSON(t, h, http.MethodPost, "/projects/"+p.ID+"/rag", `{"decision":"enable"}`); w.Code != http.StatusOK {
		t.Fatalf("rag status = %d", w.Code)
	}

	body := fmt.Sprintf(`{"project_id":%q,"message":"title example"}`, p.ID)
	w := doJSON(t, h, http.MethodPost, "/chat", body)
	if w.Code != http.StatusOK {
		t.Fatalf("chat status = %d: %s", w.Code, w.Body.String())
	}
	var resp chatResponse
	decodeBody(t, w, &resp)
	if !resp.RagUsed {
		t.Fatal("rag_used = false after consent")
	}
	if !strings.Contains(resp.Reply.Text, "Using RAG with scraped content from project: Shoes") {
		t.Errorf("reply = %q", resp.Reply.Text)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	h, _ := setupHandler(t)

	w := doJSON(t, h, http.MethodGet, "/settings", "")
	var s settings.Settings
	decodeBody(t, w, &s)
	if s.DefaultExportFormat != "json" {
		t.Errorf("default format = %q, want json", s.DefaultExportFormat)
	}

	w = doJSON(t, h, http.MethodPut, "/settings", `{"openaiApiKey":"sk-1","defaultExportFormat":"csv"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("put status = %d: %s", w.Code, w.Body.String())
	}
	decodeBody(t, w, &s)
	if s.OpenAIAPIKey != "sk-1" || s.DefaultExportFormat != "csv" {
		t.Errorf("settings = %+v", s)
	}

	w = doJSON(t, h, http.MethodPut, "/settings", `{"defaultExportFormat":"xml"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid format status = %d, want 400", w.Code)
	}
}
