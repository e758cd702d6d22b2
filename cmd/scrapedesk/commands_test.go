package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/scrapedesk/scrapedesk/internal/config"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func TestProjectCreate(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects": `{"id":"p-1","name":"Shoes Research"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/projects", map[string]string{"name": "Shoes Research"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["id"] != "p-1" {
		t.Errorf("id = %q, want p-1", result["id"])
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["name"] != "Shoes Research" {
		t.Errorf("body.name = %v, want Shoes Research", body["name"])
	}
}

func TestResolveProjectID_ExplicitFlag(t *testing.T) {
	ts := newTestServer(t, nil)

	id, err := resolveProjectID(ctx, ts.client(), "p-explicit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p-explicit" {
		t.Errorf("id = %q, want p-explicit", id)
	}
	if len(ts.requests) != 0 {
		t.Errorf("explicit flag should not hit the server, got %d requests", len(ts.requests))
	}
}

func TestResolveProjectID_Active(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /workspace/active": `{"active_id":"p-active"}`,
	})

	id, err := resolveProjectID(ctx, ts.client(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "p-active" {
		t.Errorf("id = %q, want p-active", id)
	}
}

func TestResolveProjectID_NoActive(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /workspace/active": `{"active_id":""}`,
	})

	_, err := resolveProjectID(ctx, ts.client(), "")
	if err == nil {
		t.Fatal("expected error when no project is active")
	}
	if !strings.Contains(err.Error(), "no active project") {
		t.Errorf("error = %q, want it to mention 'no active project'", err.Error())
	}
}

func TestURLAddRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects/p-1/urls": `{"id":1,"url":"https://example.com","conditions":"prices"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/projects/p-1/urls", map[string]string{
		"url":        "https://example.com",
		"conditions": "prices",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var entry struct {
		ID  int    `json:"id"`
		URL string `json:"url"`
	}
	if err := decodeJSON(resp, &entry); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if entry.ID != 1 {
		t.Errorf("id = %d, want 1", entry.ID)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(ts.requests[0].Body), &body); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if body["conditions"] != "prices" {
		t.Errorf("body.conditions = %v, want prices", body["conditions"])
	}
}

func TestScrapeEmptyQueueError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(422)
		w.Write([]byte(`{"error":{"message":"No URLs to scrape. Please add at least one URL to the project.","type":"invalid_request_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	resp, err := client.post(ctx, "/projects/p-1/scrape", nil)
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var summary any
	err = decodeJSON(resp, &summary)
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	if !strings.Contains(err.Error(), "No URLs to scrape") {
		t.Errorf("error = %q, want the queue message surfaced", err.Error())
	}
}

func TestHistoryListPaging(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /projects/p-1/history": `{"items":[{"id":3,"timestamp":"2026-08-29 10:00:00","url":"2 URLs scraped","data_size":"12.4KB","items_scraped":6,"status":"Success"}],"page":{"current":2,"total_pages":3,"total_items":10}}`,
	})

	client := ts.client()
	resp, err := client.get(ctx, "/projects/p-1/history?page=2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload struct {
		Items []struct {
			ID  int    `json:"id"`
			URL string `json:"url"`
		} `json:"items"`
		Page struct {
			Current    int `json:"current"`
			TotalPages int `json:"total_pages"`
		} `json:"page"`
	}
	if err := decodeJSON(resp, &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}

	if payload.Page.Current != 2 || payload.Page.TotalPages != 3 {
		t.Errorf("page = %+v, want current 2 of 3", payload.Page)
	}
	if len(payload.Items) != 1 || payload.Items[0].URL != "2 URLs scraped" {
		t.Errorf("items = %+v, want the aggregate entry", payload.Items)
	}
	if !strings.Contains(ts.requests[0].Path, "page=2") {
		t.Errorf("path = %q, want page=2 query", ts.requests[0].Path)
	}
}

func TestRagDecisionRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /projects/p-1/rag": `{"rag_status":"enabled"}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/projects/p-1/rag", map[string]string{"decision": "enable"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result map[string]string
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if result["rag_status"] != "enabled" {
		t.Errorf("rag_status = %q, want enabled", result["rag_status"])
	}
}

func TestChatRequest(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /chat": `{"reply":{"id":3,"text":"Processing your request with GPT-4o Mini: \"hello\"","sender":"system"},"rag_used":false}`,
	})

	client := ts.client()
	resp, err := client.post(ctx, "/chat", map[string]string{
		"project_id": "p-1",
		"message":    "hello",
		"model":      "gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var result struct {
		Reply struct {
			Text string `json:"text"`
		} `json:"reply"`
		RagUsed bool `json:"rag_used"`
	}
	if err := decodeJSON(resp, &result); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if !strings.Contains(result.Reply.Text, "GPT-4o Mini") {
		t.Errorf("reply = %q, want the model name in it", result.Reply.Text)
	}
}

func TestFilenameFromDisposition(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`attachment; filename="scraping_https___example_com_1.csv"`, "scraping_https___example_com_1.csv"},
		{`attachment; filename="a.json"`, "a.json"},
		{`attachment`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		got := filenameFromDisposition(tt.header)
		if got != tt.want {
			t.Errorf("filenameFromDisposition(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"project not found","type":"not_found"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, httpClient: ts.Client()}
	resp, err := client.get(ctx, "/projects/missing")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	if !strings.Contains(err.Error(), "project not found") {
		t.Errorf("error = %q, want the server message", err.Error())
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	client := ts.client()
	_, err := client.get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4600
	cfg.Scrape.MaxConcurrency = 4

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4600" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4600 in ShowAll output")
	}
}
