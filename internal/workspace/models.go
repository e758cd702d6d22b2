package workspace

import "time"

// RagStatus is the per-project consent state for using scraped content
// in chat responses.
type RagStatus string

const (
	RagUnprompted  RagStatus = "unprompted"
	RagEnabled     RagStatus = "enabled"
	RagDisabled    RagStatus = "disabled"
	RagPromptLater RagStatus = "prompt_later"
)

// RagDecision is a user's answer to the consent prompt.
type RagDecision string

const (
	DecisionEnable  RagDecision = "enable"
	DecisionDisable RagDecision = "disable"
	DecisionLater   RagDecision = "later"
)

// URLStatus tracks a scrape target through its lifecycle. Entries start
// pending and only the scrape orchestrator moves them to completed or failed.
type URLStatus string

const (
	URLPending   URLStatus = "pending"
	URLCompleted URLStatus = "completed"
	URLFailed    URLStatus = "failed"
)

// URLEntry is a single scrape target within a project. IDs are unique and
// strictly increasing within their project.
type URLEntry struct {
	ID         int       `json:"id"`
	URL        string    `json:"url"`
	Conditions string    `json:"conditions"`
	Status     URLStatus `json:"status"`
}

// HistoryItem records one completed scrape run. Items are immutable after
// creation; the ledger only supports append and delete.
type HistoryItem struct {
	ID           int       `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	URL          string    `json:"url"`
	DataSize     string    `json:"data_size"`
	ItemsScraped int       `json:"items_scraped"`
	Status       string    `json:"status"`
}

// FieldValue is one extracted field from a scraped page.
type FieldValue struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// URLResult holds the extracted fields for a single URL of a run. The full
// result set for a run is []URLResult, ordered like the URL queue. Results
// are transient: they live until the next run or until the queue is cleared.
type URLResult struct {
	URL        string       `json:"url"`
	Conditions string       `json:"conditions"`
	Fields     []FieldValue `json:"fields"`
}

// Project is the unit of work: a named workspace grouping a URL queue,
// the latest result set, a history ledger, and RAG consent state.
type Project struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	URLs            []URLEntry    `json:"urls"`
	Results         []URLResult   `json:"results,omitempty"`
	IsScrapingError bool          `json:"is_scraping_error"`
	ErrorMessage    string        `json:"error_message"`
	History         []HistoryItem `json:"history"`
	CreatedAt       time.Time     `json:"created_at"`
	RagStatus       RagStatus     `json:"rag_status"`
}

// RunSummary describes the committed outcome of a scrape run.
type RunSummary struct {
	History      HistoryItem `json:"history"`
	Results      []URLResult `json:"results"`
	RagPromptDue bool        `json:"rag_prompt_due"`
}
