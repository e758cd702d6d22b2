package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

// Validation and run-state errors surfaced by StartScraping. The two
// validation errors additionally set the project's scrape error flag with
// a user-facing message; ErrRunInProgress never touches project state.
var (
	ErrEmptyQueue        = errors.New("no urls to scrape")
	ErrMissingConditions = errors.New("url entries missing scraping conditions")
	ErrRunInProgress     = errors.New("a scrape run is already in progress for this project")
)

const (
	msgEmptyQueue        = "No URLs to scrape. Please add at least one URL to the project."
	msgMissingConditions = "Error: Some URLs seem to be missing scraping conditions."
)

// defaultConcurrency bounds parallel engine calls per run.
const defaultConcurrency = 4

// ProjectStore abstracts the workspace operations the orchestrator needs.
// Implemented by workspace.Store.
type ProjectStore interface {
	Project(id string) (workspace.Project, error)
	SetScrapeError(projectID, message string) error
	CommitRun(projectID string, results []workspace.URLResult, item workspace.HistoryItem) (workspace.RunSummary, error)
}

// ContentSink receives the results of every successful run, such as the
/// RAG corpus. Eligibility filtering happens at retrieval time, not here:
// enabling consent makes all past and future runs available at once.
type ContentSink interface {
	AddRun(projectID string, results []workspace.URLResult)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Orchestrator validates a project's URL queue, drives the engine, and
// commits the outcome to the workspace store. One run per project at a
// time; a second StartScraping against the same project is rejected.
type Orchestrator struct {
	store       ProjectStore
	engine      Engine
	sink        ContentSink // optional
	clock       Clock
	logger      *slog.Logger
	concurrency int

	mu      sync.Mutex
	running map[string]bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSink routes successful run results into sink.
func WithSink(sink ContentSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithClock substitutes the wall clock (for testing).
func WithClock(clock Clock) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithConcurrency bounds parallel engine calls per run.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// New creates an Orchestrator over the given store and engine.
func New(store ProjectStore, engine Engine, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:       store,
		engine:      engine,
		clock:       realClock{},
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
		running:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartScraping runs the full scrape workflow for a project:
// validate the queue, invoke the engine per URL, and commit the outcome
// atomically. Validation failures set the project's error flag and leave
// the queue and ledger untouched; there are no retries — the user corrects
// the queue and resubmits. The engine contract is all-or-nothing: if any
// target fails, no partial results are committed.
func (o *Orchestrator) StartScraping(ctx context.Context, projectID string) (workspace.RunSummary, error) {
	if err := o.acquire(projectID); err != nil {
		return workspace.RunSummary{}, err
	}
	defer o.release(projectID)

	p, err := o.store.Project(projectID)
	if err != nil {
		return workspace.RunSummary{}, err
	}

	// Validating.
	if len(p.URLs) == 0 {
		if err := o.store.SetScrapeError(projectID, msgEmptyQueue); err != nil {
			return workspace.RunSummary{}, err
		}
		return workspace.RunSummary{}, ErrEmptyQueue
	}
	for _, u := range p.URLs {
		if strings.TrimSpace(u.Conditions) == "" {
			if err := o.store.SetScrapeError(projectID, msgMissingConditions); err != nil {
				return workspace.RunSummary{}, err
			}
			return workspace.RunSummary{}, ErrMissingConditions
		}
	}

	// Running.
	started := o.clock.Now()
	results, err := o.scrapeAll(ctx, p.URLs)
	if err != nil {
		o.logger.Warn("scrape run failed", "project_id", projectID, "error", err)
		if serr := o.store.SetScrapeError(projectID, fmt.Sprintf("Scraping failed: %v", err)); serr != nil {
			return workspace.RunSummary{}, serr
		}
		return workspace.RunSummary{}, fmt.Errorf("scraping project %s: %w", projectID, err)
	}

	// Completed: commit queue statuses, result set, and ledger entry in
	// one atomic store transition.
	item := workspace.HistoryItem{
		Timestamp:    o.clock.Now().UTC(),
		URL:          summarizeURLs(p.URLs),
		DataSize:     formatDataSize(resultBytes(results)),
		ItemsScraped: countItems(results),
		Status:       "completed",
	}
	summary, err := o.store.CommitRun(projectID, results, item)
	if err != nil {
		return workspace.RunSummary{}, err
	}

	if o.sink != nil {
		o.sink.AddRun(projectID, summary.Results)
	}

	o.logger.Info("scrape run completed",
		"project_id", projectID,
		"urls", len(p.URLs),
		"items", item.ItemsScraped,
		"duration_ms", o.clock.Now().Sub(started).Milliseconds(),
	)
	return summary, nil
}

// Running reports whether a run is outstanding for the project.
func (o *Orchestrator) Running(projectID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running[projectID]
}

func (o *Orchestrator) acquire(projectID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running[projectID] {
		return ErrRunInProgress
	}
	o.running[projectID] = true
	return nil
}

func (o *Orchestrator) release(projectID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.running, projectID)
}

// scrapeAll invokes the engine once per queue entry with bounded
// concurrency. Results keep queue order regardless of completion order.
func (o *Orchestrator) scrapeAll(ctx context.Context, urls []workspace.URLEntry) ([]workspace.URLResult, error) {
	results := make([]workspace.URLResult, len(urls))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)

	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			fields, err := o.engine.Scrape(gCtx, Target{URL: u.URL, Conditions: u.Conditions})
			if err != nil {
				return fmt.Errorf("scraping %s: %w", u.URL, err)
			}
			results[i] = workspace.URLResult{
				URL:        u.URL,
				Conditions: u.Conditions,
				Fields:     fields,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func summarizeURLs(urls []workspace.URLEntry) string {
	if len(urls) == 1 {
		return urls[0].URL
	}
	return fmt.Sprintf("%d URLs scraped", len(urls))
}

func countItems(results []workspace.URLResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Fields)
	}
	return n
}

func resultBytes(results []workspace.URLResult) int {
	n := 0
	for _, r := range results {
		n += len(r.URL) + len(r.Conditions)
		for _, f := range r.Fields {
			n += len(f.Title) + len(f.Value)
		}
	}
	return n
}

func formatDataSize(bytes int) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
