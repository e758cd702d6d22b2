package scrape

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

// Target is one (url, conditions) pair handed to the engine.
type Target struct {
	URL        string
	Conditions string
}

// Engine is the scraping collaborator. The orchestrator calls Scrape once
// per queued URL; an error from any call fails the whole run and nothing
// is committed. Implementations must honor ctx cancellation.
type Engine interface {
	Scrape(ctx context.Context, target Target) ([]workspace.FieldValue, error)
}

// SimulatedEngine stands in for a real scraping engine. It produces three
// extracted fields per URL, derived deterministically from the URL so runs
// are reproducible, after an optional artificial latency.
type SimulatedEngine struct {
	// Latency is slept per target to model network time. Zero means no wait.
	Latency time.Duration
}

func (e *SimulatedEngine) Scrape(ctx context.Context, target Target) ([]workspace.FieldValue, error) {
	if e.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.Latency):
		}
	}

	h := fnv.New32a()
	h.Write([]byte(target.URL))
	seed := h.Sum32()

	fields := []workspace.FieldValue{
		{Title: "Title Example 1", Value: fmt.Sprintf("Value %d", seed%100)},
		{Title: "Price Example", Value: fmt.Sprintf("$%d.%02d", seed%90+10, seed%100)},
		{Title: "Description Snippet", Value: descriptionFor(target)},
	}
	return fields, nil
}

func descriptionFor(target Target) string {
	wanted := strings.Split(target.Conditions, ",")
	for i := range wanted {
		wanted[i] = strings.TrimSpace(wanted[i])
	}
	return fmt.Sprintf("Extracted %s from %s", strings.Join(wanted, ", "), target.URL)
}
