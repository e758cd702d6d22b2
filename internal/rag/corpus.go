// Package rag holds the in-memory corpus of scraped content and the
// retriever that selects relevant snippets for chat augmentation.
//
// The corpus receives every successful scrape run regardless of consent
// state; consent is enforced at retrieval time. Enabling consent therefore
// makes all previously collected runs available immediately, and disabling
// it hides them without discarding anything.
package rag

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/scrapedesk/scrapedesk/internal/workspace"
)

// Snippet is one retrievable fragment of scraped content.
type Snippet struct {
	URL   string
	Text  string
	Score float64
}

// Corpus stores scraped snippets per project. It implements the
// orchestrator's content sink.
type Corpus struct {
	mu       sync.RWMutex
	snippets map[string][]Snippet
}

// NewCorpus creates an empty Corpus.
func NewCorpus() *Corpus {
	return &Corpus{snippets: make(map[string][]Snippet)}
}

// AddRun ingests the results of a completed scrape run. Each extracted
// field becomes one snippet in "Title: Value" form. A new run replaces
// the project's previous snippets, matching how a run replaces the
// project's result set.
func (c *Corpus) AddRun(projectID string, results []workspace.URLResult) {
	var snippets []Snippet
	for _, res := range results {
		for _, f := range res.Fields {
			snippets = append(snippets, Snippet{
				URL:  res.URL,
				Text: fmt.Sprintf("%s: %s", f.Title, f.Value),
			})
		}
	}

	c.mu.Lock()
	c.snippets[projectID] = snippets
	c.mu.Unlock()
}

// DropProject discards all snippets for a deleted project.
func (c *Corpus) DropProject(projectID string) {
	c.mu.Lock()
	delete(c.snippets, projectID)
	c.mu.Unlock()
}

// Size returns the number of snippets held for a project.
func (c *Corpus) Size(projectID string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.snippets[projectID])
}

// search returns the project's snippets scored against query terms,
// best first. Snippets that share no term with the query score zero
// and are dropped.
func (c *Corpus) search(projectID, query string, topK int) []Snippet {
	terms := tokenize(query)

	c.mu.RLock()
	stored := c.snippets[projectID]
	c.mu.RUnlock()

	var scored []Snippet
	for _, s := range stored {
		score := overlapScore(terms, tokenize(s.Text))
		if score <= 0 {
			continue
		}
		s.Score = score
		scored = append(scored, s)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// tokenize lowercases and splits text into terms, trimming common
// punctuation.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// overlapScore counts query terms present in the snippet, normalized by
// query length so scores stay in [0, 1].
func overlapScore(queryTerms, snippetTerms []string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(snippetTerms))
	for _, t := range snippetTerms {
		set[t] = struct{}{}
	}
	hits := 0
	for _, t := range queryTerms {
		if _, ok := set[t]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}
