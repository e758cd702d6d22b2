package workspace

// The two methods below are the orchestrator's commit surface. Each is a
// single atomic transition so a reader never observes a half-applied run.

// SetScrapeError flags a rejected or failed run on the project. The URL
// queue and the history ledger are left untouched; any previous result
// set is cleared.
func (s *Store) SetScrapeError(projectID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrProjectNotFound
	}
	p.Results = nil
	p.IsScrapingError = true
	p.ErrorMessage = message
	return nil
}

// CommitRun applies the outcome of a successful scrape run in one step:
// every queue entry becomes completed, the result set is replaced, the
// history item is assigned an id and prepended, prior error state is
// cleared unconditionally, and the consent prompt trigger is evaluated.
func (s *Store) CommitRun(projectID string, results []URLResult, item HistoryItem) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return RunSummary{}, ErrProjectNotFound
	}

	for i := range p.URLs {
		p.URLs[i].Status = URLCompleted
	}
	p.Results = results
	p.IsScrapingError = false
	p.ErrorMessage = ""

	item.ID = nextHistoryID(p.History)
	p.History = append([]HistoryItem{item}, p.History...)

	promptDue := s.triggerRagPrompt(p)

	return RunSummary{
		History:      item,
		Results:      cloneProject(p).Results,
		RagPromptDue: promptDue,
	}, nil
}
