package workspace

import "strings"

// AddURL appends a new pending entry to the project's URL queue. Both the
// URL and the extraction conditions must be non-blank after trimming. The
// new entry id is max(existing ids)+1, or 1 for an empty queue. Adding a
// URL also clears any stale scrape error on the project.
func (s *Store) AddURL(projectID, url, conditions string) (URLEntry, error) {
	url = strings.TrimSpace(url)
	conditions = strings.TrimSpace(conditions)
	if url == "" {
		return URLEntry{}, &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	if conditions == "" {
		return URLEntry{}, &ValidationError{Field: "conditions", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return URLEntry{}, ErrProjectNotFound
	}

	entry := URLEntry{
		ID:         nextURLID(p.URLs),
		URL:        url,
		Conditions: conditions,
		Status:     URLPending,
	}
	p.URLs = append(p.URLs, entry)
	p.IsScrapingError = false
	p.ErrorMessage = ""
	return entry, nil
}

// RemoveAllURLs clears the project's URL queue, its result set, and any
// scrape error state. Entries are only ever destroyed together.
func (s *Store) RemoveAllURLs(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrProjectNotFound
	}
	p.URLs = []URLEntry{}
	p.Results = nil
	p.IsScrapingError = false
	p.ErrorMessage = ""
	return nil
}

func nextURLID(entries []URLEntry) int {
	max := 0
	for _, e := range entries {
		if e.ID > max {
			max = e.ID
		}
	}
	return max + 1
}
