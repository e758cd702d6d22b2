package workspace

// AppendHistory records a completed run in the project's ledger. The item
// id is assigned here (max+1 within the project) and the item is prepended:
// the ledger is ordered newest first. Items are immutable once recorded.
func (s *Store) AppendHistory(projectID string, item HistoryItem) (HistoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return HistoryItem{}, ErrProjectNotFound
	}
	item.ID = nextHistoryID(p.History)
	p.History = append([]HistoryItem{item}, p.History...)
	return item, nil
}

// DeleteHistory removes a ledger item by id. A missing item id is a no-op.
func (s *Store) DeleteHistory(projectID string, historyID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrProjectNotFound
	}
	for i, item := range p.History {
		if item.ID == historyID {
			p.History = append(p.History[:i], p.History[i+1:]...)
			break
		}
	}
	return nil
}

func nextHistoryID(items []HistoryItem) int {
	max := 0
	for _, it := range items {
		if it.ID > max {
			max = it.ID
		}
	}
	return max + 1
}
