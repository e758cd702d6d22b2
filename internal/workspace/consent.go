package workspace

import "fmt"

// The consent workflow is a small state machine over Project.RagStatus:
//
//	unprompted --enable--> enabled
//	unprompted --disable--> disabled
//	unprompted --later--> prompt_later
//	unprompted --dismiss--> prompt_later
//	prompt_later --dismiss--> prompt_later
//
// enabled and disabled are terminal in practice: a successful scrape only
// re-opens the prompt while the status is unprompted or prompt_later.

// RagPrompt returns the project id the consent prompt is currently open
// for, if any.
func (s *Store) RagPrompt() (projectID string, open bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ragPromptID, s.ragPromptID != ""
}

// ApplyRagDecision records the user's consent decision for a project and
// closes the prompt if it was open for that project.
func (s *Store) ApplyRagDecision(projectID string, decision RagDecision) error {
	var status RagStatus
	switch decision {
	case DecisionEnable:
		status = RagEnabled
	case DecisionDisable:
		status = RagDisabled
	case DecisionLater:
		status = RagPromptLater
	default:
		return fmt.Errorf("unknown rag decision %q", decision)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrProjectNotFound
	}
	p.RagStatus = status
	if s.ragPromptID == projectID {
		s.ragPromptID = ""
	}
	return nil
}

// DismissRagPrompt closes the prompt without a decision. A project that
// was never prompted before is downgraded to prompt_later so it will be
// asked again after its next successful scrape; any other status is left
// unchanged.
func (s *Store) DismissRagPrompt(projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ErrProjectNotFound
	}
	if p.RagStatus == RagUnprompted {
		p.RagStatus = RagPromptLater
	}
	if s.ragPromptID == projectID {
		s.ragPromptID = ""
	}
	return nil
}

// RagEnabled reports whether the project exists and its owner has
// granted consent to use scraped content for retrieval.
func (s *Store) RagEnabled(projectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[projectID]
	return ok && p.RagStatus == RagEnabled
}

// triggerRagPrompt opens the consent prompt for a project after a
// successful run when its status still allows prompting. A prompt already
// open for another project is replaced; the workflow is scoped to a
// single project at a time. Caller must hold s.mu.
func (s *Store) triggerRagPrompt(p *Project) bool {
	if p.RagStatus != RagUnprompted && p.RagStatus != RagPromptLater {
		return false
	}
	s.ragPromptID = p.ID
	return true
}
