package workspace

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store is the top-level registry of projects and the only mutation
// surface over them. Every method either fully applies or fully rejects;
// no partial state is ever visible. All methods are safe for concurrent
// use, and each call is atomic with respect to the others.
//
// Project state lives only in memory for the lifetime of the process.
type Store struct {
	mu       sync.RWMutex
	clock    Clock
	projects map[string]*Project
	order    []string // creation order of project ids
	activeID string

	// At most one consent prompt may be open at a time, scoped to a
	// single project id. Empty means no prompt is open.
	ragPromptID string
}

// NewStore creates an empty Store using the wall clock.
func NewStore() *Store {
	return NewStoreWithClock(realClock{})
}

// NewStoreWithClock creates an empty Store with a custom clock (for testing).
func NewStoreWithClock(clock Clock) *Store {
	return &Store{
		clock:    clock,
		projects: make(map[string]*Project),
	}
}

// CreateProject allocates a new project with the given name and makes it
// the active project. The name must be non-empty after trimming.
func (s *Store) CreateProject(name string) (Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Project{}, &ValidationError{Field: "name", Reason: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p := &Project{
		ID:        uuid.New().String(),
		Name:      name,
		URLs:      []URLEntry{},
		History:   []HistoryItem{},
		CreatedAt: s.clock.Now().UTC(),
		RagStatus: RagUnprompted,
	}
	s.projects[p.ID] = p
	s.order = append(s.order, p.ID)
	s.activeID = p.ID
	return cloneProject(p), nil
}

// SelectProject sets the active project. Unknown ids are a no-op.
func (s *Store) SelectProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; ok {
		s.activeID = id
	}
}

// ClearActive drops the active-project selection.
func (s *Store) ClearActive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = ""
}

// ActiveID returns the id of the active project, or "" when none is selected.
func (s *Store) ActiveID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// Project returns a snapshot of the project with the given id.
func (s *Store) Project(id string) (Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrProjectNotFound
	}
	return cloneProject(p), nil
}

// Projects returns snapshots of all projects in creation order.
func (s *Store) Projects() []Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Project, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneProject(s.projects[id]))
	}
	return out
}

// DeleteProject removes a project. If it was active, the active selection
// is cleared; if a consent prompt was open for it, the prompt is closed.
func (s *Store) DeleteProject(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.projects[id]; !ok {
		return ErrProjectNotFound
	}
	delete(s.projects, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.activeID == id {
		s.activeID = ""
	}
	if s.ragPromptID == id {
		s.ragPromptID = ""
	}
	return nil
}

// RenameProject trims and applies a new name. An empty result is a no-op.
func (s *Store) RenameProject(id, newName string) error {
	newName = strings.TrimSpace(newName)

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return ErrProjectNotFound
	}
	if newName == "" {
		return nil
	}
	p.Name = newName
	return nil
}

// cloneProject returns a deep copy so callers cannot mutate store state
// except through Store methods.
func cloneProject(p *Project) Project {
	out := *p
	out.URLs = append([]URLEntry(nil), p.URLs...)
	out.History = append([]HistoryItem(nil), p.History...)
	if p.Results != nil {
		out.Results = make([]URLResult, len(p.Results))
		for i, r := range p.Results {
			rc := r
			rc.Fields = append([]FieldValue(nil), r.Fields...)
			out.Results[i] = rc
		}
	}
	return out
}
