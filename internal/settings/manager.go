package settings

import (
	"fmt"
	"sync"
	"time"
)

// Settings keys. The API key values are stored verbatim; callers must not
// log them.
const (
	KeyOpenAIAPIKey        = "openaiApiKey"
	KeyGeminiAPIKey        = "geminiApiKey"
	KeyDefaultExportFormat = "defaultExportFormat"
)

// DefaultExportFormat applies when the user never chose one.
const DefaultExportFormat = "json"

var validExportFormats = map[string]bool{"json": true, "csv": true}

// Settings is the assembled view of all user preferences.
type Settings struct {
	OpenAIAPIKey        string `json:"openaiApiKey"`
	GeminiAPIKey        string `json:"geminiApiKey"`
	DefaultExportFormat string `json:"defaultExportFormat"`
}

// SettingsStore defines the storage operations the Manager needs.
// Implemented by Store.
type SettingsStore interface {
	SetValue(key, value string) error
	GetValue(key string) (string, error)
	GetAllValues() (map[string]string, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Manager provides cached, structured access to the settings stored in
// SQLite.
type Manager struct {
	store SettingsStore
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Settings
	cachedAt time.Time
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store SettingsStore) *Manager {
	return &Manager{
		store: store,
		clock: realClock{},
		ttl:   60 * time.Second,
	}
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store SettingsStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{store: store, clock: clock, ttl: ttl}
}

// Get reads all settings from storage (or cache). Missing keys fall back
// to their defaults.
func (m *Manager) Get() (Settings, error) {
	m.mu.RLock()
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		s := *m.cached
		m.mu.RUnlock()
		return s, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock.
	if m.cached != nil && m.clock.Now().Before(m.cachedAt.Add(m.ttl)) {
		return *m.cached, nil
	}

	values, err := m.store.GetAllValues()
	if err != nil {
		return Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	s := buildSettings(values)
	m.cached = &s
	m.cachedAt = m.clock.Now()
	return s, nil
}

// Set persists a settings key and invalidates the cache.
func (m *Manager) Set(key, value string) error {
	switch key {
	case KeyOpenAIAPIKey, KeyGeminiAPIKey:
	case KeyDefaultExportFormat:
		if !validExportFormats[value] {
			return fmt.Errorf("invalid export format %q (valid: json, csv)", value)
		}
	default:
		return fmt.Errorf("unknown settings key %q", key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.SetValue(key, value); err != nil {
		return fmt.Errorf("setting key %q: %w", key, err)
	}
	m.cached = nil
	return nil
}

// Update persists every field of s and invalidates the cache.
func (m *Manager) Update(s Settings) error {
	if s.DefaultExportFormat == "" {
		s.DefaultExportFormat = DefaultExportFormat
	}
	if !validExportFormats[s.DefaultExportFormat] {
		return fmt.Errorf("invalid export format %q (valid: json, csv)", s.DefaultExportFormat)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	pairs := map[string]string{
		KeyOpenAIAPIKey:        s.OpenAIAPIKey,
		KeyGeminiAPIKey:        s.GeminiAPIKey,
		KeyDefaultExportFormat: s.DefaultExportFormat,
	}
	for key, value := range pairs {
		if err := m.store.SetValue(key, value); err != nil {
			return fmt.Errorf("setting key %q: %w", key, err)
		}
	}
	m.cached = nil
	return nil
}

func buildSettings(values map[string]string) Settings {
	s := Settings{
		OpenAIAPIKey:        values[KeyOpenAIAPIKey],
		GeminiAPIKey:        values[KeyGeminiAPIKey],
		DefaultExportFormat: values[KeyDefaultExportFormat],
	}
	if s.DefaultExportFormat == "" {
		s.DefaultExportFormat = DefaultExportFormat
	}
	return s
}
