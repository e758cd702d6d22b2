package settings

import (
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetValue(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetValue(KeyDefaultExportFormat, "csv"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	got, err := s.GetValue(KeyDefaultExportFormat)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "csv" {
		t.Errorf("value = %q, want csv", got)
	}
}

func TestGetValueNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetValue("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSetValueUpsert(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetValue(KeyOpenAIAPIKey, "sk-one"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := s.SetValue(KeyOpenAIAPIKey, "sk-two"); err != nil {
		t.Fatalf("SetValue (second): %v", err)
	}
	got, err := s.GetValue(KeyOpenAIAPIKey)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if got != "sk-two" {
		t.Errorf("value = %q, want sk-two", got)
	}
}

func TestGetAllValues(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetValue(KeyOpenAIAPIKey, "sk-test"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := s.SetValue(KeyGeminiAPIKey, "gm-test"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	all, err := s.GetAllValues()
	if err != nil {
		t.Fatalf("GetAllValues: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}
	if all[KeyOpenAIAPIKey] != "sk-test" || all[KeyGeminiAPIKey] != "gm-test" {
		t.Errorf("values = %v", all)
	}
}
