package chat

// Model describes one selectable AI model.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultModel is used when a chat request does not name a model.
const DefaultModel = "gpt-4o-mini"

var catalog = []Model{
	{ID: "gpt-4o-mini", Name: "GPT-4o Mini", Description: "Faster, more efficient version"},
	{ID: "gemini/gemini-2.0-flash", Name: "gemini/gemini-2.0-flash", Description: "Google's multimodal AI model"},
}

// Catalog returns the selectable models.
func Catalog() []Model {
	out := make([]Model, len(catalog))
	copy(out, catalog)
	return out
}

// DisplayName resolves a model id to its display name.
func DisplayName(id string) string {
	for _, m := range catalog {
		if m.ID == id {
			return m.Name
		}
	}
	return "Unknown Model"
}
