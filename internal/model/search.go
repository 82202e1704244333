package model

// SourceManual marks a search entry synthesized from the typed text
// rather than returned by the server.
const SourceManual = "manual"

// SearchResult is one autocomplete response.
type SearchResult struct {
	Query     string             `json:"query" yaml:"query"`
	Timestamp string             `json:"timestamp" yaml:"timestamp"`
	Results   []SearchResultItem `json:"results" yaml:"results"`
}

// SearchResultItem is a single contact or group returned by autocomplete.
type SearchResultItem struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Source  string `json:"source" yaml:"source"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
}

// Label returns the text to show for the item.
func (i SearchResultItem) Label() string {
	if i.Display != "" {
		return i.Display
	}
	if i.Name != "" {
		return i.Name
	}
	return i.ID
}
