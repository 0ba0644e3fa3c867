package models

// Result is a single hit returned by a web search provider.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}
