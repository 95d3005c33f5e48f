package search

import "context"

// Result is one search hit. A hit either exposes a content text field or is kept
// as its raw record; Text always yields something printable.
type Result struct {
	Title   string `json:"title,omitempty"`
	URL     string `json:"url,omitempty"`
	Content string `json:"content,omitempty"`
	Raw     string `json:"raw,omitempty"`
	hasText bool
}

// TextResult builds a hit that carried a content field.
func TextResult(title, url, content string) Result {
	return Result{Title: title, URL: url, Content: content, hasText: true}
}

// RawResult builds a hit without a content field; raw is its record coerced to text.
func RawResult(raw string) Result {
	return Result{Raw: raw}
}

// HasText reports whether the hit carried a content field.
func (r Result) HasText() bool { return r.hasText }

// Text returns the content, or the raw record when there was none.
func (r Result) Text() string {
	if r.hasText {
		return r.Content
	}
	return r.Raw
}

// Provider executes a web search.
type Provider interface {
	Search(ctx context.Context, query string, count int) ([]Result, error)
}
