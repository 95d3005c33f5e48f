package ai

// Response is what a LanguageModel returns. Providers decide the variant at the
// client boundary so callers never probe the payload shape.
type Response interface {
	Text() string
}

// TextResponse carries the content field of a well-formed reply.
type TextResponse struct {
	Content string
}

func (r TextResponse) Text() string { return r.Content }

// RawResponse carries the full string form of a reply that exposed no text field.
type RawResponse struct {
	Raw string
}

func (r RawResponse) Text() string { return r.Raw }
