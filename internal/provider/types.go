package provider

// SearchRequest is the search endpoint's request body. Field names
// follow the provider's wire format.
type SearchRequest struct {
	Query      string         `json:"query"`
	Type       string         `json:"type,omitempty"`
	NumResults int            `json:"numResults,omitempty"`
	Contents   SearchContents `json:"contents"`
}

type SearchContents struct {
	Text      bool         `json:"text"`
	Context   *ContextSpec `json:"context,omitempty"`
	Livecrawl string       `json:"livecrawl,omitempty"`
}

type ContextSpec struct {
	MaxCharacters int `json:"maxCharacters,omitempty"`
}

// ContentsRequest is the contents endpoint's request body; IDs are
// URLs.
type ContentsRequest struct {
	IDs      []string         `json:"ids"`
	Contents DocumentContents `json:"contents"`
}

type DocumentContents struct {
	Text      *TextSpec `json:"text,omitempty"`
	Livecrawl string    `json:"livecrawl,omitempty"`
}

type TextSpec struct {
	MaxCharacters int `json:"maxCharacters,omitempty"`
}

// Result is one document. Only URL and Text are read by the licensing
// subsystem; the rest passes through to the caller.
type Result struct {
	ID            string  `json:"id,omitempty"`
	Title         string  `json:"title,omitempty"`
	URL           string  `json:"url"`
	PublishedDate string  `json:"publishedDate,omitempty"`
	Author        string  `json:"author,omitempty"`
	Text          string  `json:"text,omitempty"`
	Summary       string  `json:"summary,omitempty"`
	Image         string  `json:"image,omitempty"`
	Favicon       string  `json:"favicon,omitempty"`
	Score         float64 `json:"score,omitempty"`
}

type SearchResponse struct {
	RequestID          string   `json:"requestId,omitempty"`
	ResolvedSearchType string   `json:"resolvedSearchType,omitempty"`
	Context            string   `json:"context,omitempty"`
	Results            []Result `json:"results"`
}

type ContentsResponse struct {
	RequestID string   `json:"requestId,omitempty"`
	Results   []Result `json:"results"`
}
