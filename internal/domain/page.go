package domain

// SearchHit is one ranked document returned by the index.
type SearchHit struct {
	ID     int64
	Score  float64
	Source map[string]any
}

// SearchResult is a page of hits plus the total match count.
type SearchResult struct {
	Hits  []SearchHit
	Total int64
}

// Bundle is a hit being rehydrated into its public representation. PK must
// be set before any dehydration step runs.
type Bundle struct {
	PK   int64
	Hit  SearchHit
	Data map[string]any
}

// PageMeta is the pagination envelope.
type PageMeta struct {
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
	TotalCount int64   `json:"total_count"`
	Next       *string `json:"next"`
	Previous   *string `json:"previous"`
}

// Page is one page of rehydrated results.
type Page struct {
	Meta        PageMeta         `json:"meta"`
	Objects     []map[string]any `json:"objects"`
	ResourceURI string           `json:"resource_uri"`
	Featured    []map[string]any `json:"featured,omitempty"`
}
