package db

// KNNQuery is the input for vector similarity search. TagFilters restricts
// candidates before the KNN ranking; keys are index tag field names. An empty
// map means no pre-filter.
type KNNQuery struct {
	IndexName    string
	TagFilters   map[string]string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
