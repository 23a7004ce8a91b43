package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName   string
	VectorField string
	Vector      []float32
	K           int
	// Tags restricts candidates to hashes whose tag field matches any of the values.
	Tags         *TagFilter
	ReturnFields []string
}

// TagFilter matches a TAG field against a set of values (OR).
type TagFilter struct {
	Field  string
	Values []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is cosine similarity (1 - distance).
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
