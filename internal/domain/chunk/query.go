package chunk

import (
	"math"
	"sort"
)

// SearchQuery asks a store for the K chunks most similar to Vector.
// An empty DocumentIDs searches every document.
type SearchQuery struct {
	Vector      []float32
	K           int
	DocumentIDs []string
}

// InScope reports whether documentID passes the query's document filter.
func (q SearchQuery) InScope(documentID string) bool {
	if len(q.DocumentIDs) == 0 {
		return true
	}
	for _, id := range q.DocumentIDs {
		if id == documentID {
			return true
		}
	}
	return false
}

// Sort orders results in place with Less.
func Sort(results []Scored) {
	sort.SliceStable(results, func(i, j int) bool { return Less(results[i], results[j]) })
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero vector
// or the lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
