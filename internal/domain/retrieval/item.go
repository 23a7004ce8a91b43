package retrieval

import "github.com/kailas-cloud/docrag/internal/domain/chunk"

// Item is one entry of a context set: a chunk reference with its similarity and 1-based rank.
type Item struct {
	DocumentID   string
	DocumentName string
	Seq          int
	Start        int
	End          int
	Text         string
	Fingerprint  string
	Score        float64
	Rank         int
}

// NewItem builds a context item from a scored chunk.
func NewItem(s chunk.Scored, rank int, documentName string) Item {
	return Item{
		DocumentID:   s.Chunk.DocumentID(),
		DocumentName: documentName,
		Seq:          s.Chunk.Seq(),
		Start:        s.Chunk.Start(),
		End:          s.Chunk.End(),
		Text:         s.Chunk.Text(),
		Fingerprint:  s.Chunk.Fingerprint(),
		Score:        s.Score,
		Rank:         rank,
	}
}

// Sources returns the distinct document names of items in rank order.
func Sources(items []Item) []string {
	seen := make(map[string]struct{}, len(items))
	var out []string
	for _, it := range items {
		name := it.DocumentName
		if name == "" {
			name = it.DocumentID
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
