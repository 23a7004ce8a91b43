package chunk

import (
	"fmt"
	"strconv"

	"github.com/kailas-cloud/docrag/internal/db"
	domchunk "github.com/kailas-cloud/docrag/internal/domain/chunk"
)

// Hash field names.
const (
	fieldDocumentID  = "document_id"
	fieldSeq         = "seq"
	fieldStart       = "start"
	fieldEnd         = "end"
	fieldText        = "text"
	fieldFingerprint = "fingerprint"
	fieldVector      = "vector"
)

var returnFields = []string{fieldDocumentID, fieldSeq, fieldStart, fieldEnd, fieldText, fieldFingerprint}

func buildIndex(dimensions int, hnsw HNSWConfig) (*db.IndexDefinition, error) {
	def, err := db.NewIndex(indexName()).
		Prefix(keyPrefix()).
		Tag(fieldDocumentID).
		Numeric(fieldSeq).
		VectorHNSW(fieldVector, dimensions, db.DistanceCosine, hnsw.M, hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("chunk index: %w", err)
	}
	return def, nil
}

// buildHashFields flattens a record for HSET. The vector is a FLOAT32 blob.
func buildHashFields(rec domchunk.Record) map[string]string {
	c := rec.Chunk
	return map[string]string{
		fieldDocumentID:  c.DocumentID(),
		fieldSeq:         strconv.Itoa(c.Seq()),
		fieldStart:       strconv.Itoa(c.Start()),
		fieldEnd:         strconv.Itoa(c.End()),
		fieldText:        c.Text(),
		fieldFingerprint: c.Fingerprint(),
		fieldVector:      string(db.VectorToBytes(rec.Vector)),
	}
}

// parseHashFields rebuilds a chunk from returned search fields.
func parseHashFields(m map[string]string) (domchunk.Chunk, error) {
	docID := m[fieldDocumentID]
	if docID == "" {
		return domchunk.Chunk{}, fmt.Errorf("missing %s", fieldDocumentID)
	}
	ints := make(map[string]int, 3)
	for _, f := range []string{fieldSeq, fieldStart, fieldEnd} {
		n, err := strconv.Atoi(m[f])
		if err != nil {
			return domchunk.Chunk{}, fmt.Errorf("field %s: %w", f, err)
		}
		ints[f] = n
	}
	return domchunk.Reconstruct(docID, ints[fieldSeq], ints[fieldStart], ints[fieldEnd],
		m[fieldText], m[fieldFingerprint]), nil
}
