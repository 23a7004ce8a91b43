package document

import (
	"fmt"
	"strconv"
	"time"

	domdoc "github.com/kailas-cloud/docrag/internal/domain/document"
)

const (
	fieldName       = "name"
	fieldFormat     = "format"
	fieldLength     = "length"
	fieldState      = "state"
	fieldLastStage  = "last_stage"
	fieldChunkCount = "chunk_count"
	fieldFailure    = "failure"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

func buildHashFields(doc *domdoc.Document) map[string]string {
	return map[string]string{
		fieldName:       doc.Name(),
		fieldFormat:     doc.Format(),
		fieldLength:     strconv.Itoa(doc.Length()),
		fieldState:      string(doc.State()),
		fieldLastStage:  string(doc.LastStage()),
		fieldChunkCount: strconv.Itoa(doc.ChunkCount()),
		fieldFailure:    doc.Failure(),
		fieldCreatedAt:  strconv.FormatInt(doc.CreatedAt().UnixMilli(), 10),
		fieldUpdatedAt:  strconv.FormatInt(doc.UpdatedAt().UnixMilli(), 10),
	}
}

func parseHashFields(id string, m map[string]string) (domdoc.Document, error) {
	state, err := domdoc.ParseState(m[fieldState])
	if err != nil {
		return domdoc.Document{}, err
	}
	var lastStage domdoc.State
	if s := m[fieldLastStage]; s != "" {
		if lastStage, err = domdoc.ParseState(s); err != nil {
			return domdoc.Document{}, err
		}
	}

	ints := make(map[string]int64, 4)
	for _, f := range []string{fieldLength, fieldChunkCount, fieldCreatedAt, fieldUpdatedAt} {
		v := m[f]
		if v == "" {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return domdoc.Document{}, fmt.Errorf("field %s: %w", f, err)
		}
		ints[f] = n
	}

	return domdoc.Reconstruct(
		id, m[fieldName], m[fieldFormat], int(ints[fieldLength]),
		state, lastStage, int(ints[fieldChunkCount]), m[fieldFailure],
		time.UnixMilli(ints[fieldCreatedAt]).UTC(), time.UnixMilli(ints[fieldUpdatedAt]).UTC(),
	), nil
}
