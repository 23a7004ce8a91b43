package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/docrag/internal/db"
)

// Atomic applies the batch inside MULTI/EXEC in one DoMulti round-trip:
// a single DEL for all deletes, then one HSET per item.
func (s *Store) Atomic(ctx context.Context, b db.Batch) (int, error) {
	if b.IsEmpty() {
		return 0, nil
	}

	cmds := make([]rueidis.Completed, 0, len(b.Sets)+3)
	cmds = append(cmds, s.b().Multi().Build())
	if len(b.Deletes) > 0 {
		cmds = append(cmds, s.b().Del().Key(b.Deletes...).Build())
	}
	for _, item := range b.Sets {
		cmds = append(cmds, s.hset(item))
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return 0, &db.Error{Op: db.OpExec, Err: fmt.Errorf("queue command %d: %w", i, err)}
		}
	}

	replies, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return 0, &db.Error{Op: db.OpExec, Err: db.ErrTxAborted}
		}
		return 0, &db.Error{Op: db.OpExec, Err: err}
	}
	for i, reply := range replies {
		if err := reply.Error(); err != nil {
			return 0, &db.Error{Op: db.OpExec, Err: fmt.Errorf("command %d: %w", i, err)}
		}
	}

	if len(b.Deletes) == 0 || len(replies) == 0 {
		return 0, nil
	}
	removed, err := replies[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpExec, Err: fmt.Errorf("parse DEL reply: %w", err)}
	}
	return int(removed), nil
}
