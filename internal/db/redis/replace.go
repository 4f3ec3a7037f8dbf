package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/assessdex/internal/db"
)

// HReplace deletes delKeys and writes items inside one MULTI/EXEC transaction.
// In cluster mode all keys must share a hash slot.
func (s *Store) HReplace(ctx context.Context, delKeys []string, items []db.HashSetItem) error {
	if len(delKeys) == 0 && len(items) == 0 {
		return nil
	}

	cmds := make(rueidis.Commands, 0, len(items)+3)
	cmds = append(cmds, s.b().Multi().Build())
	if len(delKeys) > 0 {
		cmds = append(cmds, s.b().Del().Key(delKeys...).Build())
	}
	for _, item := range items {
		cmds = append(cmds, s.hsetCmd(item))
	}
	cmds = append(cmds, s.b().Exec().Build())

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results[:len(results)-1] {
		if err := res.Error(); err != nil {
			return fail(db.OpReplace, fmt.Errorf("command %d: %w", i, err))
		}
	}

	execRes, err := results[len(results)-1].ToArray()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return fail(db.OpReplace, db.ErrReplaceConflict)
		}
		return fail(db.OpReplace, err)
	}
	for i := range execRes {
		if err := execRes[i].Error(); err != nil {
			return fail(db.OpReplace, fmt.Errorf("exec reply %d: %w", i, err))
		}
	}
	return nil
}
