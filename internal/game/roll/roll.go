// Package roll draws the random buffs an entity starts a match with.
package roll

import (
	"errors"
	"fmt"

	"github.com/mine-duel/duel-server-go/internal/game/stats"
)

// ErrInvalidRange is returned when the buff count bounds are unusable.
var ErrInvalidRange = errors.New("invalid buff count range")

// MaxBuffCount is the largest BuffCountMax accepted.
const MaxBuffCount = 1024

// Source is a uniform random provider. *math/rand/v2.Rand satisfies it.
type Source interface {
	// IntN returns a uniform int in [0, n).
	IntN(n int) int
	// Perm returns a uniform permutation of [0, n).
	Perm(n int) []int
}

// Buffs draws between settings.BuffCountMin and settings.BuffCountMax
// (inclusive) buffs from pool.
//
// With duplicates allowed every draw picks uniformly from the whole pool.
// Otherwise the pool is shuffled and a prefix is taken, so the result can
// be shorter than the drawn count when the pool is small. An empty pool
// yields no buffs.
func Buffs(settings stats.RollSettings, pool []stats.Buff, src Source) ([]stats.Buff, error) {
	lo, hi := settings.BuffCountMin, settings.BuffCountMax
	if lo < 0 || lo > hi || hi > MaxBuffCount {
		return nil, fmt.Errorf("buff count [%d, %d]: %w", lo, hi, ErrInvalidRange)
	}

	count := lo + src.IntN(hi-lo+1)
	if count == 0 || len(pool) == 0 {
		return nil, nil
	}

	out := make([]stats.Buff, 0, count)
	if settings.AllowDuplicateBuffs {
		for range count {
			out = append(out, pool[src.IntN(len(pool))])
		}
		return out, nil
	}

	for _, i := range src.Perm(len(pool)) {
		if len(out) == count {
			break
		}
		out = append(out, pool[i])
	}
	return out, nil
}
