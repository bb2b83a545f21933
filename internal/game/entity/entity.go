// Package entity implements the per-combatant state: stats, the applied
// buff ledger, and the damage and healing rules that mutate health.
package entity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mine-duel/duel-server-go/internal/game/stats"
	"go.uber.org/zap"
)

var (
	// ErrUnknownStat is returned when a stat id was never applied to the entity.
	ErrUnknownStat = errors.New("unknown stat")
	// ErrBuffShapeMismatch is returned when a buff id is reapplied with a
	// different number of stat deltas than its first application.
	ErrBuffShapeMismatch = errors.New("buff stat count mismatch")
	// ErrNonPositiveAmount is returned when damage or healing is not > 0.
	ErrNonPositiveAmount = errors.New("amount must be positive")
)

// Entity is a combatant. It owns its stats and buff ledger; other
// components read it through accessors and change it through ApplyStat,
// ApplyBuff, TakeDamage and Heal.
type Entity struct {
	id       int
	bindings stats.Bindings
	stats    map[int]*stats.Stat
	buffs    map[int]*stats.Buff
	logger   *zap.Logger
}

// New creates an entity with no stats.
func New(id int, bindings stats.Bindings, logger *zap.Logger) *Entity {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Entity{
		id:       id,
		bindings: bindings,
		stats:    make(map[int]*stats.Stat),
		buffs:    make(map[int]*stats.Buff),
		logger:   logger.With(zap.Int("entity_id", id)),
	}
}

// ID returns the entity id.
func (e *Entity) ID() int {
	return e.id
}

// ApplyStat sets a stat value. The first application of an id also fixes
// its icon and title; later applications only overwrite the value.
func (e *Entity) ApplyStat(stat stats.Stat) {
	current, ok := e.stats[stat.ID]
	if !ok {
		current = &stats.Stat{
			ID:    stat.ID,
			Icon:  stat.Icon,
			Title: stat.Title,
		}
		e.stats[stat.ID] = current
	}
	current.Value = stat.Value
}

// ApplyBuff adds every delta of buff to the matching live stat and records
// it in the ledger entry for buff.ID. Buffs only sum; there is no
// multiplicative mode. Nothing is mutated when an error is returned.
func (e *Entity) ApplyBuff(buff stats.Buff) error {
	entry, seen := e.buffs[buff.ID]
	if seen {
		e.logger.Debug("duplicate buff",
			zap.Int("buff_id", buff.ID),
			zap.String("buff", buff.Title),
		)
		if len(entry.Stats) != len(buff.Stats) {
			return fmt.Errorf("buff %d on entity %d: have %d stats, got %d: %w",
				buff.ID, e.id, len(entry.Stats), len(buff.Stats), ErrBuffShapeMismatch)
		}
	}

	for _, bs := range buff.Stats {
		if _, ok := e.stats[bs.StatID]; !ok {
			return fmt.Errorf("buff %d on entity %d: stat %d: %w", buff.ID, e.id, bs.StatID, ErrUnknownStat)
		}
	}

	if !seen {
		entry = &stats.Buff{
			ID:    buff.ID,
			Icon:  buff.Icon,
			Title: buff.Title,
			Stats: make([]stats.BuffStat, len(buff.Stats)),
		}
		for i, bs := range buff.Stats {
			entry.Stats[i].StatID = bs.StatID
		}
		e.buffs[buff.ID] = entry
	}

	for i, bs := range buff.Stats {
		e.stats[bs.StatID].Value += bs.Value
		entry.Stats[i].Value += bs.Value
	}
	return nil
}

// Stat returns a copy of the stat with the given id.
func (e *Entity) Stat(id int) (stats.Stat, error) {
	s, ok := e.stats[id]
	if !ok {
		return stats.Stat{}, fmt.Errorf("entity %d: stat %d: %w", e.id, id, ErrUnknownStat)
	}
	return *s, nil
}

// Stats returns copies of all stats ordered by id.
func (e *Entity) Stats() []stats.Stat {
	out := make([]stats.Stat, 0, len(e.stats))
	for _, s := range e.stats {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Buffs returns copies of the ledger entries ordered by id. Each entry's
// deltas are the totals contributed by every application of that buff.
func (e *Entity) Buffs() []stats.Buff {
	out := make([]stats.Buff, 0, len(e.buffs))
	for _, b := range e.buffs {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Health returns the value of the bound health stat.
func (e *Entity) Health() (float64, error) {
	return e.value(e.bindings.HealthID)
}

// Armor returns the value of the bound armor stat.
func (e *Entity) Armor() (float64, error) {
	return e.value(e.bindings.ArmorID)
}

// Damage returns the value of the bound damage stat.
func (e *Entity) Damage() (float64, error) {
	return e.value(e.bindings.DamageID)
}

// LifestealFraction returns the lifesteal stat as a fraction (percent / 100).
func (e *Entity) LifestealFraction() (float64, error) {
	v, err := e.value(e.bindings.LifestealID)
	if err != nil {
		return 0, err
	}
	return v * 0.01, nil
}

// IsAlive reports whether health is above zero.
func (e *Entity) IsAlive() (bool, error) {
	health, err := e.Health()
	if err != nil {
		return false, err
	}
	return health > 0, nil
}

// TakeDamage reduces health by amount after armor mitigation and returns
// the mitigated amount. Health never drops below zero.
func (e *Entity) TakeDamage(amount float64) (float64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("entity %d: damage %v: %w", e.id, amount, ErrNonPositiveAmount)
	}

	armor, err := e.Armor()
	if err != nil {
		return 0, err
	}
	health, err := e.stat(e.bindings.HealthID)
	if err != nil {
		return 0, err
	}

	damage := amount * Mitigation(armor)
	health.Value = max(0, health.Value-damage)

	e.logger.Debug("took damage",
		zap.Float64("damage", damage),
		zap.Float64("health", health.Value),
	)
	return damage, nil
}

// Heal adds amount to health. There is no maximum health.
func (e *Entity) Heal(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("entity %d: heal %v: %w", e.id, amount, ErrNonPositiveAmount)
	}

	health, err := e.stat(e.bindings.HealthID)
	if err != nil {
		return err
	}
	health.Value += amount

	e.logger.Debug("healed",
		zap.Float64("amount", amount),
		zap.Float64("health", health.Value),
	)
	return nil
}

// Mitigation returns the fraction of incoming damage that gets through armor.
func Mitigation(armor float64) float64 {
	return min(max(1-armor*0.01, 0), 1)
}

func (e *Entity) value(id int) (float64, error) {
	s, err := e.stat(id)
	if err != nil {
		return 0, err
	}
	return s.Value, nil
}

func (e *Entity) stat(id int) (*stats.Stat, error) {
	s, ok := e.stats[id]
	if !ok {
		return nil, fmt.Errorf("entity %d: stat %d: %w", e.id, id, ErrUnknownStat)
	}
	return s, nil
}
