// Package combat resolves a single attack between two combatants.
package combat

import (
	"fmt"

	"go.uber.org/zap"
)

// Damageable is the victim side of an attack.
type Damageable interface {
	ID() int
	IsAlive() (bool, error)
	// TakeDamage applies armor mitigation and returns the damage dealt.
	TakeDamage(amount float64) (float64, error)
}

// DamageDealer is the attacker side of an attack.
type DamageDealer interface {
	ID() int
	Damage() (float64, error)
	LifestealFraction() (float64, error)
	Heal(amount float64) error
}

// Outcome describes what an attack did.
type Outcome struct {
	// Resolved is false when the attack was a no-op: the victim was already
	// dead or the attacker had no positive damage.
	Resolved    bool
	Dealt       float64
	Healed      float64
	VictimAlive bool
}

// Resolver applies the attack rules. It keeps no state between calls.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger}
}

// Resolve makes attacker hit victim once.
//
// A dead victim or a non-positive damage stat is a no-op. Otherwise the
// victim takes the attacker's damage, and the attacker heals by its
// lifesteal fraction of the damage actually dealt.
func (r *Resolver) Resolve(attacker DamageDealer, victim Damageable) (Outcome, error) {
	alive, err := victim.IsAlive()
	if err != nil {
		return Outcome{}, fmt.Errorf("victim %d: %w", victim.ID(), err)
	}
	if !alive {
		return Outcome{}, nil
	}

	damage, err := attacker.Damage()
	if err != nil {
		return Outcome{}, fmt.Errorf("attacker %d: %w", attacker.ID(), err)
	}
	if damage <= 0 {
		r.logger.Debug("attack has no damage",
			zap.Int("attacker_id", attacker.ID()),
			zap.Float64("damage", damage),
		)
		return Outcome{VictimAlive: true}, nil
	}

	dealt, err := victim.TakeDamage(damage)
	if err != nil {
		return Outcome{}, fmt.Errorf("victim %d: %w", victim.ID(), err)
	}
	outcome := Outcome{Resolved: true, Dealt: dealt}

	lifesteal, err := attacker.LifestealFraction()
	if err != nil {
		return Outcome{}, fmt.Errorf("attacker %d: %w", attacker.ID(), err)
	}
	// Full armor deals zero damage, which leaves nothing to steal.
	if heal := lifesteal * dealt; lifesteal > 0 && heal > 0 {
		if err := attacker.Heal(heal); err != nil {
			return Outcome{}, fmt.Errorf("attacker %d: %w", attacker.ID(), err)
		}
		outcome.Healed = heal
	}

	if outcome.VictimAlive, err = victim.IsAlive(); err != nil {
		return Outcome{}, fmt.Errorf("victim %d: %w", victim.ID(), err)
	}

	r.logger.Debug("attack resolved",
		zap.Int("attacker_id", attacker.ID()),
		zap.Int("victim_id", victim.ID()),
		zap.Float64("dealt", dealt),
		zap.Float64("healed", outcome.Healed),
		zap.Bool("victim_alive", outcome.VictimAlive),
	)
	return outcome, nil
}
