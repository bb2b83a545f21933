// Package match runs a duel: it builds the two entities from game data,
// resolves attacks between them and tracks the match lifecycle.
package match

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mine-duel/duel-server-go/internal/data"
	"github.com/mine-duel/duel-server-go/internal/events"
	"github.com/mine-duel/duel-server-go/internal/game/combat"
	"github.com/mine-duel/duel-server-go/internal/game/entity"
	"github.com/mine-duel/duel-server-go/internal/game/roll"
	"github.com/mine-duel/duel-server-go/internal/game/stats"
	"go.uber.org/zap"
)

// PlayerCount is the number of entities in a match. The rules pick "the
// other entity" as the victim, so they only hold for two.
const PlayerCount = 2

// State is the match lifecycle state.
type State int

const (
	// StateNotStarted is the state before the first StartGame.
	StateNotStarted State = iota
	// StateInProgress accepts attacks.
	StateInProgress
	// StateEnded follows EndGame or a lethal attack.
	StateEnded
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateInProgress:
		return "IN_PROGRESS"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrAlreadyInProgress is returned by StartGame while a match is running.
	ErrAlreadyInProgress = errors.New("match already in progress")
	// ErrNotInProgress is returned by EndGame and DealDamage outside a match.
	ErrNotInProgress = errors.New("match not in progress")
	// ErrInvalidEntityID is returned for attacker ids <= 0.
	ErrInvalidEntityID = errors.New("invalid entity id")
	// ErrUnknownEntity is returned for attacker ids not in the match.
	ErrUnknownEntity = errors.New("unknown entity")
	// ErrNoCatalog is returned by StartGame before game data arrives.
	ErrNoCatalog = errors.New("game data not loaded")
)

const dataHandlerID events.HandlerID = "match.controller"

// Controller owns the entities of the current match. It is not safe for
// concurrent use; the goroutine that owns the bus drives it.
type Controller struct {
	bus      *events.Bus
	bindings stats.Bindings
	rng      roll.Source
	resolver *combat.Resolver
	logger   *zap.Logger
	newID    func() string

	catalog  *stats.Catalog
	state    State
	matchID  string
	winnerID int
	players  []*entity.Entity
}

// NewController creates a controller with no game data. The catalog
// arrives through SetCatalog or a data.TopicLoaded event after Attach.
func NewController(bus *events.Bus, bindings stats.Bindings, rng roll.Source, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		bus:      bus,
		bindings: bindings,
		rng:      rng,
		resolver: combat.NewResolver(logger.Named("combat")),
		logger:   logger,
		newID:    uuid.NewString,
		state:    StateNotStarted,
	}
}

// Attach subscribes the controller to data.TopicLoaded. Each data set
// received replaces the catalog and, when no match is running, starts one
// without buffs.
func (c *Controller) Attach() error {
	return events.Subscribe(c.bus, data.TopicLoaded, dataHandlerID, c.onDataLoaded)
}

// Detach removes the subscription made by Attach.
func (c *Controller) Detach() {
	events.Unsubscribe(c.bus, data.TopicLoaded, dataHandlerID)
}

// SetCatalog replaces the game data used by the next StartGame.
func (c *Controller) SetCatalog(catalog *stats.Catalog) {
	c.catalog = catalog
}

func (c *Controller) onDataLoaded(loaded data.Loaded) {
	c.SetCatalog(loaded.Catalog)
	if c.state == StateInProgress {
		return
	}
	if err := c.StartGame(false); err != nil {
		c.logger.Error("auto start failed", zap.String("data", loaded.Path), zap.Error(err))
	}
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	return c.state
}

// IsValidGame reports whether a match is in progress.
func (c *Controller) IsValidGame() bool {
	return c.state == StateInProgress
}

// MatchID returns the id of the current or last match.
func (c *Controller) MatchID() string {
	return c.matchID
}

// Winner returns the id of the entity that won the last match by a lethal
// attack, or 0.
func (c *Controller) Winner() int {
	return c.winnerID
}

// Player returns the entity with the given id in the current match.
func (c *Controller) Player(id int) (*entity.Entity, bool) {
	for _, p := range c.players {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// Players returns the entities of the current match in id order.
func (c *Controller) Players() []*entity.Entity {
	out := make([]*entity.Entity, len(c.players))
	copy(out, c.players)
	return out
}

// StartGame builds fresh entities 1 and 2 with every base stat and, when
// withBuffs is set, a random set of buffs each. Entities from a previous
// match are discarded.
func (c *Controller) StartGame(withBuffs bool) error {
	c.logger.Info("start game", zap.Bool("with_buffs", withBuffs))

	if c.state == StateInProgress {
		return fmt.Errorf("start game: %w", ErrAlreadyInProgress)
	}
	if c.catalog == nil {
		return fmt.Errorf("start game: %w", ErrNoCatalog)
	}

	players := make([]*entity.Entity, 0, PlayerCount)
	for i := range PlayerCount {
		player := entity.New(i+1, c.bindings, c.logger.Named("entity"))

		for _, s := range c.catalog.Stats {
			player.ApplyStat(s)
		}

		if withBuffs {
			buffs, err := roll.Buffs(c.catalog.Settings, c.catalog.Buffs, c.rng)
			if err != nil {
				return fmt.Errorf("start game: rolling buffs for entity %d: %w", player.ID(), err)
			}
			for _, b := range buffs {
				if err := player.ApplyBuff(b); err != nil {
					return fmt.Errorf("start game: %w", err)
				}
			}
		}

		players = append(players, player)
	}

	c.players = players
	c.matchID = c.newID()
	c.winnerID = 0
	c.state = StateInProgress

	events.Publish(c.bus, TopicGameStarted, GameStarted{MatchID: c.matchID, WithBuffs: withBuffs})

	c.logger.Info("game started", zap.String("match_id", c.matchID))
	return nil
}

// EndGame stops the match in progress.
func (c *Controller) EndGame() error {
	c.logger.Info("end game", zap.String("match_id", c.matchID))
	if c.state != StateInProgress {
		return fmt.Errorf("end game: %w", ErrNotInProgress)
	}
	c.finish(0)
	return nil
}

// Restart ends the match in progress, if any, and starts a new one.
func (c *Controller) Restart(withBuffs bool) error {
	if c.state == StateInProgress {
		if err := c.EndGame(); err != nil {
			return err
		}
	}
	return c.StartGame(withBuffs)
}

// DealDamage makes attackerID hit the other entity once.
//
// Hitting a dead opponent or attacking with a non-positive damage stat does
// nothing. Otherwise StatsChanged is published for the victim, then the
// attacker, and a lethal hit ends the match.
func (c *Controller) DealDamage(attackerID int) error {
	if attackerID <= 0 {
		return fmt.Errorf("deal damage: attacker %d: %w", attackerID, ErrInvalidEntityID)
	}
	if c.state != StateInProgress {
		return fmt.Errorf("deal damage: %w", ErrNotInProgress)
	}

	attacker, ok := c.Player(attackerID)
	if !ok {
		return fmt.Errorf("deal damage: attacker %d: %w", attackerID, ErrUnknownEntity)
	}
	victim := c.enemyOf(attackerID)

	outcome, err := c.resolver.Resolve(attacker, victim)
	if err != nil {
		return fmt.Errorf("deal damage: %w", err)
	}
	if !outcome.Resolved {
		return nil
	}

	matchID := c.matchID
	events.Publish(c.bus, TopicStatsChanged, StatsChanged{MatchID: matchID, EntityID: victim.ID()})

	// A handler that restarted the match discarded these entities; the rest
	// of this attack belongs to the old match.
	if c.matchID != matchID {
		return nil
	}
	events.Publish(c.bus, TopicStatsChanged, StatsChanged{MatchID: matchID, EntityID: attacker.ID()})

	if !outcome.VictimAlive && c.current(matchID) {
		c.finish(attacker.ID())
	}
	return nil
}

// current reports whether matchID is the match in progress.
func (c *Controller) current(matchID string) bool {
	return c.state == StateInProgress && c.matchID == matchID
}

func (c *Controller) enemyOf(id int) *entity.Entity {
	for _, p := range c.players {
		if p.ID() != id {
			return p
		}
	}
	return nil
}

func (c *Controller) finish(winnerID int) {
	c.state = StateEnded
	c.winnerID = winnerID

	c.logger.Info("game ended",
		zap.String("match_id", c.matchID),
		zap.Int("winner_id", winnerID),
	)
	events.Publish(c.bus, TopicGameEnded, GameEnded{MatchID: c.matchID, WinnerID: winnerID})
}
