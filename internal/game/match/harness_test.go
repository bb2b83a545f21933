package match

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/mine-duel/duel-server-go/internal/events"
	"github.com/mine-duel/duel-server-go/internal/game/stats"
	"go.uber.org/zap/zaptest"
)

var testBindings = stats.Bindings{HealthID: 0, ArmorID: 1, DamageID: 2, LifestealID: 3}

// duelHarness wires a controller to a bus and records every event it sees.
type duelHarness struct {
	t      *testing.T
	bus    *events.Bus
	ctrl   *Controller
	events []events.Envelope
	ids    int
}

// FighterSpec defines the base stats both entities start with.
type FighterSpec struct {
	Health    float64
	Armor     float64
	Damage    float64
	Lifesteal float64
}

func newDuelHarness(t *testing.T, spec FighterSpec, buffs ...stats.Buff) *duelHarness {
	t.Helper()

	h := &duelHarness{t: t, bus: events.NewBus(zaptest.NewLogger(t))}
	h.ctrl = NewController(h.bus, testBindings, rand.New(rand.NewPCG(1, 2)), zaptest.NewLogger(t))
	h.ctrl.newID = func() string {
		h.ids++
		return fmt.Sprintf("match-%d", h.ids)
	}
	h.ctrl.SetCatalog(catalogFor(spec, buffs...))

	if err := h.bus.Observe("harness", func(env events.Envelope) {
		h.events = append(h.events, env)
	}); err != nil {
		t.Fatalf("failed to observe bus: %v", err)
	}
	return h
}

func catalogFor(spec FighterSpec, buffs ...stats.Buff) *stats.Catalog {
	return &stats.Catalog{
		Settings: stats.RollSettings{BuffCountMin: len(buffs), BuffCountMax: len(buffs)},
		Stats: []stats.Stat{
			{ID: 0, Icon: "heart", Title: "Health", Value: spec.Health},
			{ID: 1, Icon: "shield", Title: "Armor", Value: spec.Armor},
			{ID: 2, Icon: "sword", Title: "Damage", Value: spec.Damage},
			{ID: 3, Icon: "fang", Title: "Lifesteal", Value: spec.Lifesteal},
		},
		Buffs: buffs,
	}
}

// Start starts a match and clears the recorded events.
func (h *duelHarness) Start(withBuffs bool) {
	h.t.Helper()
	if err := h.ctrl.StartGame(withBuffs); err != nil {
		h.t.Fatalf("failed to start game: %v", err)
	}
	h.events = nil
}

// Attack makes attackerID hit its opponent.
func (h *duelHarness) Attack(attackerID int) {
	h.t.Helper()
	if err := h.ctrl.DealDamage(attackerID); err != nil {
		h.t.Fatalf("attack by %d failed: %v", attackerID, err)
	}
}

// Health returns the current health of an entity.
func (h *duelHarness) Health(id int) float64 {
	h.t.Helper()
	p, ok := h.ctrl.Player(id)
	if !ok {
		h.t.Fatalf("entity %d not found", id)
	}
	v, err := p.Health()
	if err != nil {
		h.t.Fatalf("health of %d: %v", id, err)
	}
	return v
}

// Topics returns the topic names of recorded events in order.
func (h *duelHarness) Topics() []string {
	out := make([]string, len(h.events))
	for i, env := range h.events {
		out[i] = env.Topic
	}
	return out
}

// Payloads returns the recorded payloads in order.
func (h *duelHarness) Payloads() []any {
	out := make([]any, len(h.events))
	for i, env := range h.events {
		out[i] = env.Payload
	}
	return out
}
