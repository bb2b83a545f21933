// Package feed turns match events into read-only views and pushes them to
// sinks: the log and websocket spectators.
package feed

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mine-duel/duel-server-go/internal/game/entity"
	"github.com/mine-duel/duel-server-go/internal/game/match"
	"github.com/mine-duel/duel-server-go/internal/game/stats"
)

// StatView is a stat as shown to spectators.
type StatView struct {
	ID    int     `json:"id"`
	Icon  string  `json:"icon"`
	Title string  `json:"title"`
	Value float64 `json:"value"`
	Text  string  `json:"text"`
}

// BuffView is a buff as shown to spectators.
type BuffView struct {
	ID    int    `json:"id"`
	Icon  string `json:"icon"`
	Title string `json:"title"`
}

// PlayerView is the visible state of one entity.
type PlayerView struct {
	ID    int        `json:"id"`
	Alive bool       `json:"alive"`
	Stats []StatView `json:"stats"`
	Buffs []BuffView `json:"buffs"`
}

// MatchView is the visible state of a match.
type MatchView struct {
	MatchID  string       `json:"match_id"`
	State    string       `json:"state"`
	WinnerID int          `json:"winner_id,omitempty"`
	Players  []PlayerView `json:"players"`
}

// Fighter is the read side of an entity.
type Fighter interface {
	ID() int
	Stats() []stats.Stat
	Buffs() []stats.Buff
	IsAlive() (bool, error)
}

// Source is the read side of a match controller.
type Source interface {
	MatchID() string
	State() match.State
	Winner() int
	Players() []*entity.Entity
}

// FormatValue renders a stat value with at most two decimals and no
// trailing zeros.
func FormatValue(v float64) string {
	r := math.Round(v*100) / 100
	if r == 0 {
		return "0"
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// BuildPlayerView snapshots a fighter.
func BuildPlayerView(f Fighter) (PlayerView, error) {
	alive, err := f.IsAlive()
	if err != nil {
		return PlayerView{}, fmt.Errorf("entity %d: %w", f.ID(), err)
	}

	view := PlayerView{
		ID:    f.ID(),
		Alive: alive,
		Stats: make([]StatView, 0),
		Buffs: make([]BuffView, 0),
	}
	for _, s := range f.Stats() {
		view.Stats = append(view.Stats, StatView{
			ID:    s.ID,
			Icon:  s.Icon,
			Title: s.Title,
			Value: s.Value,
			Text:  FormatValue(s.Value),
		})
	}
	for _, b := range f.Buffs() {
		view.Buffs = append(view.Buffs, BuffView{ID: b.ID, Icon: b.Icon, Title: b.Title})
	}
	return view, nil
}

// BuildMatchView snapshots the current match of src.
func BuildMatchView(src Source) (MatchView, error) {
	view := MatchView{
		MatchID:  src.MatchID(),
		State:    src.State().String(),
		WinnerID: src.Winner(),
		Players:  make([]PlayerView, 0, match.PlayerCount),
	}
	for _, p := range src.Players() {
		pv, err := BuildPlayerView(p)
		if err != nil {
			return MatchView{}, err
		}
		view.Players = append(view.Players, pv)
	}
	return view, nil
}
