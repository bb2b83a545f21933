package match

import "github.com/mine-duel/duel-server-go/internal/events"

// GameStarted is published after StartGame builds a new match.
type GameStarted struct {
	MatchID   string
	WithBuffs bool
}

// StatsChanged is published for each entity whose stats an attack changed.
type StatsChanged struct {
	MatchID  string
	EntityID int
}

// GameEnded is published when a match leaves InProgress. WinnerID is 0
// when the match was ended explicitly.
type GameEnded struct {
	MatchID  string
	WinnerID int
}

var (
	TopicGameStarted  = events.NewTopic[GameStarted]("game_started")
	TopicStatsChanged = events.NewTopic[StatsChanged]("stats_changed")
	TopicGameEnded    = events.NewTopic[GameEnded]("game_ended")
)
