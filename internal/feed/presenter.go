package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mine-duel/duel-server-go/internal/events"
	"github.com/mine-duel/duel-server-go/internal/game/match"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Message types sent to sinks.
const (
	TypeMatchStarted = "match_started"
	TypeStatsChanged = "stats_changed"
	TypeMatchEnded   = "match_ended"
)

// Message carries a match snapshot to spectators.
type Message struct {
	Type     string     `json:"type"`
	MatchID  string     `json:"match_id,omitempty"`
	EntityID int        `json:"entity_id,omitempty"`
	Data     *MatchView `json:"data,omitempty"`
}

// Sink receives messages from a presenter.
type Sink interface {
	Send(msg Message)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Message)

// Send calls f(msg).
func (f SinkFunc) Send(msg Message) { f(msg) }

// Presenter listens to match events and forwards a fresh snapshot of the
// match to every sink.
type Presenter struct {
	id     events.HandlerID
	bus    *events.Bus
	src    Source
	sinks  []Sink
	logger *zap.Logger
}

// NewPresenter creates a presenter reading match state from src.
func NewPresenter(bus *events.Bus, src Source, logger *zap.Logger, sinks ...Sink) *Presenter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presenter{
		id:     events.HandlerID("feed.presenter/" + uuid.NewString()),
		bus:    bus,
		src:    src,
		sinks:  sinks,
		logger: logger,
	}
}

// Attach subscribes the presenter to the match topics. On failure the
// subscriptions made by this call are removed and earlier ones are kept.
func (p *Presenter) Attach() error {
	var undo []func()
	steps := []struct {
		subscribe   func() error
		unsubscribe func()
	}{
		{
			func() error { return events.Subscribe(p.bus, match.TopicGameStarted, p.id, p.onStarted) },
			func() { events.Unsubscribe(p.bus, match.TopicGameStarted, p.id) },
		},
		{
			func() error { return events.Subscribe(p.bus, match.TopicStatsChanged, p.id, p.onStatsChanged) },
			func() { events.Unsubscribe(p.bus, match.TopicStatsChanged, p.id) },
		},
		{
			func() error { return events.Subscribe(p.bus, match.TopicGameEnded, p.id, p.onEnded) },
			func() { events.Unsubscribe(p.bus, match.TopicGameEnded, p.id) },
		},
	}

	for _, step := range steps {
		if err := step.subscribe(); err != nil {
			for _, u := range undo {
				u()
			}
			return fmt.Errorf("attach presenter: %w", err)
		}
		undo = append(undo, step.unsubscribe)
	}
	return nil
}

// Detach removes every subscription made by Attach.
func (p *Presenter) Detach() {
	events.Unsubscribe(p.bus, match.TopicGameStarted, p.id)
	events.Unsubscribe(p.bus, match.TopicStatsChanged, p.id)
	events.Unsubscribe(p.bus, match.TopicGameEnded, p.id)
}

func (p *Presenter) onStarted(e match.GameStarted) {
	p.publish(Message{Type: TypeMatchStarted, MatchID: e.MatchID})
}

func (p *Presenter) onStatsChanged(e match.StatsChanged) {
	p.publish(Message{Type: TypeStatsChanged, MatchID: e.MatchID, EntityID: e.EntityID})
}

func (p *Presenter) onEnded(e match.GameEnded) {
	p.publish(Message{Type: TypeMatchEnded, MatchID: e.MatchID, EntityID: e.WinnerID})
}

func (p *Presenter) publish(msg Message) {
	view, err := BuildMatchView(p.src)
	if err != nil {
		p.logger.Warn("failed to build match view", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	msg.Data = &view
	for _, sink := range p.sinks {
		sink.Send(msg)
	}
}

// LogSink writes messages to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Send logs msg with one field per entity holding its stat texts.
func (s *LogSink) Send(msg Message) {
	fields := []zap.Field{
		zap.String("match_id", msg.MatchID),
	}
	if msg.EntityID != 0 {
		fields = append(fields, zap.Int("entity_id", msg.EntityID))
	}
	if msg.Data != nil {
		fields = append(fields, zap.String("state", msg.Data.State))
		for _, pv := range msg.Data.Players {
			fields = append(fields, zap.Object(playerKey(pv.ID), playerFields(pv)))
		}
	}
	s.logger.Info(msg.Type, fields...)
}

func playerKey(id int) string {
	return "entity_" + strconv.Itoa(id)
}

// playerFields logs a player view as stat title to formatted value.
type playerFields PlayerView

func (pv playerFields) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddBool("alive", pv.Alive)
	for _, s := range pv.Stats {
		key := strings.ToLower(s.Title)
		if key == "" {
			key = "stat_" + strconv.Itoa(s.ID)
		}
		enc.AddString(key, s.Text)
	}
	if len(pv.Buffs) == 0 {
		return nil
	}
	return enc.AddArray("buffs", zapcore.ArrayMarshalerFunc(func(arr zapcore.ArrayEncoder) error {
		for _, b := range pv.Buffs {
			arr.AppendString(b.Title)
		}
		return nil
	}))
}
