package events

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrAlreadySubscribed is returned when a handler id is registered twice
	// for the same topic.
	ErrAlreadySubscribed = errors.New("handler already subscribed")
	// ErrInvalidHandler is returned for a nil callback or an empty handler id.
	ErrInvalidHandler = errors.New("invalid handler")
)

// HandlerID is the identity of a subscription. The same id is used to
// unsubscribe, so it must stay stable for as long as the handler is live.
type HandlerID string

// Topic is the event kind carrying payloads of type T. Topics are compared
// by pointer, so two topics with the same name are still distinct kinds.
type Topic[T any] struct {
	name string
}

// NewTopic creates a topic for payload type T.
func NewTopic[T any](name string) *Topic[T] {
	return &Topic[T]{name: name}
}

// Name returns the topic name used in logs and envelopes.
func (t *Topic[T]) Name() string {
	return t.name
}

func (t *Topic[T]) String() string {
	return t.name
}

// topicKey is implemented by every *Topic[T] and keys the handler table.
type topicKey interface {
	Name() string
}

// Envelope carries a published payload to wildcard observers.
type Envelope struct {
	Topic   string
	Payload any
	At      time.Time
}

type handler struct {
	id     HandlerID
	invoke func(payload any)
}

type watcher struct {
	id       HandlerID
	callback func(Envelope)
}

// Bus is a synchronous publish/subscribe dispatcher keyed by topic.
//
// Handlers run on the publishing goroutine in registration order. The bus
// has no locking: it belongs to a single owner goroutine. Handlers may
// subscribe or unsubscribe while a publish is running; those changes apply
// to the next publish only.
type Bus struct {
	logger    *zap.Logger
	handlers  map[topicKey][]handler
	observers []watcher
	now       func() time.Time
}

// NewBus constructs an empty bus. A nil logger disables handler failure logs.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[topicKey][]handler),
		now:      time.Now,
	}
}

// Subscribe registers fn for topic under id.
func Subscribe[T any](bus *Bus, topic *Topic[T], id HandlerID, fn func(T)) error {
	if fn == nil {
		return fmt.Errorf("subscribe %s/%s: nil callback: %w", topic.Name(), id, ErrInvalidHandler)
	}
	return bus.add(topic, handler{
		id: id,
		invoke: func(payload any) {
			fn(payload.(T))
		},
	})
}

// SubscribeFunc registers a handler that ignores the payload.
func SubscribeFunc[T any](bus *Bus, topic *Topic[T], id HandlerID, fn func()) error {
	if fn == nil {
		return fmt.Errorf("subscribe %s/%s: nil callback: %w", topic.Name(), id, ErrInvalidHandler)
	}
	return bus.add(topic, handler{
		id: id,
		invoke: func(any) {
			fn()
		},
	})
}

// Unsubscribe removes every handler registered under id for topic.
// Unknown ids are ignored.
func Unsubscribe[T any](bus *Bus, topic *Topic[T], id HandlerID) {
	bus.remove(topic, id)
}

// Publish delivers payload to the handlers of topic, then to observers.
func Publish[T any](bus *Bus, topic *Topic[T], payload T) {
	bus.dispatch(topic, payload)
}

// Fire publishes the zero value of T.
func Fire[T any](bus *Bus, topic *Topic[T]) {
	var zero T
	bus.dispatch(topic, zero)
}

// HandlerCount reports how many handlers are registered for topic.
func HandlerCount[T any](bus *Bus, topic *Topic[T]) int {
	return len(bus.handlers[topic])
}

// Observe registers a wildcard observer that receives every published event.
func (bus *Bus) Observe(id HandlerID, fn func(Envelope)) error {
	if fn == nil || id == "" {
		return fmt.Errorf("observe %q: %w", id, ErrInvalidHandler)
	}
	for _, o := range bus.observers {
		if o.id == id {
			return fmt.Errorf("observe %q: %w", id, ErrAlreadySubscribed)
		}
	}
	bus.observers = append(bus.observers, watcher{id: id, callback: fn})
	return nil
}

// Forget removes a wildcard observer.
func (bus *Bus) Forget(id HandlerID) {
	kept := bus.observers[:0:0]
	for _, o := range bus.observers {
		if o.id != id {
			kept = append(kept, o)
		}
	}
	bus.observers = kept
}

// Topics returns the names of topics that currently have handlers.
func (bus *Bus) Topics() []string {
	names := make([]string, 0, len(bus.handlers))
	for topic := range bus.handlers {
		names = append(names, topic.Name())
	}
	sort.Strings(names)
	return names
}

func (bus *Bus) add(topic topicKey, h handler) error {
	if h.id == "" {
		return fmt.Errorf("subscribe %s: empty handler id: %w", topic.Name(), ErrInvalidHandler)
	}
	handlers := bus.handlers[topic]
	for _, existing := range handlers {
		if existing.id == h.id {
			return fmt.Errorf("subscribe %s/%s: %w", topic.Name(), h.id, ErrAlreadySubscribed)
		}
	}
	bus.handlers[topic] = append(handlers, h)
	return nil
}

func (bus *Bus) remove(topic topicKey, id HandlerID) {
	handlers, ok := bus.handlers[topic]
	if !ok {
		return
	}

	// Build a new slice so snapshots held by an in-flight publish stay intact.
	kept := make([]handler, 0, len(handlers))
	for _, h := range handlers {
		if h.id != id {
			kept = append(kept, h)
		}
	}
	if len(kept) == len(handlers) {
		return
	}
	if len(kept) == 0 {
		delete(bus.handlers, topic)
		return
	}
	bus.handlers[topic] = kept
}

func (bus *Bus) dispatch(topic topicKey, payload any) {
	if handlers := bus.handlers[topic]; len(handlers) > 0 {
		snapshot := make([]handler, len(handlers))
		copy(snapshot, handlers)
		for _, h := range snapshot {
			bus.invoke(topic.Name(), h.id, func() { h.invoke(payload) })
		}
	}

	if len(bus.observers) == 0 {
		return
	}
	envelope := Envelope{Topic: topic.Name(), Payload: payload, At: bus.now()}
	observers := make([]watcher, len(bus.observers))
	copy(observers, bus.observers)
	for _, o := range observers {
		bus.invoke(topic.Name(), o.id, func() { o.callback(envelope) })
	}
}

// invoke runs a single handler; a panic is logged and swallowed so the
// remaining handlers still run.
func (bus *Bus) invoke(topic string, id HandlerID, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			bus.logger.Error("event handler failed",
				zap.String("topic", topic),
				zap.String("handler", string(id)),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
	}()
	fn()
}
