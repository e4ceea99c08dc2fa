package mqtt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/questgraph/internal/logging"
	"github.com/aretw0/questgraph/pkg/domain"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Observer is the part of the runtime the bridge feeds.
type Observer interface {
	Observe(ctx context.Context, id, predicate string, v domain.Value) (domain.Outcome, error)
	ObserveAll(ctx context.Context, predicate string, v domain.Value) ([]domain.Outcome, error)
}

// Subscriber is satisfied by *Client and by paho.Client.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler paho.MessageHandler) paho.Token
}

// Event is the JSON payload of a gameplay event. Messages that are not
// an object carry only a value; the predicate is then the last topic
// segment and the event is broadcast to every instance.
type Event struct {
	Instance  string `json:"instance,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	Value     any    `json:"value"`
}

// Bridge turns broker messages into runtime observations.
type Bridge struct {
	engine    Observer
	logger    *slog.Logger
	timeout   time.Duration
	onOutcome func(domain.Outcome)
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithTimeout bounds each observation. Defaults to five seconds.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithOutcomeHandler receives every outcome produced by a message.
func WithOutcomeHandler(fn func(domain.Outcome)) Option {
	return func(b *Bridge) {
		b.onOutcome = fn
	}
}

// NewBridge creates a bridge feeding engine.
func NewBridge(engine Observer, opts ...Option) *Bridge {
	b := &Bridge{
		engine:  engine,
		logger:  logging.NewNop(),
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers the bridge handler on topic and waits for the broker ack.
func (b *Bridge) Subscribe(sub Subscriber, topic string, qos byte) error {
	token := sub.Subscribe(topic, qos, b.Handle)
	if !token.WaitTimeout(waitTimeout) {
		return &TimeoutError{Op: "subscribe", Target: topic}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	b.logger.Info("mqtt bridge subscribed", "topic", topic, "qos", qos)
	return nil
}

// Handle is the paho message handler. Failures are logged, never returned
// to the broker.
func (b *Bridge) Handle(_ paho.Client, msg paho.Message) {
	ev, err := Decode(msg.Topic(), msg.Payload())
	if err != nil {
		b.logger.Warn("mqtt message dropped", "topic", msg.Topic(), "err", err)
		return
	}
	if _, err := b.Dispatch(context.Background(), ev); err != nil {
		b.logger.Error("mqtt observation failed",
			"topic", msg.Topic(),
			"predicate", ev.Predicate,
			"instance", ev.Instance,
			"err", err)
	}
}

// Dispatch applies one event and returns the resulting outcomes.
func (b *Bridge) Dispatch(ctx context.Context, ev Event) ([]domain.Outcome, error) {
	v, err := domain.ValueOf(ev.Value)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var outcomes []domain.Outcome
	if ev.Instance == "" {
		outcomes, err = b.engine.ObserveAll(ctx, ev.Predicate, v)
	} else {
		var out domain.Outcome
		out, err = b.engine.Observe(ctx, ev.Instance, ev.Predicate, v)
		outcomes = []domain.Outcome{out}
	}
	if ev.Instance != "" && err != nil {
		return nil, err
	}
	b.logger.Debug("mqtt observation applied", "predicate", ev.Predicate, "instances", len(outcomes))
	if b.onOutcome != nil {
		for _, out := range outcomes {
			b.onOutcome(out)
		}
	}
	return outcomes, err
}

// Decode reads an event from a message. An empty payload observes null.
func Decode(topic string, payload []byte) (Event, error) {
	var ev Event
	trimmed := bytes.TrimSpace(payload)
	switch {
	case len(trimmed) == 0:
	case trimmed[0] == '{':
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return Event{}, fmt.Errorf("invalid event: %w", err)
		}
	default:
		if err := json.Unmarshal(trimmed, &ev.Value); err != nil {
			ev.Value = string(trimmed)
		}
	}
	if ev.Predicate == "" {
		ev.Predicate = topic[strings.LastIndex(topic, "/")+1:]
	}
	if ev.Predicate == "" {
		return Event{}, fmt.Errorf("no predicate in topic %q", topic)
	}
	return ev, nil
}
