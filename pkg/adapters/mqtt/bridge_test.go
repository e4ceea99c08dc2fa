package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/questgraph/internal/compiler"
	"github.com/aretw0/questgraph/internal/runtime"
	"github.com/aretw0/questgraph/internal/validator"
	"github.com/aretw0/questgraph/pkg/adapters/memory"
	"github.com/aretw0/questgraph/pkg/domain"
	"github.com/aretw0/questgraph/pkg/dsl"
	"github.com/aretw0/questgraph/pkg/session"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 1 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}

type mockToken struct {
	err     error
	timeout bool
}

func (t *mockToken) Wait() bool                     { return !t.timeout }
func (t *mockToken) WaitTimeout(time.Duration) bool { return !t.timeout }
func (t *mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *mockToken) Error() error { return t.err }

// mockBroker records subscriptions and delivers messages synchronously.
type mockBroker struct {
	mu       sync.Mutex
	handlers map[string]paho.MessageHandler
	token    *mockToken
}

func newMockBroker() *mockBroker {
	return &mockBroker{handlers: make(map[string]paho.MessageHandler), token: &mockToken{}}
}

func (b *mockBroker) Subscribe(topic string, qos byte, handler paho.MessageHandler) paho.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = handler
	return b.token
}

func (b *mockBroker) publish(filter, topic, payload string) {
	b.mu.Lock()
	h := b.handlers[filter]
	b.mu.Unlock()
	h(nil, &mockMessage{topic: topic, payload: []byte(payload)})
}

func newExecutor(t *testing.T) (*runtime.Executor, string) {
	t.Helper()
	b := dsl.New("smith")
	b.Objective("start", "talked").Go("wolves")
	b.Objective("wolves", "kills >= 3").Milestone().Go("won")
	b.Terminal("won", domain.OutcomeSuccess)
	d, err := b.Build()
	require.NoError(t, err)
	report := validator.Validate(d.Snapshot())
	require.True(t, report.Valid(), "%v", report.Errors())
	m, err := compiler.Compile(report)
	require.NoError(t, err)
	return runtime.NewExecutor(memory.NewRegistry(m), session.NewManager(memory.NewStore())), m.ID
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		want    Event
		wantErr bool
	}{
		{"number", "questgraph/events/kills", "3", Event{Predicate: "kills", Value: float64(3)}, false},
		{"bool", "questgraph/events/talked", " true ", Event{Predicate: "talked", Value: true}, false},
		{"raw string", "questgraph/events/weather", "fog", Event{Predicate: "weather", Value: "fog"}, false},
		{"empty is null", "questgraph/events/gone", "", Event{Predicate: "gone"}, false},
		{"object", "questgraph/events", `{"instance":"q-1","predicate":"talked","value":true}`,
			Event{Instance: "q-1", Predicate: "talked", Value: true}, false},
		{"object takes topic predicate", "questgraph/events/rep", `{"instance":"q-1","value":12}`,
			Event{Instance: "q-1", Predicate: "rep", Value: float64(12)}, false},
		{"broken object", "questgraph/events/x", `{"value":`, Event{}, true},
		{"no predicate", "questgraph/events/", "1", Event{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := Decode(tt.topic, []byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestBridge_DrivesInstances(t *testing.T) {
	ctx := context.Background()
	exec, defID := newExecutor(t)
	var ids []string
	for n := 0; n < 2; n++ {
		id, err := exec.Create(ctx, defID)
		require.NoError(t, err)
		_, err = exec.Start(ctx, id)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var outcomes []domain.Outcome
	bridge := NewBridge(exec, WithOutcomeHandler(func(o domain.Outcome) { outcomes = append(outcomes, o) }))
	broker := newMockBroker()
	require.NoError(t, bridge.Subscribe(broker, "questgraph/events/#", 1))

	broker.publish("questgraph/events/#", "questgraph/events/talked", "true")
	assert.Len(t, outcomes, 2, "value payloads are broadcast")

	outcomes = nil
	broker.publish("questgraph/events/#", "questgraph/events",
		`{"instance":"`+ids[0]+`","predicate":"kills","value":3}`)
	require.Len(t, outcomes, 1)
	assert.Equal(t, domain.StatusSucceeded, outcomes[0].Status)
	assert.Equal(t, []string{"won"}, outcomes[0].Entered, "wolves was entered by the broadcast")

	other, err := exec.State(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, other.Status)

	outcomes = nil
	broker.publish("questgraph/events/#", "questgraph/events/kills", `{"value":[1,2]}`)
	broker.publish("questgraph/events/#", "questgraph/events", `{"instance":"ghost","predicate":"kills","value":1}`)
	assert.Empty(t, outcomes, "bad values and unknown instances are dropped")
}

func TestBridge_SubscribeErrors(t *testing.T) {
	exec, _ := newExecutor(t)
	bridge := NewBridge(exec)

	broker := newMockBroker()
	broker.token = &mockToken{timeout: true}
	err := bridge.Subscribe(broker, "questgraph/events/#", 1)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "subscribe", te.Op)

	broker.token = &mockToken{err: errors.New("not authorized")}
	err = bridge.Subscribe(broker, "questgraph/events/#", 1)
	assert.ErrorContains(t, err, "not authorized")
}

func TestBrokerURL(t *testing.T) {
	t.Setenv("MQTT_URL", "tcp://broker:1883")
	assert.Equal(t, "tcp://broker:1883", BrokerURL())
	assert.Equal(t, "tcp://broker:1883", NewClient("", "test").Broker())
	assert.Equal(t, "tcp://other:1883", NewClient("tcp://other:1883", "test").Broker())
}
