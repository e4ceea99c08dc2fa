package mqtt

import (
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

const waitTimeout = 10 * time.Second

// Client wraps a paho client with bounded waits on connect and subscribe.
type Client struct {
	client paho.Client
	broker string
	mu     sync.Mutex
}

// BrokerURL returns the broker from MQTT_URL, or the local default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a client for broker but does not connect.
// An empty broker falls back to BrokerURL.
func NewClient(broker, clientID string) *Client {
	if broker == "" {
		broker = BrokerURL()
	}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	return &Client{client: paho.NewClient(opts), broker: broker}
}

// Broker returns the broker URL the client was created for.
func (c *Client) Broker() string { return c.broker }

// Connect attempts to connect to the broker without blocking indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(waitTimeout) {
		return &TimeoutError{Op: "connect", Target: c.broker}
	}
	return token.Error()
}

// Subscribe implements Subscriber.
func (c *Client) Subscribe(topic string, qos byte, handler paho.MessageHandler) paho.Token {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client.Subscribe(topic, qos, handler)
}

// Disconnect waits up to one second for in-flight work before closing.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.client.Disconnect(1000)
}

// IsConnected reports whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// TimeoutError reports a broker operation that did not complete in time.
type TimeoutError struct {
	Op     string
	Target string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Target
}
