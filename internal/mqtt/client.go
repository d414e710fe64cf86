package mqtt

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"imu-recorder/internal/retry"
)

// ErrConnectTimeout is returned when the broker does not answer in time
var ErrConnectTimeout = errors.New("mqtt connect timed out")

// Client manages the MQTT connection (low-level connection management only)
// For subscribing and publishing, use Subscriber and Publisher respectively
type Client struct {
	client mqtt.Client
	config ClientConfig

	mu        sync.Mutex
	onConnect []func()
}

// ClientConfig holds MQTT client configuration
type ClientConfig struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// Timeout of a single connect, subscribe or publish round trip
	Timeout time.Duration

	// Backoff between failed connection attempts
	Backoff retry.ExponentialBackoff
}

// NewClient creates a client without connecting it. Paho reconnects on its
// own once the first Connect succeeds.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	c := &Client{config: config}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	opts.SetUsername(config.Username)
	opts.SetPassword(config.Password)
	opts.SetDefaultPublishHandler(messagePubHandler)
	opts.SetOnConnectHandler(c.handleConnect)
	opts.SetConnectionLostHandler(connectLostHandler)
	opts.SetReconnectingHandler(reconnectingHandler)
	opts.SetAutoReconnect(true)
	if config.Backoff.MaxInterval > 0 {
		opts.SetMaxReconnectInterval(config.Backoff.MaxInterval)
	}
	opts.SetConnectTimeout(config.Timeout)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	c.client = mqtt.NewClient(opts)
	return c
}

// OnConnect registers fn to run after every successful (re)connection.
// Register before calling Connect.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, fn)
}

func (c *Client) handleConnect(mqtt.Client) {
	log.Infof("MQTT Client: Connected to broker %s", c.config.Broker)

	c.mu.Lock()
	hooks := append([]func(){}, c.onConnect...)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// Connect dials the broker with exponential backoff until it succeeds, the
// configured attempts run out or ctx is done.
func (c *Client) Connect(ctx context.Context) error {
	err := c.config.Backoff.Start(ctx, "mqtt connect", func(context.Context) (bool, error) {
		token := c.client.Connect()
		if !token.WaitTimeout(c.config.Timeout) {
			return true, ErrConnectTimeout
		}
		if err := token.Error(); err != nil {
			return true, err
		}
		return false, nil
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", c.config.Broker, err)
	}
	return nil
}

// IsConnected returns whether the client is currently connected
func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

// Subscribe registers handler for topic at QoS 1
func (c *Client) Subscribe(topic string, handler mqtt.MessageHandler) error {
	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(c.config.Timeout) {
		return fmt.Errorf("subscribe to %s timed out", topic)
	}
	return token.Error()
}

// Publish sends payload to topic at QoS 1 and waits for the broker
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(c.config.Timeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	return token.Error()
}

// Close closes the MQTT client connection
func (c *Client) Close() {
	c.client.Disconnect(250)
	log.Info("MQTT Client: Disconnected")
}

// Connection event handlers
var messagePubHandler mqtt.MessageHandler = func(client mqtt.Client, msg mqtt.Message) {
	log.Debugf("MQTT: Unhandled message on topic %s", msg.Topic())
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warnf("MQTT: Connection lost: %v", err)
}

var reconnectingHandler mqtt.ReconnectHandler = func(client mqtt.Client, opts *mqtt.ClientOptions) {
	log.Info("MQTT: Reconnecting...")
}
