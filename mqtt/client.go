package mqtt

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	paho "github.com/eclipse/paho.mqtt.golang"
)

const (
	connectTimeout    = 10 * time.Second
	publishTimeout    = 5 * time.Second
	subscribeTimeout  = 10 * time.Second
	disconnectQuiesce = 250
)

// MessageHandler handles a message received on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string

	// WillTopic receives WillPayload, retained, when the connection is
	// lost without a clean disconnect.
	WillTopic   string
	WillPayload string
}

// Client is a MQTT connection that re-subscribes its topics after every
// reconnect.
type Client struct {
	client paho.Client
	logger *log.Logger

	mu        sync.Mutex
	handlers  map[string]MessageHandler
	onConnect []func()
}

func NewClient(opts Options) *Client {
	mc := &Client{
		logger: log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			Prefix:          "mqtt",
			Level:           log.GetLevel(),
		}),
		handlers: map[string]MessageHandler{},
	}

	options := paho.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(30 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetOnConnectHandler(mc.onConnUp).
		SetConnectionLostHandler(mc.onConnLost)
	if opts.Username != "" {
		options = options.SetUsername(opts.Username).SetPassword(opts.Password)
	}
	if opts.WillTopic != "" {
		options = options.SetWill(opts.WillTopic, opts.WillPayload, 1, true)
	}
	mc.client = paho.NewClient(options)
	return mc
}

func (mc *Client) onConnUp(c paho.Client) {
	mc.logger.Info("connected to broker")

	mc.mu.Lock()
	for topic, fn := range mc.handlers {
		if err := wait(c.Subscribe(topic, 1, wrap(fn)), subscribeTimeout); err != nil {
			mc.logger.Error("failed to subscribe", "topic", topic, "err", err)
		}
	}
	hooks := append([]func(){}, mc.onConnect...)
	mc.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// OnConnect registers fn to run after every (re)connection, once the topics
// are subscribed again. The broker may have replaced retained messages with
// the will in the meantime.
func (mc *Client) OnConnect(fn func()) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.onConnect = append(mc.onConnect, fn)
}

func (mc *Client) onConnLost(_ paho.Client, err error) {
	mc.logger.Warn("connection to broker lost", "err", err)
}

// Connect connects to the broker. With connect retry enabled the token only
// completes once the first connection succeeds, so a timeout is not fatal:
// the client keeps trying in the background.
func (mc *Client) Connect() error {
	mc.logger.Debug("connecting")
	tk := mc.client.Connect()
	if !tk.WaitTimeout(connectTimeout) {
		mc.logger.Warn("broker not reachable yet, retrying in the background")
		return nil
	}
	if err := tk.Error(); err != nil {
		return fmt.Errorf("could not connect to broker: %w", err)
	}
	return nil
}

// Publish publishes payload with QoS 1.
func (mc *Client) Publish(topic string, retained bool, payload []byte) error {
	mc.logger.Debug("publish", "topic", topic, "payload", string(payload))
	if err := wait(mc.client.Publish(topic, 1, retained, payload), publishTimeout); err != nil {
		return fmt.Errorf("could not publish to %s: %w", topic, err)
	}
	return nil
}

// PublishJSON publishes v encoded as JSON.
func (mc *Client) PublishJSON(topic string, retained bool, v any) error {
	bts, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("could not encode payload for %s: %w", topic, err)
	}
	return mc.Publish(topic, retained, bts)
}

// Subscribe registers fn for topic. The subscription is renewed on every
// reconnect.
func (mc *Client) Subscribe(topic string, fn MessageHandler) error {
	mc.mu.Lock()
	mc.handlers[topic] = fn
	mc.mu.Unlock()

	if !mc.client.IsConnectionOpen() {
		return nil
	}
	if err := wait(mc.client.Subscribe(topic, 1, wrap(fn)), subscribeTimeout); err != nil {
		return fmt.Errorf("could not subscribe to %s: %w", topic, err)
	}
	return nil
}

func (mc *Client) Disconnect() {
	mc.client.Disconnect(disconnectQuiesce)
	mc.logger.Info("disconnected from broker")
}

func wrap(fn MessageHandler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		fn(msg.Topic(), msg.Payload())
	}
}

func wait(tk paho.Token, timeout time.Duration) error {
	if !tk.WaitTimeout(timeout) {
		return fmt.Errorf("timed out after %s", timeout)
	}
	return tk.Error()
}
