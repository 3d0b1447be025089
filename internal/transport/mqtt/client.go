// Package mqtt wraps the paho client behind the small surface the dispatch
// engine needs: subscribe on connect, deliver messages in order, publish.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// Config represents a config.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Filters   []string
	QoS       byte
}

// Callbacks represents a callbacks.
type Callbacks struct {
	OnMessage        func(topic string, payload []byte)
	OnConnected      func()
	OnConnectionLost func(err error)
}

// Client represents a client.
type Client struct {
	cfg       Config
	logger    *zap.Logger
	callbacks Callbacks
	conn      pahomqtt.Client
}

// NewClient executes the newClient function.
func NewClient(cfg Config, callbacks Callbacks, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &Client{
		cfg:       cfg,
		logger:    logger,
		callbacks: callbacks,
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.BrokerURL)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetOrderMatters(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)

	client.conn = pahomqtt.NewClient(opts)
	return client
}

// Connect blocks until the broker accepts the connection, the token fails,
// or ctx is done. Subscriptions are established by the connect handler and
// re-established after every reconnect.
func (c *Client) Connect(ctx context.Context) error {
	token := c.conn.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect to broker %s: %w", c.cfg.BrokerURL, err)
	}
	return nil
}

// Publish sends payload to topic and waits for the broker to take it.
func (c *Client) Publish(topic string, payload []byte) error {
	token := c.conn.Publish(topic, c.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// IsConnected executes the isConnected method.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close executes the close method.
func (c *Client) Close() {
	c.conn.Disconnect(250)
}

func (c *Client) onConnect(conn pahomqtt.Client) {
	filters := make(map[string]byte, len(c.cfg.Filters))
	for _, filter := range c.cfg.Filters {
		filters[filter] = c.cfg.QoS
	}
	if len(filters) > 0 {
		token := conn.SubscribeMultiple(filters, c.onMessage)
		if !token.WaitTimeout(connectTimeout) || token.Error() != nil {
			c.logger.Error("subscribe failed", zap.Strings("filters", c.cfg.Filters), zap.Error(token.Error()))
			return
		}
	}
	c.logger.Info("connected to broker",
		zap.String("broker", c.cfg.BrokerURL),
		zap.Strings("filters", c.cfg.Filters),
	)
	if c.callbacks.OnConnected != nil {
		c.callbacks.OnConnected()
	}
}

func (c *Client) onConnectionLost(_ pahomqtt.Client, err error) {
	c.logger.Warn("broker connection lost", zap.Error(err))
	if c.callbacks.OnConnectionLost != nil {
		c.callbacks.OnConnectionLost(err)
	}
}

func (c *Client) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	if c.callbacks.OnMessage != nil {
		c.callbacks.OnMessage(msg.Topic(), msg.Payload())
	}
}
