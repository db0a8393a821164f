package mirror

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/homematrix/panel-core/internal/infrastructure/config"
	"github.com/homematrix/panel-core/internal/infrastructure/logging"
)

const (
	// connectTimeout bounds the initial connection attempt.
	connectTimeout = 10 * time.Second

	// publishTimeout bounds the wait for broker acknowledgment.
	publishTimeout = 5 * time.Second

	// disconnectQuiesce is how long Close waits for in-flight operations,
	// in milliseconds as paho expects.
	disconnectQuiesce = 1000

	// keepAlive is the MQTT keepalive interval.
	keepAlive = 60 * time.Second

	// maxQoS is the highest QoS level MQTT defines.
	maxQoS = 2

	// maxPayloadSize caps outgoing payloads at 1MB, matching common
	// broker defaults.
	maxPayloadSize = 1 << 20
)

// MessageHandler is invoked for each received message. Paho calls handlers
// on its own goroutines; they must not block for long.
type MessageHandler func(topic string, payload []byte) error

// subscription is tracked so it can be restored after a reconnect.
type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// Mirror is a connected MQTT mirror client.
//
// All methods are safe for concurrent use. Subscriptions survive broker
// reconnects; retained state topics mean late subscribers catch up without
// any replay logic here.
type Mirror struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MirrorConfig
	log     *logging.Logger

	subscriptions map[string]subscription
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex
}

// Connect establishes the broker connection, registers the Last Will and
// Testament on the system status topic, and publishes the online status.
// The returned Mirror reconnects automatically with exponential backoff.
func Connect(cfg config.MirrorConfig, log *logging.Logger) (*Mirror, error) {
	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	m := &Mirror{
		cfg:           cfg,
		options:       opts,
		log:           log,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		m.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		m.handleDisconnect(err)
	})

	m.client = pahomqtt.NewClient(opts)
	token := m.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired
	// yet, so mark connected here as well.
	m.connMu.Lock()
	m.connected = true
	m.connMu.Unlock()

	return m, nil
}

func (m *Mirror) handleConnect() {
	m.connMu.Lock()
	m.connected = true
	m.connMu.Unlock()

	m.restoreSubscriptions()

	topic := Topics{}.SystemStatus()
	m.client.Publish(topic, byte(m.cfg.QoS), true, buildStatusPayload("online", m.cfg.Broker.ClientID, ""))

	m.log.Info("mirror connected", "client_id", m.cfg.Broker.ClientID)
}

func (m *Mirror) handleDisconnect(err error) {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	m.log.Warn("mirror connection lost", "error", err)
}

// restoreSubscriptions re-subscribes every tracked topic after a reconnect.
// Errors are ignored here; paho retries the connection and we get another
// chance on the next OnConnect.
func (m *Mirror) restoreSubscriptions() {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for _, sub := range m.subscriptions {
		m.client.Subscribe(sub.topic, sub.qos, m.wrapHandler(sub.handler))
	}
}

// Publish sends a message to the broker and waits for acknowledgment.
func (m *Mirror) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !m.IsConnected() {
		return ErrNotConnected
	}

	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Subscribe registers a handler for a topic pattern. Wildcards (+, #) work
// as usual. The subscription is restored automatically on reconnect.
func (m *Mirror) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !m.IsConnected() {
		return ErrNotConnected
	}

	m.subMu.Lock()
	m.subscriptions[topic] = subscription{topic: topic, qos: qos, handler: handler}
	m.subMu.Unlock()

	token := m.client.Subscribe(topic, qos, m.wrapHandler(handler))
	if !token.WaitTimeout(publishTimeout) {
		m.forgetSubscription(topic)
		return fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, publishTimeout)
	}
	if err := token.Error(); err != nil {
		m.forgetSubscription(topic)
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}
	return nil
}

func (m *Mirror) forgetSubscription(topic string) {
	m.subMu.Lock()
	delete(m.subscriptions, topic)
	m.subMu.Unlock()
}

// Close publishes the graceful offline status and disconnects.
func (m *Mirror) Close() error {
	if m.client == nil {
		return nil
	}

	if m.IsConnected() {
		topic := Topics{}.SystemStatus()
		payload := buildStatusPayload("offline", m.cfg.Broker.ClientID, "graceful_shutdown")
		token := m.client.Publish(topic, byte(m.cfg.QoS), true, payload)
		token.WaitTimeout(publishTimeout)
	}

	m.client.Disconnect(disconnectQuiesce)

	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is alive.
func (m *Mirror) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mirror health check: %w", ctx.Err())
	default:
	}
	if !m.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (m *Mirror) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected && m.client != nil && m.client.IsConnected()
}

// wrapHandler adds panic recovery and error logging around a handler.
func (m *Mirror) wrapHandler(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("mirror handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			m.log.Warn("mirror handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// buildClientOptions maps MirrorConfig onto paho client options: broker URL
// with tcp or ssl scheme, credentials when provided, clean session, and
// auto-reconnect with exponential backoff.
func buildClientOptions(cfg config.MirrorConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetKeepAlive(keepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	return opts
}

// configureLWT arranges for the broker to publish an offline status if the
// gateway disconnects without saying goodbye.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(
		Topics{}.SystemStatus(),
		buildStatusPayload("offline", clientID, "unexpected_disconnect"),
		1,
		true,
	)
}

func buildStatusPayload(status, clientID, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`, status, clientID, reason, ts)
}
