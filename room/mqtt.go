package room

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kwv/roomscan/internal/logger"
)

// Topic layout under the configured prefix:
//
//	<prefix>/<session>/session   "start" | "end" (plain or {"event": "..."})
//	<prefix>/<session>/root      RecordedPoint JSON
//	<prefix>/<session>/marker    RecordedPoint JSON
//	<prefix>/<session>/room      published by Publisher
const (
	topicSession = "session"
	topicRoot    = "root"
	topicMarker  = "marker"
	topicRoom    = "room"
)

// SampleHandler is called after a sample received over MQTT has been
// applied to the tracker. err is non-nil when decoding or appending failed.
type SampleHandler func(sessionID string, kind SampleKind, p RecordedPoint, err error)

// MQTTClient feeds capture sessions from tapped points published by AR devices.
type MQTTClient struct {
	client      mqtt.Client
	config      MQTTConfig
	tracker     *CaptureTracker
	onSample    SampleHandler
	isConnected bool
	stop        chan struct{}
	stopOnce    sync.Once
	mu          sync.RWMutex
}

// InitMQTT creates the capture client and starts connecting in the background.
// It returns nil, nil when no broker is configured.
func InitMQTT(config MQTTConfig, tracker *CaptureTracker, onSample SampleHandler) (*MQTTClient, error) {
	if config.Broker == "" {
		logger.Sugar.Info("MQTT disabled: no broker configured")
		return nil, nil
	}
	if tracker == nil {
		return nil, fmt.Errorf("MQTT enabled but no capture tracker provided")
	}
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}
	if config.ClientID == "" {
		config.ClientID = DefaultClientID
	}

	c := newMQTTClient(nil, config, tracker, onSample)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(config.ClientID)
	if config.Username != "" {
		opts.SetUsername(config.Username)
		opts.SetPassword(config.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false)
	// Samples of one session must be appended in publish order.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)

	go c.connectWithRetry()

	return c, nil
}

// newMQTTClient wires a client around an existing mqtt.Client (tests pass a fake).
func newMQTTClient(client mqtt.Client, config MQTTConfig, tracker *CaptureTracker, onSample SampleHandler) *MQTTClient {
	if config.TopicPrefix == "" {
		config.TopicPrefix = DefaultTopicPrefix
	}
	return &MQTTClient{
		client:   client,
		config:   config,
		tracker:  tracker,
		onSample: onSample,
		stop:     make(chan struct{}),
	}
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		logger.Sugar.Infow("connecting to MQTT broker", "broker", c.config.Broker)

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				logger.Sugar.Info("connected to MQTT broker")
				c.setConnected(true)
				return
			}
			logger.Sugar.Warnw("MQTT connection failed", "error", token.Error())
		} else {
			logger.Sugar.Warn("MQTT connection timeout")
		}

		logger.Sugar.Infow("retrying MQTT connection", "delay", retryDelay)
		select {
		case <-c.stop:
			return
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// SubscriptionTopics returns the topic filters the client subscribes to.
func (c *MQTTClient) SubscriptionTopics() []string {
	p := c.config.TopicPrefix
	return []string{
		p + "/+/" + topicSession,
		p + "/+/" + topicRoot,
		p + "/+/" + topicMarker,
	}
}

// onConnect is called when the MQTT connection is established
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.setConnected(true)

	for _, topic := range c.SubscriptionTopics() {
		token := client.Subscribe(topic, 1, c.handleMessage)
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			logger.Sugar.Errorw("MQTT subscribe failed", "topic", topic, "error", token.Error())
			continue
		}
		logger.Sugar.Infow("subscribed", "topic", topic)
	}
}

// onConnectionLost is called when the MQTT connection is lost
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	logger.Sugar.Warnw("MQTT connection interrupted, auto-reconnect will retry", "error", err)
	c.setConnected(false)
}

// onReconnecting is called when the client attempts to reconnect
func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	logger.Sugar.Info("MQTT reconnecting")
}

// parseTopic splits "<prefix>/<session>/<kind>" into its session and kind.
func parseTopic(prefix, topic string) (sessionID, kind string, ok bool) {
	rest, found := strings.CutPrefix(topic, prefix+"/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// handleMessage dispatches one capture message.
func (c *MQTTClient) handleMessage(client mqtt.Client, msg mqtt.Message) {
	sessionID, kind, ok := parseTopic(c.config.TopicPrefix, msg.Topic())
	if !ok {
		logger.Sugar.Warnw("ignoring message on unexpected topic", "topic", msg.Topic())
		return
	}

	switch kind {
	case topicSession:
		c.handleSessionEvent(sessionID, msg.Payload())
	case topicRoot:
		c.handleSample(sessionID, KindRoot, msg.Payload())
	case topicMarker:
		c.handleSample(sessionID, KindMarker, msg.Payload())
	default:
		logger.Sugar.Debugw("ignoring message", "topic", msg.Topic())
	}
}

type sessionEventPayload struct {
	Event string `json:"event"`
}

// parseSessionEvent accepts {"event": "start"}, "start" (JSON string) or raw start.
func parseSessionEvent(payload []byte) string {
	var ev sessionEventPayload
	if err := json.Unmarshal(payload, &ev); err == nil && ev.Event != "" {
		return strings.ToLower(ev.Event)
	}
	var plain string
	if err := json.Unmarshal(payload, &plain); err == nil {
		return strings.ToLower(strings.TrimSpace(plain))
	}
	return strings.ToLower(strings.TrimSpace(string(payload)))
}

func (c *MQTTClient) handleSessionEvent(sessionID string, payload []byte) {
	switch event := parseSessionEvent(payload); event {
	case "start":
		c.tracker.StartWithID(sessionID)
	case "end":
		if err := c.tracker.End(sessionID); err != nil {
			logger.Sugar.Warnw("cannot end session", "session", sessionID, "error", err)
		}
	default:
		logger.Sugar.Warnw("unknown session event", "session", sessionID, "event", event)
	}
}

func (c *MQTTClient) handleSample(sessionID string, kind SampleKind, payload []byte) {
	var p RecordedPoint
	err := json.Unmarshal(payload, &p)
	if err != nil {
		err = fmt.Errorf("decoding %s sample: %w", kind, err)
	} else {
		if !c.tracker.Has(sessionID) {
			logger.Sugar.Infow("sample for unknown session, starting it", "session", sessionID)
			c.tracker.StartWithID(sessionID)
		}
		p, err = c.tracker.Append(sessionID, kind, p)
	}

	if err != nil {
		if errors.Is(err, ErrSessionEnded) {
			logger.Sugar.Warnw("sample after session end dropped", "session", sessionID, "kind", kind)
		} else {
			logger.Sugar.Errorw("sample rejected", "session", sessionID, "kind", kind, "error", err)
		}
	}

	if c.onSample != nil {
		c.onSample(sessionID, kind, p, err)
	}
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

// setConnected updates the connection status
func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect stops reconnect attempts and closes the MQTT connection.
func (c *MQTTClient) Disconnect() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.client != nil && c.client.IsConnected() {
		logger.Sugar.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250)
	}
	c.setConnected(false)
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}
