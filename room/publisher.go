package room

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/kwv/roomscan/internal/logger"
)

// RoomEvent is the retained message announcing a saved room.
type RoomEvent struct {
	SessionID string             `json:"sessionId"`
	ProjectID string             `json:"projectId,omitempty"`
	Name      string             `json:"name"`
	Room      *ReconstructedRoom `json:"room"`
	RoomRoots []float64          `json:"roomRoots"`
	Timestamp int64              `json:"timestamp"`
}

// Publisher announces saved rooms on MQTT.
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	qos         byte
	retain      bool
}

// NewPublisher creates a room publisher. A nil client disables publishing.
func NewPublisher(client mqtt.Client, topicPrefix string) *Publisher {
	if topicPrefix == "" {
		topicPrefix = DefaultTopicPrefix
	}
	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		qos:         1,
		retain:      true,
	}
}

// RoomTopic returns the topic a session's room is published on.
func (p *Publisher) RoomTopic(sessionID string) string {
	return fmt.Sprintf("%s/%s/%s", p.topicPrefix, sessionID, topicRoom)
}

// PublishRoom publishes a saved room for a session.
func (p *Publisher) PublishRoom(sessionID, projectID, name string, room *ReconstructedRoom) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	event := RoomEvent{
		SessionID: sessionID,
		ProjectID: projectID,
		Name:      name,
		Room:      room,
		RoomRoots: room.RoomRoots(),
		Timestamp: time.Now().Unix(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling room event: %w", err)
	}

	topic := p.RoomTopic(sessionID)
	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	logger.Sugar.Infow("published room", "topic", topic, "height", room.Height, "length", room.Length)
	return nil
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2)
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}
