package room

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// fakeToken is an already-completed mqtt.Token.
type fakeToken struct {
	err error
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t *fakeToken) Error() error { return t.err }

type publishedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// fakeBroker is an in-memory mqtt.Client that routes published samples to
// subscribed handlers, including single-level "+" wildcards.
type fakeBroker struct {
	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishErr   error
	subscribeErr error
	handlers     map[string]mqtt.MessageHandler
	published    []publishedMessage
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (b *fakeBroker) setConnected(v bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = v
}

func (b *fakeBroker) messages() []publishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishedMessage(nil), b.published...)
}

func (b *fakeBroker) filters() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.handlers))
	for f := range b.handlers {
		out = append(out, f)
	}
	return out
}

// deliver invokes every handler whose filter matches topic.
func (b *fakeBroker) deliver(topic string, payload []byte) int {
	b.mu.Lock()
	var matched []mqtt.MessageHandler
	for filter, h := range b.handlers {
		if topicMatches(filter, topic) {
			matched = append(matched, h)
		}
	}
	b.mu.Unlock()

	for _, h := range matched {
		h(b, &fakeMessage{topic: topic, payload: payload})
	}
	return len(matched)
}

func topicMatches(filter, topic string) bool {
	fp := strings.Split(filter, "/")
	tp := strings.Split(topic, "/")
	if len(fp) != len(tp) {
		return false
	}
	for i := range fp {
		if fp[i] != "+" && fp[i] != tp[i] {
			return false
		}
	}
	return true
}

func (b *fakeBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *fakeBroker) IsConnectionOpen() bool { return b.IsConnected() }

func (b *fakeBroker) Connect() mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connectErr == nil {
		b.connected = true
	}
	return &fakeToken{err: b.connectErr}
}

func (b *fakeBroker) Disconnect(uint) { b.setConnected(false) }

func (b *fakeBroker) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.connected {
		return &fakeToken{err: mqtt.ErrNotConnected}
	}
	if b.publishErr != nil {
		return &fakeToken{err: b.publishErr}
	}
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	}
	b.published = append(b.published, publishedMessage{Topic: topic, Payload: data, QoS: qos, Retain: retained})
	return &fakeToken{}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribeErr != nil {
		return &fakeToken{err: b.subscribeErr}
	}
	b.handlers[topic] = callback
	return &fakeToken{}
}

func (b *fakeBroker) SubscribeMultiple(filters map[string]byte, callback mqtt.MessageHandler) mqtt.Token {
	for f, qos := range filters {
		if tok := b.Subscribe(f, qos, callback); tok.Error() != nil {
			return tok
		}
	}
	return &fakeToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) mqtt.Token {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range topics {
		delete(b.handlers, t)
	}
	return &fakeToken{}
}

func (b *fakeBroker) AddRoute(topic string, callback mqtt.MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = callback
}

func (b *fakeBroker) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}
