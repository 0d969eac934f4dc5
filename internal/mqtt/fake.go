package mqtt

import "sync"

// Published is one message recorded by FakeClient.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// FakeClient records publishes and lets tests deliver messages to
// subscribers. Safe for concurrent use.
type FakeClient struct {
	mu sync.Mutex

	// Published contains every message passed to Publish, in order.
	Published []Published

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	handlers map[string]Handler
	retained map[string][]byte
}

// NewFakeClient creates a connected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Connected: true,
		handlers:  make(map[string]Handler),
		retained:  make(map[string][]byte),
	}
}

// Publish records the message. Retained messages are kept per topic and
// replayed to later subscribers, as a broker would.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	if retained {
		f.retained[topic] = payload
	}
	return nil
}

// Subscribe registers handler and immediately delivers any retained message.
func (f *FakeClient) Subscribe(topic string, _ byte, handler Handler) error {
	f.mu.Lock()
	f.handlers[topic] = handler
	payload, ok := f.retained[topic]
	f.mu.Unlock()
	if ok {
		handler(Message{Topic: topic, Payload: payload, Retained: true})
	}
	return nil
}

// Unsubscribe removes the handler for topic.
func (f *FakeClient) Unsubscribe(topic string) error {
	f.mu.Lock()
	delete(f.handlers, topic)
	f.mu.Unlock()
	return nil
}

// Deliver simulates an incoming message. It reports whether a subscriber
// received it.
func (f *FakeClient) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[topic]
	f.mu.Unlock()
	if !ok {
		return false
	}
	h(Message{Topic: topic, Payload: payload})
	return true
}

// SetRetained seeds a retained message as if a previous process had
// published it.
func (f *FakeClient) SetRetained(topic string, payload []byte) {
	f.mu.Lock()
	f.retained[topic] = payload
	f.mu.Unlock()
}

// Subscribed reports whether topic currently has a handler.
func (f *FakeClient) Subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[topic]
	return ok
}

// On returns the messages published to topic.
func (f *FakeClient) On(topic string) []Published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Published
	for _, p := range f.Published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// Close marks the client as closed.
func (f *FakeClient) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// IsConnected reports whether the fake client is "connected".
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// Reset clears recorded publishes.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	f.Published = nil
	f.PublishError = nil
	f.Closed = false
	f.mu.Unlock()
}
