// Package mqtt provides MQTT transport with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"
)

// Topics builds the topic names under a common prefix.
type Topics struct {
	Prefix string
}

// State is the retained per-monitor status topic.
func (t Topics) State(id string) string { return t.Prefix + "/" + id + "/state" }

// Reset is the command topic that records a maintenance.
func (t Topics) Reset(id string) string { return t.Prefix + "/" + id + "/reset" }

// SetDate is the command topic that corrects the last maintenance date.
func (t Topics) SetDate(id string) string { return t.Prefix + "/" + id + "/set_last_maintenance_date" }

// System is the topic for daemon lifecycle events.
func (t Topics) System() string { return t.Prefix + "/system" }

// Message is a received MQTT message.
type Message struct {
	Topic    string
	Payload  []byte
	Retained bool
}

// Handler is called for each message on a subscribed topic. Handlers run on
// the transport's goroutine and must not block.
type Handler func(Message)

// Client publishes and subscribes.
type Client interface {
	// Publish sends a message to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler Handler) error
	Unsubscribe(topic string) error
	ConnectionStatus
	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}
	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// PublishSystem sends a system event on the system topic with QoS 1.
func PublishSystem(c Client, topics Topics, event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	return c.Publish(topics.System(), 1, event.Retained, payload)
}

// ParseSourceState extracts a raw device state from a source payload. The
// payload is either the bare state or a JSON object with a "state" field.
func ParseSourceState(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var obj struct {
			State *string `json:"state"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err == nil && obj.State != nil {
			return strings.TrimSpace(*obj.State)
		}
	}
	return s
}

// ParseDatePayload returns the trimmed date string carried by a command, or
// "" when the payload is empty. A JSON object with a "date" field is also
// accepted.
func ParseDatePayload(payload []byte) string {
	s := strings.TrimSpace(string(payload))
	if strings.HasPrefix(s, "{") {
		var obj struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return strings.TrimSpace(obj.Date)
		}
	}
	return strings.Trim(s, `"`)
}
