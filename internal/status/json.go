package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/maintenance-monitor/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	MQTT          MQTTStatus    `json:"mqtt"`
	NeededCount   int           `json:"maintenance_needed_count"`
	Monitors      []MonitorJSON `json:"monitors"`
	Config        ConfigJSON    `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// MonitorJSON is the JSON representation of one monitor. It is also the
// retained per-monitor state message; Attributes is what restore reads back.
type MonitorJSON struct {
	ID                       string            `json:"id"`
	Name                     string            `json:"name"`
	SensorType               string            `json:"sensor_type"`
	Source                   string            `json:"source,omitempty"`
	State                    string            `json:"state,omitempty"`
	IsOn                     bool              `json:"is_on"`
	MaintenanceNeeded        bool              `json:"maintenance_needed"`
	LastMaintenanceDate      string            `json:"last_maintenance_date"`
	PredictedMaintenanceDate string            `json:"predicted_maintenance_date,omitempty"`
	IntervalSeconds          int64             `json:"interval_seconds,omitempty"`
	RuntimeSeconds           *int64            `json:"runtime_seconds,omitempty"`
	Threshold                int               `json:"threshold,omitempty"`
	TurnOnCount              *int              `json:"turn_on_count,omitempty"`
	Attributes               map[string]string `json:"attributes"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs      int64  `json:"poll_ms"`
	DebounceMs  int64  `json:"debounce_ms"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPPort    string `json:"http_port"`
	TopicPrefix string `json:"topic_prefix"`
}

func buildMonitor(m MonitorSnapshot) MonitorJSON {
	out := MonitorJSON{
		ID:                  m.ID,
		Name:                m.Name,
		SensorType:          string(m.Type),
		Source:              m.Source,
		State:               m.RawState,
		IsOn:                m.On,
		MaintenanceNeeded:   m.MaintenanceNeeded,
		LastMaintenanceDate: logic.FormatDate(m.LastMaintenance),
		IntervalSeconds:     int64(m.Interval / time.Second),
		Attributes:          m.Attributes,
	}
	if m.HasPredicted {
		out.PredictedMaintenanceDate = logic.FormatDate(m.Predicted)
	}
	switch m.Type {
	case logic.SensorRuntime:
		secs := int64(m.Accumulated / time.Second)
		out.RuntimeSeconds = &secs
	case logic.SensorCount:
		n := m.TurnOnCount
		out.Threshold = m.Threshold
		out.TurnOnCount = &n
	}
	if out.Attributes == nil {
		out.Attributes = map[string]string{}
	}
	return out
}

func buildInner(snap Snapshot) StatusInner {
	monitors := make([]MonitorJSON, 0, len(snap.Monitors))
	for _, m := range snap.Monitors {
		monitors = append(monitors, buildMonitor(m))
	}
	return StatusInner{
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		NeededCount:   snap.NeededCount(),
		Monitors:      monitors,
		Config: ConfigJSON{
			PollMs:      snap.Config.PollMs,
			DebounceMs:  snap.Config.DebounceMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPPort:    snap.Config.HTTPPort,
			TopicPrefix: snap.Config.TopicPrefix,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatMonitorState returns the retained per-monitor state payload.
func FormatMonitorState(m MonitorSnapshot) []byte {
	data, _ := json.Marshal(buildMonitor(m))
	return data
}

// ParseAttributes extracts the persisted state map from a retained monitor
// state payload.
func ParseAttributes(payload []byte) (map[string]string, error) {
	var m struct {
		Attributes map[string]any `json:"attributes"`
	}
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("parse state payload: %w", err)
	}
	if m.Attributes == nil {
		return nil, errors.New("parse state payload: no attributes")
	}
	// Hand-edited retained messages may carry numbers; the codec wants
	// strings.
	out := make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		switch v := v.(type) {
		case string:
			out[k] = v
		case nil:
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}
