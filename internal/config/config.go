// Package config loads the daemon and monitor configuration from YAML.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/scheduler"
)

// Source selects where a monitor's raw on/off states come from. At most one
// of Topic and GPIOPin may be set.
type Source struct {
	// Topic is an MQTT topic carrying the raw state, or a JSON object with a
	// "state" field.
	Topic     string `yaml:"topic,omitempty"`
	// GPIOPin is a BCM line number; the raw state is "on" or "off".
	GPIOPin   *int   `yaml:"gpio_pin,omitempty"`
	// ActiveLow inverts the GPIO line (raw active = logical off).
	ActiveLow bool   `yaml:"active_low,omitempty"`
}

// IsZero reports whether no source is configured.
func (s Source) IsZero() bool {
	return s.Topic == "" && s.GPIOPin == nil
}

// String identifies the source for logs and for the engine.
func (s Source) String() string {
	switch {
	case s.Topic != "":
		return "mqtt:" + s.Topic
	case s.GPIOPin != nil:
		return "gpio:" + strconv.Itoa(*s.GPIOPin)
	}
	return ""
}

// Monitor is one configured maintenance monitor.
type Monitor struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name,omitempty"`
	SensorType  logic.SensorType `yaml:"sensor_type"`
	Interval    Duration         `yaml:"interval,omitempty"`
	MinInterval Duration         `yaml:"min_interval,omitempty"`
	MaxInterval Duration         `yaml:"max_interval,omitempty"`
	Count       int              `yaml:"count,omitempty"`
	Source      Source           `yaml:"source,omitempty"`
	OnStates    []string         `yaml:"on_states,omitempty"`

	// UpdateSchedule is a five-field cron expression that replaces the
	// sensor type's default update period.
	UpdateSchedule string `yaml:"update_schedule,omitempty"`

	IsOnExpression              string `yaml:"is_on_expression,omitempty"`
	MaintenanceNeededExpression string `yaml:"maintenance_needed_expression,omitempty"`
	PredictedDateExpression     string `yaml:"predicted_date_expression,omitempty"`

	// InitialLastMaintenanceDate is used until a persisted state is restored.
	InitialLastMaintenanceDate string `yaml:"initial_last_maintenance_date,omitempty"`
}

// DisplayName returns Name, or ID when unset.
func (m Monitor) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Config is the daemon configuration.
type Config struct {
	Broker      string    `yaml:"broker"`
	ClientID    string    `yaml:"client_id"`
	TopicPrefix string    `yaml:"topic_prefix"`
	HTTP        string    `yaml:"http"`
	Heartbeat   Duration  `yaml:"heartbeat"`
	// RestoreWait bounds how long startup waits for retained state messages.
	RestoreWait Duration  `yaml:"restore_wait"`
	GPIOChip    string    `yaml:"gpio_chip"`
	Poll        Duration  `yaml:"poll"`
	Debounce    Duration  `yaml:"debounce"`
	Monitors    []Monitor `yaml:"monitors"`
}

// Default returns the configuration used for any field the file omits.
func Default() Config {
	return Config{
		Broker:      "tcp://192.168.1.200:1883",
		ClientID:    "maintenance-monitor",
		TopicPrefix: "maintenance",
		HTTP:        ":80",
		Heartbeat:   Duration(15 * time.Minute),
		RestoreWait: Duration(2 * time.Second),
		GPIOChip:    "gpiochip0",
		Poll:        Duration(100 * time.Millisecond),
		Debounce:    Duration(250 * time.Millisecond),
	}
}

// Load reads and validates a configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", logic.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Validate checks every monitor. Expressions are only compiled by Build.
func (c Config) Validate() error {
	if c.TopicPrefix == "" {
		return fmt.Errorf("%w: topic_prefix is required", logic.ErrConfig)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("%w: poll must be positive", logic.ErrConfig)
	}
	seen := make(map[string]bool, len(c.Monitors))
	for i, m := range c.Monitors {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("monitor %d: %w", i, err)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate monitor id %q", logic.ErrConfig, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// Validate checks a single monitor's static configuration.
func (m Monitor) Validate() error {
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: id %q must match %s", logic.ErrConfig, m.ID, idPattern)
	}
	if !m.SensorType.Valid() {
		return fmt.Errorf("%w: %s: sensor_type %q is not one of runtime, count, fixed_interval", logic.ErrConfig, m.ID, m.SensorType)
	}
	if m.Source.Topic != "" && m.Source.GPIOPin != nil {
		return fmt.Errorf("%w: %s: source has both topic and gpio_pin", logic.ErrConfig, m.ID)
	}
	if m.UpdateSchedule != "" {
		if _, err := scheduler.ParseSpec(m.UpdateSchedule); err != nil {
			return fmt.Errorf("%w: %s: update_schedule: %v", logic.ErrConfig, m.ID, err)
		}
	}
	if m.InitialLastMaintenanceDate != "" {
		if _, err := logic.ParseDate(m.InitialLastMaintenanceDate, time.Local); err != nil {
			return fmt.Errorf("%w: %s: initial_last_maintenance_date: %v", logic.ErrConfig, m.ID, err)
		}
	}
	// Thresholds and source requirements are enforced by the engine itself.
	if _, err := logic.NewStrategy(m.strategyConfig()); err != nil {
		return fmt.Errorf("%s: %w", m.ID, err)
	}
	if m.SensorType != logic.SensorFixedInterval && m.Source.IsZero() {
		return fmt.Errorf("%w: %s: %s monitor requires a source", logic.ErrConfig, m.ID, m.SensorType)
	}
	return nil
}

func (m Monitor) strategyConfig() logic.StrategyConfig {
	return logic.StrategyConfig{
		Type:        m.SensorType,
		Interval:    m.Interval.D(),
		MinInterval: m.MinInterval.D(),
		MaxInterval: m.MaxInterval.D(),
		Count:       m.Count,
	}
}
