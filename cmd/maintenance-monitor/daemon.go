package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/sweeney/maintenance-monitor/internal/config"
	"github.com/sweeney/maintenance-monitor/internal/gpio"
	"github.com/sweeney/maintenance-monitor/internal/logic"
	"github.com/sweeney/maintenance-monitor/internal/metrics"
	"github.com/sweeney/maintenance-monitor/internal/mqtt"
	"github.com/sweeney/maintenance-monitor/internal/scheduler"
	"github.com/sweeney/maintenance-monitor/internal/status"
	"github.com/sweeney/maintenance-monitor/internal/web"
)

type routeKind int

const (
	routeSource routeKind = iota
	routeReset
	routeSetDate
)

type route struct {
	kind routeKind
	id   string
}

type entry struct {
	id       string
	mon      *logic.Monitor
	schedule string
	raw      string
	seen     bool // a source state has been delivered since startup
}

// daemon owns every monitor. All methods must be called from the run loop
// goroutine, except those used before the loop starts.
type daemon struct {
	entries []*entry
	byID    map[string]*entry
	routes  map[string][]route
	pins    map[int][]*entry

	topics    mqtt.Topics
	client    mqtt.Client
	reader    gpio.Reader
	debouncer *gpio.Debouncer
	tracker   *status.Tracker
	metrics   *metrics.Metrics
	now       logic.Clock
	log       logr.Logger
}

func newDaemon(cfg config.Config, client mqtt.Client, reader gpio.Reader, tracker *status.Tracker, m *metrics.Metrics, clock logic.Clock, log logr.Logger) (*daemon, error) {
	d := &daemon{
		byID:      make(map[string]*entry),
		routes:    make(map[string][]route),
		pins:      make(map[int][]*entry),
		topics:    mqtt.Topics{Prefix: cfg.TopicPrefix},
		client:    client,
		reader:    reader,
		debouncer: gpio.NewDebouncer(cfg.Debounce.D()),
		tracker:   tracker,
		metrics:   m,
		now:       clock,
		log:       log,
	}
	for _, mc := range cfg.Monitors {
		mon, err := mc.Build(clock, log)
		if err != nil {
			return nil, err
		}
		e := &entry{id: mc.ID, mon: mon, schedule: mc.UpdateSchedule}
		d.entries = append(d.entries, e)
		d.byID[mc.ID] = e

		switch {
		case mc.Source.Topic != "":
			d.routes[mc.Source.Topic] = append(d.routes[mc.Source.Topic], route{routeSource, mc.ID})
		case mc.Source.GPIOPin != nil:
			d.pins[*mc.Source.GPIOPin] = append(d.pins[*mc.Source.GPIOPin], e)
		}
		d.routes[d.topics.Reset(mc.ID)] = append(d.routes[d.topics.Reset(mc.ID)], route{routeReset, mc.ID})
		d.routes[d.topics.SetDate(mc.ID)] = append(d.routes[d.topics.SetDate(mc.ID)], route{routeSetDate, mc.ID})
	}
	if len(d.pins) > 0 && reader == nil {
		return nil, fmt.Errorf("%w: gpio sources configured without a gpio reader", logic.ErrConfig)
	}
	return d, nil
}

// gpioPins lists the lines the configuration reads.
func gpioPins(cfg config.Config) []gpio.Pin {
	var pins []gpio.Pin
	seen := make(map[int]bool)
	for _, m := range cfg.Monitors {
		if p := m.Source.GPIOPin; p != nil && !seen[*p] {
			seen[*p] = true
			pins = append(pins, gpio.Pin{Line: *p, ActiveLow: m.Source.ActiveLow})
		}
	}
	sort.Slice(pins, func(i, j int) bool { return pins[i].Line < pins[j].Line })
	return pins
}

// restore applies the retained state message of every monitor, waiting at
// most until ctx is done.
func (d *daemon) restore(ctx context.Context) error {
	topics := make([]string, len(d.entries))
	for i, e := range d.entries {
		topics[i] = d.topics.State(e.id)
	}
	payloads, err := mqtt.CollectRetained(ctx, d.client, topics)
	if err != nil {
		return fmt.Errorf("collect retained state: %w", err)
	}
	for _, e := range d.entries {
		p, ok := payloads[d.topics.State(e.id)]
		if !ok {
			d.log.Info("no saved state", "monitor", e.id)
			continue
		}
		attrs, err := status.ParseAttributes(p)
		if err != nil {
			d.log.Error(err, "ignoring saved state", "monitor", e.id)
			continue
		}
		// Unparsable fields are logged by the monitor; the rest still apply.
		if err := e.mon.RestoreState(attrs); err == nil {
			d.log.Info("state restored", "monitor", e.id, "last_maintenance_date", logic.FormatDate(e.mon.LastMaintenanceDate()))
		}
	}
	return nil
}

// subscribe registers every source and command topic. Handlers only forward
// to msgs; the send blocks so no message is dropped.
func (d *daemon) subscribe(msgs chan<- mqtt.Message) error {
	topics := make([]string, 0, len(d.routes))
	for t := range d.routes {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	for _, t := range topics {
		if err := d.client.Subscribe(t, 1, func(m mqtt.Message) { msgs <- m }); err != nil {
			return err
		}
	}
	return nil
}

// schedule registers the periodic update of each monitor.
func (d *daemon) schedule(s *scheduler.Scheduler) {
	for _, e := range d.entries {
		if e.schedule != "" {
			if err := s.Cron(e.id, e.schedule); err != nil {
				d.log.Error(err, "schedule", "monitor", e.id)
			}
			continue
		}
		s.Every(e.id, e.mon.UpdateFrequency())
	}
}

func (d *daemon) handleMessage(m mqtt.Message) {
	for _, r := range d.routes[m.Topic] {
		e := d.byID[r.id]
		switch r.kind {
		case routeSource:
			d.applySource(e, mqtt.ParseSourceState(m.Payload))
		case routeReset:
			date, err := d.commandDate(m.Payload)
			if err != nil {
				d.log.Error(err, "ignoring reset", "monitor", e.id)
				continue
			}
			d.reset(e.id, date, "mqtt")
		case routeSetDate:
			date, err := d.commandDate(m.Payload)
			if err == nil && date == nil {
				err = errors.New("empty date")
			}
			if err != nil {
				d.log.Error(err, "ignoring set_last_maintenance_date", "monitor", e.id)
				continue
			}
			d.setDate(e.id, *date)
		}
	}
}

func (d *daemon) commandDate(payload []byte) (*time.Time, error) {
	raw := mqtt.ParseDatePayload(payload)
	if raw == "" {
		return nil, nil
	}
	t, err := logic.ParseDate(raw, d.now().Location())
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// applySource feeds a raw state to a monitor. The first state after startup
// seeds the monitor; later ones are transitions from the previous raw state.
func (d *daemon) applySource(e *entry, state string) {
	if !e.seen {
		e.mon.HandleStartup(state)
		e.seen = true
	} else {
		if state == e.raw {
			return
		}
		e.mon.HandleSourceStateChange(e.raw, state)
	}
	e.raw = state
	if d.metrics != nil {
		d.metrics.Transition(e.id)
	}
	d.publish(e)
}

// handlePoll reads GPIO and applies debounced changes.
func (d *daemon) handlePoll() {
	sample, err := d.reader.Read()
	if err != nil {
		d.log.Error(err, "gpio read")
		return
	}
	for _, c := range d.debouncer.Process(sample, d.now()) {
		state := gpio.StateString(c.On)
		d.log.V(1).Info("gpio change", "line", c.Line, "state", state, "baseline", c.Baseline)
		for _, e := range d.pins[c.Line] {
			d.applySource(e, state)
		}
	}
}

func (d *daemon) handleTick(id string) {
	e, ok := d.byID[id]
	if !ok {
		return
	}
	e.mon.Update()
	d.publish(e)
}

func (d *daemon) reset(id string, date *time.Time, origin string) error {
	e, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", web.ErrUnknownMonitor, id)
	}
	e.mon.Reset(date)
	if d.metrics != nil {
		d.metrics.Reset(id, origin)
	}
	d.publish(e)
	return nil
}

func (d *daemon) setDate(id string, date time.Time) error {
	e, ok := d.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", web.ErrUnknownMonitor, id)
	}
	e.mon.SetLastMaintenanceDate(date)
	d.publish(e)
	return nil
}

func (d *daemon) handleCommand(c command) {
	var err error
	switch c.kind {
	case cmdReset:
		err = d.reset(c.id, c.date, "http")
	case cmdSetDate:
		err = d.setDate(c.id, *c.date)
	}
	c.reply <- err
}

// publish refreshes the status views of e and persists its state as the
// retained state message.
func (d *daemon) publish(e *entry) {
	snap := status.Capture(e.id, e.raw, e.mon)
	d.tracker.SetMonitor(snap)
	if d.metrics != nil {
		d.metrics.Observe(snap)
	}
	if err := d.client.Publish(d.topics.State(e.id), 1, true, status.FormatMonitorState(snap)); err != nil {
		d.log.Error(err, "publish state", "monitor", e.id)
		if d.metrics != nil {
			d.metrics.PublishFailed()
		}
	}
}

func (d *daemon) publishAll() {
	for _, e := range d.entries {
		d.publish(e)
	}
}

// systemEvent publishes a lifecycle event carrying the full status snapshot.
// Heartbeats are not retained.
func (d *daemon) systemEvent(event, reason string) {
	connected := d.client.IsConnected()
	d.tracker.SetMQTTConnected(connected)
	if d.metrics != nil {
		d.metrics.SetConnected(connected)
	}
	snap := d.tracker.Snapshot()
	err := mqtt.PublishSystem(d.client, d.topics, mqtt.SystemEvent{
		Timestamp:  d.now(),
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	})
	if err != nil {
		d.log.Error(err, "publish system event", "event", event)
		return
	}
	d.log.Info("published system event", "event", event, "maintenance_needed", snap.NeededCount())
}
