// Command maintenance-monitor tracks device usage from MQTT and GPIO sources
// and publishes when maintenance is due.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/sweeney/maintenance-monitor/internal/config"
	"github.com/sweeney/maintenance-monitor/internal/gpio"
	"github.com/sweeney/maintenance-monitor/internal/metrics"
	"github.com/sweeney/maintenance-monitor/internal/mqtt"
	"github.com/sweeney/maintenance-monitor/internal/scheduler"
	"github.com/sweeney/maintenance-monitor/internal/status"
	"github.com/sweeney/maintenance-monitor/internal/web"
)

// msgBuffer bounds how far MQTT delivery may run ahead of the loop before
// the transport's callbacks block.
const msgBuffer = 256

func main() {
	configPath := flag.String("config", "/etc/maintenance-monitor.yaml", "Configuration file")
	broker := flag.String("broker", "", "MQTT broker address (overrides config)")
	httpAddr := flag.String("http", "", `HTTP status address (overrides config, "off" to disable)`)
	heartbeat := flag.Duration("heartbeat", -1, "Heartbeat interval (overrides config, 0 to disable)")
	printState := flag.Bool("print-state", false, "Print current GPIO source states and exit")
	verbosity := flag.Int("v", 0, "Log verbosity")

	flag.Parse()

	logger := newLogger(*verbosity)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	applyFlags(&cfg, *broker, *httpAddr, *heartbeat)

	if err := run(cfg, *printState, logger); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

// newLogger returns a logr.Logger that writes through the standard log
// package.
func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			log.Printf("%s: %s", prefix, args)
			return
		}
		log.Print(args)
	}, funcr.Options{Verbosity: verbosity})
}

func applyFlags(cfg *config.Config, broker, httpAddr string, heartbeat time.Duration) {
	if broker != "" {
		cfg.Broker = broker
	}
	switch httpAddr {
	case "":
	case "off":
		cfg.HTTP = ""
	default:
		cfg.HTTP = httpAddr
	}
	if heartbeat >= 0 {
		cfg.Heartbeat = config.Duration(heartbeat)
	}
}

func run(cfg config.Config, printState bool, logger logr.Logger) error {
	// Initialize GPIO only when a monitor reads a line.
	var reader gpio.Reader
	if pins := gpioPins(cfg); len(pins) > 0 {
		r, err := gpio.NewRealReader(cfg.GPIOChip, pins)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		defer r.Close()
		reader = r
	}

	// Print state mode
	if printState {
		if reader == nil {
			return errors.New("print-state: no gpio sources configured")
		}
		states, err := reader.Read()
		if err != nil {
			return fmt.Errorf("read gpio: %w", err)
		}
		for _, p := range gpioPins(cfg) {
			fmt.Printf("pin %d: %s\n", p.Line, gpio.StateString(states[p.Line]))
		}
		return nil
	}

	topics := mqtt.Topics{Prefix: cfg.TopicPrefix}
	client, err := mqtt.NewRealClient(mqtt.Options{
		Broker:   cfg.Broker,
		ClientID: cfg.ClientID,
		Topics:   topics,
		Log:      logger.WithName("mqtt"),
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer client.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:      cfg.Poll.D().Milliseconds(),
		DebounceMs:  cfg.Debounce.D().Milliseconds(),
		HeartbeatMs: cfg.Heartbeat.D().Milliseconds(),
		Broker:      cfg.Broker,
		HTTPPort:    cfg.HTTP,
		TopicPrefix: cfg.TopicPrefix,
	})
	m := metrics.New()

	d, err := newDaemon(cfg, client, reader, tracker, m, time.Now, logger.WithName("monitor"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.RestoreWait.D())
	err = d.restore(ctx)
	cancel()
	if err != nil {
		return err
	}

	msgs := make(chan mqtt.Message, msgBuffer)
	if err := d.subscribe(msgs); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	// Publish startup event with full status snapshot
	d.publishAll()
	d.systemEvent("STARTUP", "")

	sched := scheduler.New(logger.WithName("scheduler"))
	d.schedule(sched)
	sched.Start()
	defer sched.Stop()

	cmds := make(chan command)

	// Start HTTP status server
	if cfg.HTTP != "" {
		srv := web.New(cfg.HTTP, tracker, loopCommander{cmds: cmds}, m.Handler(), logger.WithName("http"))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "http server")
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.HTTP)
	}

	in := loopInputs{msgs: msgs, ticks: sched.C(), cmds: cmds}
	if reader != nil {
		ticker := time.NewTicker(cfg.Poll.D())
		defer ticker.Stop()
		in.poll = ticker.C
	}
	if hb := cfg.Heartbeat.D(); hb > 0 {
		ticker := time.NewTicker(hb)
		defer ticker.Stop()
		in.heartbeat = ticker.C
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	in.sig = sigCh

	logger.Info("started", "monitors", len(cfg.Monitors), "broker", cfg.Broker, "heartbeat", cfg.Heartbeat.D().String())
	return runLoop(d, in)
}
