package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/sweeney/maintenance-monitor/internal/mqtt"
)

type commandKind int

const (
	cmdReset commandKind = iota
	cmdSetDate
)

// command is a maintenance request from outside the loop. The loop answers
// on reply, which must be buffered.
type command struct {
	kind  commandKind
	id    string
	date  *time.Time
	reply chan error
}

// loopCommander hands HTTP commands to the run loop and waits for the result.
type loopCommander struct {
	cmds chan<- command
}

func (c loopCommander) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case c.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c loopCommander) Reset(ctx context.Context, id string, date *time.Time) error {
	return c.do(ctx, command{kind: cmdReset, id: id, date: date})
}

func (c loopCommander) SetLastMaintenanceDate(ctx context.Context, id string, date time.Time) error {
	return c.do(ctx, command{kind: cmdSetDate, id: id, date: &date})
}

// loopInputs are the event sources of runLoop. A nil channel disables that
// source.
type loopInputs struct {
	sig       <-chan os.Signal
	poll      <-chan time.Time
	msgs      <-chan mqtt.Message
	ticks     <-chan string
	cmds      <-chan command
	heartbeat <-chan time.Time
}

// runLoop processes one event at a time until a signal arrives. It is the
// only goroutine that touches monitors.
func runLoop(d *daemon, in loopInputs) error {
	for {
		select {
		case s := <-in.sig:
			d.log.Info("shutting down", "signal", s.String())
			signalName := "UNKNOWN"
			if s == syscall.SIGINT {
				signalName = "SIGINT"
			} else if s == syscall.SIGTERM {
				signalName = "SIGTERM"
			}
			d.publishAll()
			d.systemEvent("SHUTDOWN", signalName)
			return nil

		case <-in.poll:
			d.handlePoll()

		case m := <-in.msgs:
			d.handleMessage(m)

		case id := <-in.ticks:
			d.handleTick(id)

		case c := <-in.cmds:
			d.handleCommand(c)

		case <-in.heartbeat:
			d.publishAll()
			d.systemEvent("HEARTBEAT", "")
		}
	}
}
