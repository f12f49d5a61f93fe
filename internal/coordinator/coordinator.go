package coordinator

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// ErrStopped is returned when work is submitted after the coordinator loop exited.
var ErrStopped = errors.New("coordinator stopped")

// Stats is a snapshot of coordinator counters.
type Stats struct {
	Executed uint64
}

// Coordinator owns the single serialization point: every submitted function
// runs on the coordinator goroutine, one at a time.
type Coordinator struct {
	commands chan Command
	stopped  chan struct{}
	finished chan struct{}
	log      logrus.FieldLogger
	executed uint64
}

// New creates a new Coordinator.
func New(log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		commands: make(chan Command, 100),
		stopped:  make(chan struct{}),
		finished: make(chan struct{}),
		log:      log,
	}
}

// Send submits a command to the coordinator.
func (c *Coordinator) Send(cmd Command) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}
	select {
	case c.commands <- cmd:
		return nil
	case <-c.stopped:
		return ErrStopped
	}
}

// Do runs fn on the coordinator goroutine and waits for it to return.
// Once fn has started it always runs to completion.
func (c *Coordinator) Do(ctx context.Context, fn func(ctx context.Context)) error {
	done := make(chan struct{})
	if err := c.Send(Execute{Ctx: ctx, Fn: fn, Done: done}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-c.finished:
		// The loop may have run fn while draining.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stats returns the coordinator counters.
func (c *Coordinator) Stats() (Stats, error) {
	resp := make(chan Stats, 1)
	if err := c.Send(getStatsCmd{Response: resp}); err != nil {
		return Stats{}, err
	}
	select {
	case s := <-resp:
		return s, nil
	case <-c.finished:
		select {
		case s := <-resp:
			return s, nil
		default:
			return Stats{}, ErrStopped
		}
	}
}

// Run starts the coordinator loop. It blocks until ctx is cancelled, then
// drains commands that were already queued.
func (c *Coordinator) Run(ctx context.Context) {
	c.log.Info("Coordinator started")
	for {
		select {
		case <-ctx.Done():
			close(c.stopped)
			c.drain()
			close(c.finished)
			c.log.Info("Coordinator shutting down")
			return
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		}
	}
}

func (c *Coordinator) drain() {
	for {
		select {
		case cmd := <-c.commands:
			c.handleCommand(cmd)
		default:
			return
		}
	}
}

func (c *Coordinator) handleCommand(cmd Command) {
	switch cmd := cmd.(type) {
	case Execute:
		c.execute(cmd)
	case getStatsCmd:
		cmd.Response <- Stats{Executed: c.executed}
	}
}

func (c *Coordinator) execute(cmd Execute) {
	defer close(cmd.Done)
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("Coordinator: recovered from panic in submitted work")
		}
	}()
	c.executed++
	cmd.Fn(cmd.Ctx)
}
