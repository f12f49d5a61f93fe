package coordinator

import "context"

// Command is the interface for all commands sent to the coordinator.
type Command interface {
	command() // marker method
}

// Execute runs Fn on the coordinator goroutine and closes Done afterwards.
type Execute struct {
	Ctx  context.Context
	Fn   func(ctx context.Context)
	Done chan struct{}
}

func (Execute) command() {}

// getStatsCmd asks for the number of commands processed so far.
type getStatsCmd struct {
	Response chan Stats
}

func (getStatsCmd) command() {}
