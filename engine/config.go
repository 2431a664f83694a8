package engine

import "time"

// Defaults for ledger construction.
const (
	DefaultWorkers    = 4
	DefaultQueueDepth = 1024
)

// Config holds configuration for the ledger.
type Config struct {
	// Workers is the fixed number of worker goroutines.
	Workers int

	// QueueDepth is the buffer size of each worker's message queue.
	QueueDepth int

	// Delay is an optional simulated service time applied by a worker after
	// each transaction, outside the state lock.
	Delay time.Duration

	// OnResult, when set, is called once per settled transaction from the
	// worker goroutine, after the state lock is released.
	OnResult ResultHandler
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:    DefaultWorkers,
		QueueDepth: DefaultQueueDepth,
	}
}

// withDefaults fills unset fields without touching explicit values.
func (c Config) withDefaults() Config {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	return c
}
