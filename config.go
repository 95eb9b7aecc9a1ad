package worksteal

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// Config holds configuration for an Executor.
type Config struct {
	// Workers is the number of worker goroutines.
	Workers int
	// LocalQueueCapacity is the size of each worker's deque. Must be a power
	// of two (at least two).
	LocalQueueCapacity int
	// MaxLIFOStreak bounds how many consecutive tasks a worker may take from
	// its warm slot before it must service the older backlog.
	MaxLIFOStreak int
	// FairnessPeriod is the tick period at which a worker polls the global
	// queue before its own deque, so externally submitted tasks cannot be
	// starved by local producers.
	FairnessPeriod int
	// Logger receives lifecycle and overflow events. The zero value logs
	// nothing.
	Logger zerolog.Logger
}

// DefaultConfig returns the standard configuration: one worker per hardware
// thread and the stock queue parameters.
func DefaultConfig() Config {
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return Config{
		Workers:            workers,
		LocalQueueCapacity: 8192,
		MaxLIFOStreak:      23,
		FairnessPeriod:     61,
		Logger:             zerolog.Nop(),
	}
}

// TinyConfig returns a configuration with small queues and short periods,
// useful for tests that need to hit capacity and fairness boundaries quickly.
func TinyConfig() Config {
	cfg := DefaultConfig()
	cfg.LocalQueueCapacity = 256
	cfg.MaxLIFOStreak = 2
	cfg.FairnessPeriod = 31
	return cfg
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("worker count must be at least 1, got %d", c.Workers)
	}
	if c.LocalQueueCapacity < 2 || !isPowerOfTwo(c.LocalQueueCapacity) {
		return fmt.Errorf("local queue capacity must be a power of two >= 2, got %d", c.LocalQueueCapacity)
	}
	if c.MaxLIFOStreak < 1 {
		return fmt.Errorf("max LIFO streak must be at least 1, got %d", c.MaxLIFOStreak)
	}
	if c.FairnessPeriod < 1 {
		return fmt.Errorf("fairness period must be at least 1, got %d", c.FairnessPeriod)
	}
	return nil
}
