package pool

import "time"

// Config holds sizing and timeout policy for a Pool.
type Config struct {
	// Size is the number of connections the pool keeps around.
	// Default: 5
	Size int

	// MaxOverflow is how many extra connections may be dialed on demand
	// when all Size connections are checked out. Overflow connections are
	// closed instead of parked when released. Default: 0 (no overflow)
	MaxOverflow int

	// AcquireTimeout bounds how long Acquire waits for a free connection.
	// Zero means wait until the caller's context is done.
	AcquireTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a small repository.
func DefaultConfig() Config {
	return Config{
		Size:        5,
		MaxOverflow: 0,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Size < 1 {
		c.Size = 5
	}
	if c.MaxOverflow < 0 {
		c.MaxOverflow = 0
	}
	if c.AcquireTimeout < 0 {
		c.AcquireTimeout = 0
	}
}
