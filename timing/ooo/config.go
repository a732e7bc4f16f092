package ooo

import "fmt"

// Config holds the sizing parameters of the out-of-order engine.
type Config struct {
	// PhysRegs is the number of physical registers. The first 32 hold the
	// initial architectural mappings, so this must exceed 32.
	PhysRegs int `json:"phys_regs"`

	// ROBDepth is the number of reorder buffer entries.
	ROBDepth int `json:"rob_depth"`

	// StationDepth is the number of reservation-station slots per
	// functional-unit class.
	StationDepth int `json:"station_depth"`

	// StoreQueueDepth is the number of store-queue entries.
	StoreQueueDepth int `json:"store_queue_depth"`
}

// DefaultConfig returns the default engine sizing.
func DefaultConfig() Config {
	return Config{
		PhysRegs:        64,
		ROBDepth:        16,
		StationDepth:    2,
		StoreQueueDepth: 4,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.PhysRegs <= 32 {
		return fmt.Errorf("phys_regs must exceed 32, got %d", c.PhysRegs)
	}
	if c.PhysRegs > 256 {
		return fmt.Errorf("phys_regs must not exceed 256, got %d", c.PhysRegs)
	}
	if c.ROBDepth < 2 {
		return fmt.Errorf("rob_depth must be at least 2, got %d", c.ROBDepth)
	}
	if c.StationDepth < 1 {
		return fmt.Errorf("station_depth must be at least 1, got %d", c.StationDepth)
	}
	if c.StoreQueueDepth < 1 {
		return fmt.Errorf("store_queue_depth must be at least 1, got %d", c.StoreQueueDepth)
	}
	return nil
}
