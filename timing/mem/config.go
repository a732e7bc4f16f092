package mem

import (
	"encoding/json"
	"fmt"
	"os"
)

// LatencyConfig holds memory-system latency values in cycles.
type LatencyConfig struct {
	// LoadLatency is the cycles from load-request acceptance to response.
	// When a cache is attached, this is the floor latency; the cache model
	// may report a larger value on a miss.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the cycles from store-request acceptance to the
	// completion acknowledgment.
	StoreLatency uint64 `json:"store_latency"`
}

// DefaultLatencyConfig returns a LatencyConfig with small SRAM-like
// latencies matching a tightly coupled on-chip memory.
func DefaultLatencyConfig() *LatencyConfig {
	return &LatencyConfig{
		LoadLatency:  2,
		StoreLatency: 2,
	}
}

// LoadLatencyConfig loads a LatencyConfig from a JSON file. Missing fields
// keep their default values.
func LoadLatencyConfig(path string) (*LatencyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read latency config file: %w", err)
	}

	config := DefaultLatencyConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse latency config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a LatencyConfig to a JSON file.
func (c *LatencyConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal latency config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write latency config: %w", err)
	}
	return nil
}
