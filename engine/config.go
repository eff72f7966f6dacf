package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailored-agentic-units/spillq/fifo"
	"github.com/tailored-agentic-units/spillq/pqueue"
	"github.com/tailored-agentic-units/spillq/storage"
)

// Config holds initialization parameters for every engine subsystem.
type Config struct {
	Storage  storage.Config `json:"storage"`
	Priority pqueue.Config  `json:"priority"`
	FIFO     fifo.Config    `json:"fifo"`
	Observer string         `json:"observer,omitempty"` // Name of a registered observer; empty selects "noop".
}

// DefaultConfig returns a Config with defaults for all subsystems.
func DefaultConfig() Config {
	return Config{
		Storage:  storage.DefaultConfig(),
		Priority: pqueue.DefaultConfig(),
		FIFO:     fifo.DefaultConfig(),
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Storage.Merge(&source.Storage)
	c.Priority.Merge(&source.Priority)
	c.FIFO.Merge(&source.FIFO)

	if source.Observer != "" {
		c.Observer = source.Observer
	}
}

// LoadConfig reads a JSON config file, merges it with defaults, and returns
// the resulting Config.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
