package pqueue

const (
	defaultResidentBytes = 1 << 20
	defaultBlockBytes    = 64 << 10
	defaultFanIn         = 8

	minResidentRecords = 2
	minFanIn           = 2
)

// Config holds priority store parameters.
type Config struct {
	ResidentBytes uint64 `json:"resident_bytes,omitempty"` // Upper bound on the resident heap; granted from the storage budget.
	BlockBytes    uint64 `json:"block_bytes,omitempty"`    // Read and write unit for spilled runs.
	FanIn         int    `json:"fan_in,omitempty"`         // Runs per level before they are merged into one.
}

// DefaultConfig returns the default priority store configuration.
func DefaultConfig() Config {
	return Config{
		ResidentBytes: defaultResidentBytes,
		BlockBytes:    defaultBlockBytes,
		FanIn:         defaultFanIn,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.ResidentBytes > 0 {
		c.ResidentBytes = source.ResidentBytes
	}
	if source.BlockBytes > 0 {
		c.BlockBytes = source.BlockBytes
	}
	if source.FanIn > 0 {
		c.FanIn = source.FanIn
	}
}
