package storage

const (
	// MiB is one mebibyte.
	MiB = 1 << 20

	defaultMemoryBudget = 16 * MiB
	defaultTempSubdir   = "spillq"
)

// Config holds storage initialization parameters.
type Config struct {
	MemoryBudget uint64 `json:"memory_budget,omitempty"` // Bytes shared by the resident buffers of all stores.
	TempDir      string `json:"temp_dir,omitempty"`      // Parent of the spill directory; empty uses os.TempDir.
	TempSubdir   string `json:"temp_subdir,omitempty"`   // Created under TempDir when needed.
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		MemoryBudget: defaultMemoryBudget,
		TempSubdir:   defaultTempSubdir,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.MemoryBudget > 0 {
		c.MemoryBudget = source.MemoryBudget
	}
	if source.TempDir != "" {
		c.TempDir = source.TempDir
	}
	if source.TempSubdir != "" {
		c.TempSubdir = source.TempSubdir
	}
}
