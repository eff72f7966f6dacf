package fifo

const (
	defaultBlockBytes    = 64 << 10
	defaultSegmentBlocks = 16

	// A store needs room for at least one record in each resident block.
	minBlockRecords = 1
)

// Config holds FIFO store parameters.
type Config struct {
	// BlockBytes is the size of the head and tail blocks and the unit in which
	// the middle of the queue is spilled. Each store reserves two blocks.
	BlockBytes uint64 `json:"block_bytes,omitempty"`
	// SegmentBlocks is the number of spilled blocks written to one extent
	// before a new one is started. A segment is removed once it has been read
	// back, so disk use follows the queue's size rather than its history.
	SegmentBlocks uint64 `json:"segment_blocks,omitempty"`
}

// DefaultConfig returns the default FIFO store configuration.
func DefaultConfig() Config {
	return Config{
		BlockBytes:    defaultBlockBytes,
		SegmentBlocks: defaultSegmentBlocks,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.BlockBytes > 0 {
		c.BlockBytes = source.BlockBytes
	}
	if source.SegmentBlocks > 0 {
		c.SegmentBlocks = source.SegmentBlocks
	}
}
