package segment

import (
	"fmt"

	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/internal/options"
)

// WriterConfig configures a Writer. Build one with default values and
// WriterOptions via options.Apply, the same generic pattern the rest of
// the engine's configurable components use.
type WriterConfig struct {
	compression compress.Type
	blockSize   int
}

func defaultWriterConfig() *WriterConfig {
	return &WriterConfig{
		compression: compress.LZ4,
		blockSize:   DefaultBlockSize,
	}
}

// WriterOption represents a functional option for configuring a Writer.
type WriterOption = options.Option[*WriterConfig]

// WithCompression selects the block-payload compressor a Writer encodes
// with. The default is compress.LZ4.
func WithCompression(t compress.Type) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if _, err := compress.Get(t); err != nil {
			return err
		}

		c.compression = t

		return nil
	})
}

// WithBlockSize sets the target uncompressed size, in bytes, a block is
// flushed at. The default is DefaultBlockSize.
func WithBlockSize(n int) WriterOption {
	return options.New(func(c *WriterConfig) error {
		if n <= 0 {
			return fmt.Errorf("segment: block size must be positive, got %d", n)
		}

		c.blockSize = n

		return nil
	})
}
