package txn

import (
	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/internal/options"
	"github.com/arloliu/sonnerie/segment"
)

// Config controls how a Writer checks and lays out a new transaction.
type Config struct {
	noFormatCheck bool
	segmentOpts   []segment.WriterOption
}

func defaultConfig() *Config {
	return &Config{}
}

// Option represents a functional option for configuring a Writer.
type Option = options.Option[*Config]

// WithNoFormatCheck disables the per-key format-coherence check against
// the database snapshot a Writer was opened with. Mirrors the CLI's
// `--unsafe-nocheck` flag.
func WithNoFormatCheck() Option {
	return options.NoError(func(c *Config) {
		c.noFormatCheck = true
	})
}

// WithCompression selects the block-payload compressor the underlying
// segment is written with. The default is compress.LZ4.
func WithCompression(t compress.Type) Option {
	return options.NoError(func(c *Config) {
		c.segmentOpts = append(c.segmentOpts, segment.WithCompression(t))
	})
}

// WithBlockSize sets the target uncompressed block size, in bytes, the
// underlying segment is flushed at.
func WithBlockSize(n int) Option {
	return options.NoError(func(c *Config) {
		c.segmentOpts = append(c.segmentOpts, segment.WithBlockSize(n))
	})
}
