// Package compress provides the block-payload compressors used by the
// segment format: the decompressed block payload (delta-encoded
// timestamps interleaved with value bytes) is run through one of these
// before being written to disk.
package compress

import "fmt"

// Type identifies a block-payload compression algorithm. It is stored
// verbatim in a segment's trailer so a SegmentReader knows which codec to
// use without negotiation.
type Type uint8

const (
	// None bypasses compression entirely.
	None Type = iota + 1
	// LZ4 is the default block compressor: fast enough to stay off the
	// hot write path.
	LZ4
	// S2 is klauspost's Snappy-compatible, faster-than-Snappy codec.
	S2
	// Zstd trades compression speed for ratio; best for cold segments
	// produced by major compaction.
	Zstd
)

func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case S2:
		return "s2"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// Compressor compresses a block payload before it is written to disk.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor decompresses a block payload read from disk.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. Implementations must be safe for
// concurrent use: a single Codec is shared by every block a SegmentWriter
// or SegmentReader touches.
type Codec interface {
	Compressor
	Decompressor
}

var builtinCodecs = map[Type]Codec{
	None: NewNoOpCompressor(),
	LZ4:  NewLZ4Compressor(),
	S2:   NewS2Compressor(),
	Zstd: NewZstdCompressor(),
}

// Get retrieves the built-in Codec for t.
func Get(t Type) (Codec, error) {
	codec, ok := builtinCodecs[t]
	if !ok {
		return nil, fmt.Errorf("compress: unsupported compression type %s", t)
	}

	return codec, nil
}
