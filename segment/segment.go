// Package segment implements the on-disk segment format: a sequence of
// compressed blocks sorted by (key, first-timestamp), followed by a
// compressed sparse index and a fixed trailer.
package segment

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/errs"
)

// magic identifies a sonnerie segment file. Exactly 8 bytes.
const magic = "sonnerie"

// version is the on-disk format version this package reads and writes.
const version = byte(1)

// DefaultBlockSize is the target uncompressed size, in bytes, a block is
// flushed at: the format hints at roughly 64KiB blocks.
const DefaultBlockSize = 64 * 1024

// trailerSize is magic(8) + version(1) + compression(1) + indexOffset(8)
// + indexSize(8) + recordCount(8). The compression byte is this
// implementation's resolution of the format's "exact compressor is
// implementation-defined" allowance: it records which compress.Type every
// block and the index in this segment were written with, so a segment
// written under one WithCompression choice stays readable regardless of
// what a later writer's default is.
const trailerSize = 8 + 1 + 1 + 8 + 8 + 8

type trailer struct {
	compression compress.Type
	indexOffset uint64
	indexSize   uint64
	recordCount uint64
}

func (t trailer) encode() []byte {
	buf := make([]byte, 0, trailerSize)
	buf = append(buf, magic...)
	buf = append(buf, version)
	buf = append(buf, byte(t.compression))
	buf = binary.LittleEndian.AppendUint64(buf, t.indexOffset)
	buf = binary.LittleEndian.AppendUint64(buf, t.indexSize)
	buf = binary.LittleEndian.AppendUint64(buf, t.recordCount)

	return buf
}

func decodeTrailer(b []byte) (trailer, error) {
	if len(b) != trailerSize {
		return trailer{}, fmt.Errorf("segment: %w: short trailer (%d bytes)", errs.ErrCorruptSegment, len(b))
	}

	if string(b[:8]) != magic {
		return trailer{}, fmt.Errorf("segment: %w: bad magic", errs.ErrCorruptSegment)
	}

	if b[8] != version {
		return trailer{}, fmt.Errorf("segment: %w: unsupported version %d", errs.ErrCorruptSegment, b[8])
	}

	return trailer{
		compression: compress.Type(b[9]),
		indexOffset: binary.LittleEndian.Uint64(b[10:18]),
		indexSize:   binary.LittleEndian.Uint64(b[18:26]),
		recordCount: binary.LittleEndian.Uint64(b[26:34]),
	}, nil
}

// indexEntry maps a block's first key to the file offset its block
// starts at.
type indexEntry struct {
	firstKey []byte
	offset   uint64
}
