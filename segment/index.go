package segment

import (
	"fmt"

	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/internal/pool"
	"github.com/arloliu/sonnerie/internal/varint"
)

// encodeIndex serializes entries (already sorted by firstKey) as
// count(varint) followed by, per entry, keyLen(varint) | key | offset
// (varint), then compresses the result with codec.
func encodeIndex(entries []indexEntry, codec compress.Codec) ([]byte, error) {
	buf := pool.GetIndexBuffer()
	defer pool.PutIndexBuffer(buf)

	buf.B = varint.PutUvarint(buf.B, uint64(len(entries)))
	for _, e := range entries {
		buf.B = varint.PutUvarint(buf.B, uint64(len(e.firstKey)))
		buf.B = append(buf.B, e.firstKey...)
		buf.B = varint.PutUvarint(buf.B, e.offset)
	}

	compressed, err := codec.Compress(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("segment: compress index: %w", err)
	}

	return compressed, nil
}

// decodeIndex decompresses and parses a block index previously produced
// by encodeIndex.
func decodeIndex(compressed []byte, codec compress.Codec) ([]indexEntry, error) {
	data, err := codec.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("segment: %w: decompress index: %v", errs.ErrCorruptSegment, err)
	}

	count, n := varint.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("segment: %w: truncated index count", errs.ErrCorruptSegment)
	}
	data = data[n:]

	entries := make([]indexEntry, 0, count)
	for i := uint64(0); i < count; i++ {
		keyLen, n := varint.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("segment: %w: truncated index entry key length", errs.ErrCorruptSegment)
		}
		data = data[n:]

		if uint64(len(data)) < keyLen {
			return nil, fmt.Errorf("segment: %w: truncated index entry key", errs.ErrCorruptSegment)
		}
		key := append([]byte(nil), data[:keyLen]...)
		data = data[keyLen:]

		offset, n := varint.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("segment: %w: truncated index entry offset", errs.ErrCorruptSegment)
		}
		data = data[n:]

		entries = append(entries, indexEntry{firstKey: key, offset: offset})
	}

	return entries, nil
}
