// Package block implements the BlockCodec: encoding and decoding a run of
// records that share one key into a single length-prefixed, compressed
// block, the unit a segment file is built out of.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/internal/hash"
	"github.com/arloliu/sonnerie/internal/pool"
	"github.com/arloliu/sonnerie/internal/varint"
	"github.com/arloliu/sonnerie/record"
	"github.com/arloliu/sonnerie/schema"
)

// checksumSize is the width, in bytes, of the trailing xxhash64 digest of
// a block's compressed payload.
const checksumSize = 8

// Encode serializes records — which must all share one key and carry
// strictly increasing timestamps — into a single block:
//
//	keyLen(varint) | key | formatLen(varint) | format | count(varint) |
//	payloadLen(varint) | compressed-payload | checksum(8-byte xxhash64)
//
// The decompressed payload is count pairs of (timestamp, value): the
// first timestamp is an absolute varint, subsequent ones are varint
// deltas from the previous record (always non-negative, since a block's
// timestamps strictly increase). Values are encoded per format: a
// fixed-width format writes every value raw and back-to-back; any
// variable-width ("s") column forces a varint length prefix on every
// record's value.
func Encode(records []record.Record, codec compress.Codec) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("block: cannot encode an empty record run")
	}

	key := records[0].Key
	format := records[0].Format

	_, fixed, err := schema.RecordWidth(format)
	if err != nil {
		return nil, fmt.Errorf("block: %w", err)
	}

	payload := pool.GetBlockBuffer()
	defer pool.PutBlockBuffer(payload)

	var prevTimestamp uint64
	for i, rec := range records {
		if i == 0 {
			payload.B = varint.PutUvarint(payload.B, rec.Timestamp)
		} else {
			if rec.Timestamp <= prevTimestamp {
				return nil, fmt.Errorf("block: %w: key %q timestamp %d after %d", errs.ErrOutOfOrder, rec.Key, rec.Timestamp, prevTimestamp)
			}
			payload.B = varint.PutUvarint(payload.B, rec.Timestamp-prevTimestamp)
		}
		prevTimestamp = rec.Timestamp

		if !fixed {
			payload.B = varint.PutUvarint(payload.B, uint64(len(rec.Value)))
		}
		payload.B = append(payload.B, rec.Value...)
	}

	compressed, err := codec.Compress(payload.Bytes())
	if err != nil {
		return nil, fmt.Errorf("block: compress payload: %w", err)
	}

	checksum := hash.Bytes(compressed)

	out := make([]byte, 0, len(key)+len(format)+len(compressed)+checksumSize+4*binary.MaxVarintLen64)
	out = varint.PutUvarint(out, uint64(len(key)))
	out = append(out, key...)
	out = varint.PutUvarint(out, uint64(len(format)))
	out = append(out, format...)
	out = varint.PutUvarint(out, uint64(len(records)))
	out = varint.PutUvarint(out, uint64(len(compressed)))
	out = append(out, compressed...)
	out = binary.LittleEndian.AppendUint64(out, checksum)

	return out, nil
}

// Decode parses a single block from the front of data, returning its
// records and the number of bytes consumed. data may contain more than
// one block back-to-back; callers re-slice by the returned length to
// advance to the next one.
func Decode(data []byte, codec compress.Codec) ([]record.Record, int, error) {
	orig := data

	keyLen, n := varint.Uvarint(data)
	if n <= 0 {
		return nil, 0, fmt.Errorf("block: %w: truncated key length", errs.ErrCorruptSegment)
	}
	data = data[n:]

	if uint64(len(data)) < keyLen {
		return nil, 0, fmt.Errorf("block: %w: truncated key", errs.ErrCorruptSegment)
	}
	key := data[:keyLen]
	data = data[keyLen:]

	formatLen, n := varint.Uvarint(data)
	if n <= 0 {
		return nil, 0, fmt.Errorf("block: %w: truncated format length", errs.ErrCorruptSegment)
	}
	data = data[n:]

	if uint64(len(data)) < formatLen {
		return nil, 0, fmt.Errorf("block: %w: truncated format", errs.ErrCorruptSegment)
	}
	format := string(data[:formatLen])
	data = data[formatLen:]

	count, n := varint.Uvarint(data)
	if n <= 0 || count == 0 {
		return nil, 0, fmt.Errorf("block: %w: invalid record count", errs.ErrCorruptSegment)
	}
	data = data[n:]

	payloadLen, n := varint.Uvarint(data)
	if n <= 0 {
		return nil, 0, fmt.Errorf("block: %w: truncated payload length", errs.ErrCorruptSegment)
	}
	data = data[n:]

	if uint64(len(data)) < payloadLen+checksumSize {
		return nil, 0, fmt.Errorf("block: %w: truncated payload", errs.ErrCorruptSegment)
	}
	compressed := data[:payloadLen]
	data = data[payloadLen:]

	wantChecksum := binary.LittleEndian.Uint64(data[:checksumSize])
	data = data[checksumSize:]

	consumed := len(orig) - len(data)

	if got := hash.Bytes(compressed); got != wantChecksum {
		return nil, 0, fmt.Errorf("block: %w: checksum mismatch for key %q", errs.ErrCorruptSegment, key)
	}

	payload, err := codec.Decompress(compressed)
	if err != nil {
		return nil, 0, fmt.Errorf("block: %w: decompress payload: %v", errs.ErrCorruptSegment, err)
	}

	_, fixed, err := schema.RecordWidth(format)
	if err != nil {
		return nil, 0, fmt.Errorf("block: %w: %v", errs.ErrCorruptSegment, err)
	}

	// key aliases data, which callers may reuse across Decode calls; copy
	// it once so every returned Record stays valid independently.
	key = append([]byte(nil), key...)

	records := make([]record.Record, 0, count)

	var timestamp uint64
	for i := uint64(0); i < count; i++ {
		delta, n := varint.Uvarint(payload)
		if n <= 0 {
			return nil, 0, fmt.Errorf("block: %w: truncated timestamp", errs.ErrCorruptSegment)
		}
		payload = payload[n:]

		if i == 0 {
			timestamp = delta
		} else {
			timestamp += delta
		}

		var value []byte
		if fixed {
			width, _, _ := schema.RecordWidth(format)
			if len(payload) < width {
				return nil, 0, fmt.Errorf("block: %w: truncated fixed-width value", errs.ErrCorruptSegment)
			}
			value = payload[:width]
			payload = payload[width:]
		} else {
			valueLen, n := varint.Uvarint(payload)
			if n <= 0 {
				return nil, 0, fmt.Errorf("block: %w: truncated value length", errs.ErrCorruptSegment)
			}
			payload = payload[n:]

			if uint64(len(payload)) < valueLen {
				return nil, 0, fmt.Errorf("block: %w: truncated value", errs.ErrCorruptSegment)
			}
			value = payload[:valueLen]
			payload = payload[valueLen:]
		}

		records = append(records, record.Record{
			Key:       key,
			Timestamp: timestamp,
			Format:    format,
			Value:     append([]byte(nil), value...),
		})
	}

	return records, consumed, nil
}
