package segment

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/arloliu/sonnerie/block"
	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/record"
)

// Reader opens an already-written segment file for random-access reads:
// binary-search the sparse index to find the block a key could be in,
// then decode blocks one at a time, forward, from there.
type Reader struct {
	r           io.ReaderAt
	blocksEnd   int64
	codec       compress.Codec
	index       []indexEntry
	recordCount uint64
}

// Open validates a segment's trailer and magic/version, then loads and
// decompresses its block index into memory. size must be the exact
// length of the data r exposes.
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	if size < trailerSize {
		return nil, fmt.Errorf("segment: %w: file too small for a trailer (%d bytes)", errs.ErrCorruptSegment, size)
	}

	tbuf := make([]byte, trailerSize)
	if _, err := r.ReadAt(tbuf, size-trailerSize); err != nil {
		return nil, fmt.Errorf("segment: %w: read trailer: %v", errs.ErrIO, err)
	}

	t, err := decodeTrailer(tbuf)
	if err != nil {
		return nil, err
	}

	codec, err := compress.Get(t.compression)
	if err != nil {
		return nil, fmt.Errorf("segment: %w: %v", errs.ErrCorruptSegment, err)
	}

	blocksEnd := size - trailerSize

	if t.indexOffset > uint64(blocksEnd) || t.indexOffset+t.indexSize > uint64(blocksEnd) {
		return nil, fmt.Errorf("segment: %w: index region out of bounds", errs.ErrCorruptSegment)
	}

	indexBuf := make([]byte, t.indexSize)
	if t.indexSize > 0 {
		if _, err := r.ReadAt(indexBuf, int64(t.indexOffset)); err != nil {
			return nil, fmt.Errorf("segment: %w: read index: %v", errs.ErrIO, err)
		}
	}

	entries, err := decodeIndex(indexBuf, codec)
	if err != nil {
		return nil, err
	}

	return &Reader{
		r:           r,
		blocksEnd:   int64(t.indexOffset),
		codec:       codec,
		index:       entries,
		recordCount: t.recordCount,
	}, nil
}

// RecordCount returns the record count recorded in the trailer.
func (rd *Reader) RecordCount() uint64 { return rd.recordCount }

// find returns the index of the block a scan for key should start at,
// and whether such a block exists. A single key can span many
// consecutive single-key blocks (once it outgrows one block's target
// size), each carrying the same firstKey; find anchors on the leftmost
// of those so a forward-only Iterator sees every one of them, not just
// the last. Short of an exact firstKey match, it falls back to the
// entry with the greatest firstKey < key, the block whose later
// records may include key.
func (rd *Reader) find(key []byte) (int, bool) {
	i := sort.Search(len(rd.index), func(i int) bool {
		return bytes.Compare(rd.index[i].firstKey, key) >= 0
	})

	if i < len(rd.index) && bytes.Equal(rd.index[i].firstKey, key) {
		return i, true
	}

	if i == 0 {
		return 0, false
	}

	return i - 1, true
}

func (rd *Reader) blockRange(i int) (start, end int64) {
	start = int64(rd.index[i].offset)
	if i+1 < len(rd.index) {
		end = int64(rd.index[i+1].offset)
	} else {
		end = rd.blocksEnd
	}

	return start, end
}

func (rd *Reader) readBlock(i int) ([]record.Record, error) {
	start, end := rd.blockRange(i)

	buf := make([]byte, end-start)
	if _, err := rd.r.ReadAt(buf, start); err != nil {
		return nil, fmt.Errorf("segment: %w: read block: %v", errs.ErrIO, err)
	}

	recs, _, err := block.Decode(buf, rd.codec)
	if err != nil {
		return nil, err
	}

	return recs, nil
}

// Iterator yields records, decoding one block at a time.
type Iterator struct {
	rd       *Reader
	blockIdx int
	lo       []byte // inclusive lower bound; nil means unbounded
	hi       []byte // exclusive upper bound; nil means unbounded
	onlyKey  []byte // restrict to exactly this key; nil means unrestricted

	records []record.Record
	pos     int
	done    bool
}

// Next returns the next record, or ok=false at the end of the iteration
// (or on error, which is returned alongside).
func (it *Iterator) Next() (record.Record, bool, error) {
	for {
		if it.pos < len(it.records) {
			rec := it.records[it.pos]
			it.pos++

			if it.lo != nil && bytes.Compare(rec.Key, it.lo) < 0 {
				continue
			}
			if it.hi != nil && bytes.Compare(rec.Key, it.hi) >= 0 {
				it.done = true
				return record.Record{}, false, nil
			}
			if it.onlyKey != nil && !bytes.Equal(rec.Key, it.onlyKey) {
				it.done = true
				return record.Record{}, false, nil
			}

			return rec, true, nil
		}

		if it.done || it.blockIdx >= len(it.rd.index) {
			return record.Record{}, false, nil
		}

		recs, err := it.rd.readBlock(it.blockIdx)
		if err != nil {
			it.done = true
			return record.Record{}, false, err
		}

		it.blockIdx++
		it.records = recs
		it.pos = 0
	}
}

// Get returns an Iterator over every record stored under key.
func (rd *Reader) Get(key []byte) *Iterator {
	idx, ok := rd.find(key)
	if !ok {
		return &Iterator{rd: rd, done: true}
	}

	return &Iterator{rd: rd, blockIdx: idx, onlyKey: append([]byte(nil), key...)}
}

// Range returns an Iterator over every record with key in [lo, hi). A
// nil lo starts from the beginning; a nil hi has no upper bound.
func (rd *Reader) Range(lo, hi []byte) *Iterator {
	blockIdx := 0
	if lo != nil {
		if idx, ok := rd.find(lo); ok {
			blockIdx = idx
		}
	}

	it := &Iterator{rd: rd, blockIdx: blockIdx}
	if lo != nil {
		it.lo = append([]byte(nil), lo...)
	}
	if hi != nil {
		it.hi = append([]byte(nil), hi...)
	}

	return it
}
