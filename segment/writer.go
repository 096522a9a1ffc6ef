package segment

import (
	"bytes"
	"fmt"
	"io"

	"github.com/arloliu/sonnerie/block"
	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/internal/options"
	"github.com/arloliu/sonnerie/record"
)

// Writer builds a segment file by accepting records in (key, timestamp)
// order and flushing them into blocks, then emitting the block index and
// trailer on Finish.
//
// A Writer does not own w; callers are responsible for its lifetime
// (txn wraps one around a temp *os.File and fsyncs it before renaming).
type Writer struct {
	w         io.Writer
	codec     compress.Codec
	codecType compress.Type
	blockSize int

	offset uint64
	index  []indexEntry

	pending       []record.Record
	pendingBytes  int
	haveLast      bool
	lastKey       []byte
	lastTimestamp uint64

	recordCount uint64
	closed      bool
}

// NewWriter creates a Writer that appends blocks, index and trailer to w.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	cfg := defaultWriterConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	codec, err := compress.Get(cfg.compression)
	if err != nil {
		return nil, err
	}

	return &Writer{
		w:         w,
		codec:     codec,
		codecType: cfg.compression,
		blockSize: cfg.blockSize,
	}, nil
}

// AddRecord appends one record. Records must arrive in non-decreasing
// (key, timestamp) order; within one key, timestamps must strictly
// increase. Violating either fails with errs.ErrOutOfOrder or
// errs.ErrDuplicateTimestamp.
func (w *Writer) AddRecord(key []byte, timestamp uint64, format string, value []byte) error {
	if w.closed {
		return errs.ErrClosed
	}

	if w.haveLast {
		switch c := bytes.Compare(key, w.lastKey); {
		case c < 0:
			return fmt.Errorf("segment: %w: key %q after %q", errs.ErrOutOfOrder, key, w.lastKey)
		case c == 0:
			if timestamp == w.lastTimestamp {
				return fmt.Errorf("segment: %w: key %q timestamp %d", errs.ErrDuplicateTimestamp, key, timestamp)
			}
			if timestamp < w.lastTimestamp {
				return fmt.Errorf("segment: %w: key %q timestamp %d after %d", errs.ErrOutOfOrder, key, timestamp, w.lastTimestamp)
			}
		}
	}

	if len(w.pending) > 0 && !bytes.Equal(key, w.pending[0].Key) {
		if err := w.flush(); err != nil {
			return err
		}
	}

	w.pending = append(w.pending, record.New(key, timestamp, format, value))
	w.pendingBytes += len(key) + len(format) + len(value) + 16

	w.haveLast = true
	w.lastKey = append(w.lastKey[:0], key...)
	w.lastTimestamp = timestamp

	if w.pendingBytes >= w.blockSize {
		return w.flush()
	}

	return nil
}

// flush encodes the buffered run as one block and writes it out.
func (w *Writer) flush() error {
	if len(w.pending) == 0 {
		return nil
	}

	encoded, err := block.Encode(w.pending, w.codec)
	if err != nil {
		return fmt.Errorf("segment: %w", err)
	}

	n, err := w.w.Write(encoded)
	if err != nil {
		return fmt.Errorf("segment: %w: write block: %v", errs.ErrIO, err)
	}

	w.index = append(w.index, indexEntry{
		firstKey: append([]byte(nil), w.pending[0].Key...),
		offset:   w.offset,
	})

	w.offset += uint64(n)
	w.recordCount += uint64(len(w.pending))

	w.pending = w.pending[:0]
	w.pendingBytes = 0

	return nil
}

// Finish flushes any buffered records, writes the compressed block index
// and the trailer, and returns the total number of records written. The
// Writer must not be used afterwards.
func (w *Writer) Finish() (uint64, error) {
	if w.closed {
		return 0, errs.ErrClosed
	}
	w.closed = true

	if err := w.flush(); err != nil {
		return 0, err
	}

	indexOffset := w.offset

	encodedIndex, err := encodeIndex(w.index, w.codec)
	if err != nil {
		return 0, fmt.Errorf("segment: %w", err)
	}

	n, err := w.w.Write(encodedIndex)
	if err != nil {
		return 0, fmt.Errorf("segment: %w: write index: %v", errs.ErrIO, err)
	}
	w.offset += uint64(n)

	t := trailer{
		compression: w.codecType,
		indexOffset: indexOffset,
		indexSize:   uint64(len(encodedIndex)),
		recordCount: w.recordCount,
	}

	if _, err := w.w.Write(t.encode()); err != nil {
		return 0, fmt.Errorf("segment: %w: write trailer: %v", errs.ErrIO, err)
	}

	return w.recordCount, nil
}
