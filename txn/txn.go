// Package txn builds new segment files as transactions: buffered in a
// temp file, checked against a database snapshot, and atomically
// published under a monotonic name (or a caller-chosen path, for major
// compaction's `main`).
package txn

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/internal/options"
	"github.com/arloliu/sonnerie/segment"
)

// FormatLookup resolves the format already on record for a key in an
// existing database, so a Writer can reject a record whose format
// disagrees with it. A DatabaseReader snapshot satisfies this interface;
// passing nil (or WithNoFormatCheck) skips the check entirely, e.g. for
// an empty or brand-new database.
type FormatLookup interface {
	FormatForKey(key []byte) (format string, ok bool, err error)
}

// Writer accumulates records for one new transaction. It is not safe for
// concurrent use.
type Writer struct {
	file   *os.File
	sw     *segment.Writer
	lookup FormatLookup

	noFormatCheck bool
	seen          map[string]string

	closed bool
}

// NewTx creates a new transaction: a temp file under dir wrapped by a
// SegmentWriter. lookup, if non-nil, is consulted to enforce per-key
// format coherence unless WithNoFormatCheck is given.
func NewTx(dir string, lookup FormatLookup, opts ...Option) (*Writer, error) {
	cfg := defaultConfig()
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(dir, "tmp-*")
	if err != nil {
		return nil, fmt.Errorf("txn: %w: create temp file: %v", errs.ErrIO, err)
	}

	sw, err := segment.NewWriter(f, cfg.segmentOpts...)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return nil, err
	}

	return &Writer{
		file:          f,
		sw:            sw,
		lookup:        lookup,
		noFormatCheck: cfg.noFormatCheck,
	}, nil
}

// AddRecord appends one record, enforcing intra-transaction ordering
// (via the underlying SegmentWriter) and, unless disabled, that format
// agrees with whatever this key was already written with.
func (tw *Writer) AddRecord(key []byte, timestamp uint64, format string, value []byte) error {
	if tw.closed {
		return errs.ErrClosed
	}

	if !tw.noFormatCheck {
		want, err := tw.formatFor(key)
		if err != nil {
			return err
		}
		if want != "" && want != format {
			return fmt.Errorf("txn: %w: key %q has format %q, got %q", errs.ErrFormatMismatch, key, want, format)
		}
	}

	if err := tw.sw.AddRecord(key, timestamp, format, value); err != nil {
		return err
	}

	tw.cacheFormat(key, format)

	return nil
}

func (tw *Writer) formatFor(key []byte) (string, error) {
	k := string(key)
	if f, ok := tw.seen[k]; ok {
		return f, nil
	}

	if tw.lookup == nil {
		return "", nil
	}

	f, ok, err := tw.lookup.FormatForKey(key)
	if err != nil {
		return "", fmt.Errorf("txn: %w: format lookup: %v", errs.ErrIO, err)
	}
	if !ok {
		return "", nil
	}

	tw.cacheFormat(key, f)

	return f, nil
}

func (tw *Writer) cacheFormat(key []byte, format string) {
	if tw.seen == nil {
		tw.seen = make(map[string]string)
	}
	tw.seen[string(key)] = format
}

// Commit closes, fsyncs and atomically renames the transaction to
// tx.<nanos>.<seq> under its directory, returning the final path.
func (tw *Writer) Commit() (string, error) {
	if err := tw.finish(); err != nil {
		return "", err
	}

	target := filepath.Join(filepath.Dir(tw.file.Name()), nextTxName())
	if err := os.Rename(tw.file.Name(), target); err != nil {
		return "", fmt.Errorf("txn: %w: rename to %s: %v", errs.ErrIO, target, err)
	}

	return target, nil
}

// CommitTo closes, fsyncs and atomically renames the transaction to
// path, used by major compaction to publish straight to `main`.
func (tw *Writer) CommitTo(path string) error {
	if err := tw.finish(); err != nil {
		return err
	}

	if err := os.Rename(tw.file.Name(), path); err != nil {
		return fmt.Errorf("txn: %w: rename to %s: %v", errs.ErrIO, path, err)
	}

	return nil
}

// Abort discards the transaction, removing its temp file without
// publishing it. Safe to call after a failed AddRecord.
func (tw *Writer) Abort() error {
	if tw.closed {
		return nil
	}
	tw.closed = true

	_ = tw.file.Close()

	if err := os.Remove(tw.file.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("txn: %w: remove temp file: %v", errs.ErrIO, err)
	}

	return nil
}

func (tw *Writer) finish() error {
	if tw.closed {
		return errs.ErrClosed
	}
	tw.closed = true

	if _, err := tw.sw.Finish(); err != nil {
		return err
	}

	if err := tw.file.Sync(); err != nil {
		return fmt.Errorf("txn: %w: fsync: %v", errs.ErrIO, err)
	}

	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("txn: %w: close: %v", errs.ErrIO, err)
	}

	return nil
}

var txSeq uint64

// nextTxName returns a monotonically distinguishable transaction name:
// the current time in nanoseconds plus a process-wide sequence number,
// so two commits within the same nanosecond still sort and name
// uniquely.
func nextTxName() string {
	nanos := time.Now().UnixNano()
	seq := atomic.AddUint64(&txSeq, 1)

	return fmt.Sprintf("tx.%d.%d", nanos, seq)
}
