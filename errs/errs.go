// Package errs defines the sentinel errors surfaced by the sonnerie storage
// engine. Callers classify failures with errors.Is against these sentinels;
// call sites wrap them with fmt.Errorf("%w: ...", errs.ErrX, detail) to add
// context without losing the underlying classification.
package errs

import "errors"

var (
	// ErrIO wraps any underlying file or pipe I/O failure.
	ErrIO = errors.New("sonnerie: io error")

	// ErrCorruptSegment is returned by SegmentReader when a segment's
	// magic, version, trailer, index, or a block's payload fails to
	// validate or decompress.
	ErrCorruptSegment = errors.New("sonnerie: corrupt segment")

	// ErrOutOfOrder is returned by SegmentWriter/TransactionWriter when an
	// incoming record's (key, timestamp) does not strictly follow the
	// previous one written in the same stream.
	ErrOutOfOrder = errors.New("sonnerie: records out of order")

	// ErrDuplicateTimestamp is returned by SegmentWriter when two records
	// sharing (key, timestamp) are written to the same segment.
	ErrDuplicateTimestamp = errors.New("sonnerie: duplicate (key, timestamp) in segment")

	// ErrFormatMismatch is returned by TransactionWriter when a record's
	// format string disagrees with the format already on record for its
	// key in the database.
	ErrFormatMismatch = errors.New("sonnerie: format mismatch for key")

	// ErrParse is surfaced by the text-ingest collaborator (textfmt) when
	// a line cannot be parsed into a record, and propagated upward by the
	// compactor's external-filter path.
	ErrParse = errors.New("sonnerie: parse error")

	// ErrClosed is returned when an operation is attempted on a writer or
	// reader that has already been closed or committed.
	ErrClosed = errors.New("sonnerie: already closed")

	// ErrLocked is returned when a compaction cannot acquire the
	// directory's advisory lock because another compaction holds it.
	ErrLocked = errors.New("sonnerie: database is locked by another compaction")
)
