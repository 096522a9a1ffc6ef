// Package database opens a directory of segment files as one ordered
// stream: `main` (if present) plus every `tx.*` transaction, merged by
// (key, timestamp) with ties broken in favor of the most recently
// committed transaction.
package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/segment"
)

// Reader is an open-time snapshot of a directory's segment files. Each
// file is opened once and kept open for the Reader's lifetime: a file
// unlinked after the snapshot was taken stays readable through its open
// descriptor, so compaction can safely remove old segments out from
// under any reader that opened before it did.
type Reader struct {
	dir   string
	paths []string // snapshot order: main (if included) first, then tx.* ascending
	files []*os.File
	segs  []*segment.Reader
}

// Open snapshots dir, including `main` if present.
func Open(dir string) (*Reader, error) {
	return open(dir, true)
}

// OpenWithoutMain snapshots dir, excluding `main` even if present — the
// view a minor compaction reads from.
func OpenWithoutMain(dir string) (*Reader, error) {
	return open(dir, false)
}

func open(dir string, includeMain bool) (*Reader, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("database: %w: read dir %s: %v", errs.ErrIO, dir, err)
	}

	hasMain := false
	var txNames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		name := e.Name()
		switch {
		case name == "main":
			hasMain = true
		case strings.HasPrefix(name, "tx."):
			txNames = append(txNames, name)
		default:
			// .compact lock file, tmp-* in-progress writes: not part of
			// a database snapshot.
		}
	}
	sort.Strings(txNames)

	var names []string
	if includeMain && hasMain {
		names = append(names, "main")
	}
	names = append(names, txNames...)

	rd := &Reader{dir: dir}
	for _, name := range names {
		full := filepath.Join(dir, name)

		f, err := os.Open(full)
		if err != nil {
			_ = rd.Close()
			return nil, fmt.Errorf("database: %w: open %s: %v", errs.ErrIO, full, err)
		}

		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			_ = rd.Close()
			return nil, fmt.Errorf("database: %w: stat %s: %v", errs.ErrIO, full, err)
		}

		sr, err := segment.Open(f, info.Size())
		if err != nil {
			_ = f.Close()
			_ = rd.Close()
			return nil, fmt.Errorf("database: open %s: %w", full, err)
		}

		rd.paths = append(rd.paths, full)
		rd.files = append(rd.files, f)
		rd.segs = append(rd.segs, sr)
	}

	return rd, nil
}

// TransactionPaths returns the snapshot's file paths, oldest (main, if
// included) first, then tx.* ascending.
func (rd *Reader) TransactionPaths() []string {
	return append([]string(nil), rd.paths...)
}

// Close releases every open file descriptor in the snapshot. Safe to
// call once iteration is finished; records yielded by iterators taken
// from this Reader must not be read after Close.
func (rd *Reader) Close() error {
	var firstErr error
	for _, f := range rd.files {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("database: %w: close: %v", errs.ErrIO, err)
		}
	}

	return firstErr
}

// FormatForKey returns the format most recently written for key,
// consulting the newest transaction in the snapshot first so a Writer
// built on this snapshot enforces coherence against the current value,
// not a stale one superseded by a later commit. Satisfies
// txn.FormatLookup.
func (rd *Reader) FormatForKey(key []byte) (string, bool, error) {
	for i := len(rd.segs) - 1; i >= 0; i-- {
		it := rd.segs[i].Get(key)

		rec, ok, err := it.Next()
		if err != nil {
			return "", false, err
		}
		if ok {
			return rec.Format, true, nil
		}
	}

	return "", false, nil
}
