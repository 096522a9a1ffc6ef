// Package compact fuses a database's transactions into one, optionally
// piping every record through an external filter process (the `gegnum`
// mechanism) so a shell command can rewrite or drop records.
//
// A compaction holds an advisory exclusive lock on the database
// directory's `.compact` file for its whole run, since two compactions
// racing to publish a new `main` or transaction would corrupt the
// snapshot a reader sees mid-run.
package compact

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/arloliu/sonnerie/database"
	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/filelock"
	"github.com/arloliu/sonnerie/textfmt"
	"github.com/arloliu/sonnerie/txn"
)

// Options configures a Run.
type Options struct {
	// Major includes `main` in the compacted snapshot and publishes the
	// result back to `main`. A minor compaction only fuses `tx.*`
	// transactions and publishes a new transaction alongside `main`.
	Major bool

	// Gegnum, if non-empty, is run as `/bin/sh -c <Gegnum>`: every
	// record in the snapshot is printed to the child's stdin in the
	// text record format, and the child's stdout is parsed back into
	// records for the compacted transaction. A non-zero exit aborts the
	// compaction without publishing anything.
	Gegnum string

	// TimestampLayout is the Go time layout (already translated from a
	// strftime format via textfmt.TranslateStrftime) used to print
	// timestamps to the Gegnum child and parse them back. Ignored when
	// Gegnum is empty.
	TimestampLayout string

	// NoFormatCheck suppresses per-key format-coherence checking on the
	// records read back from a Gegnum child, for speed.
	NoFormatCheck bool
}

// Result reports what a Run did.
type Result struct {
	RecordCount uint64
	Skipped     bool // true when there was nothing to compact
}

// Run compacts dir's database according to opts. It does not wait for a
// concurrent compaction: if another one holds dir's lock, Run fails
// with errs.ErrLocked.
func Run(dir string, opts Options) (Result, error) {
	lock, err := filelock.Acquire(filepath.Join(dir, ".compact"))
	if err != nil {
		return Result{}, err
	}
	defer lock.Unlock() //nolint:errcheck

	var db *database.Reader
	if opts.Major {
		db, err = database.Open(dir)
	} else {
		db, err = database.OpenWithoutMain(dir)
	}
	if err != nil {
		return Result{}, err
	}
	defer db.Close() //nolint:errcheck

	if opts.Gegnum == "" {
		paths := db.TransactionPaths()
		if len(paths) == 0 || (len(paths) == 1 && filepath.Base(paths[0]) == "main") {
			return Result{Skipped: true}, nil
		}
	}

	compacted, err := txn.NewTx(dir, db, txnOptionsFor(opts)...)
	if err != nil {
		return Result{}, err
	}

	var n uint64
	if opts.Gegnum != "" {
		n, err = runGegnum(db, compacted, opts)
	} else {
		n, err = copyStraight(db, compacted)
	}
	if err != nil {
		_ = compacted.Abort()
		return Result{}, err
	}

	if opts.Major {
		if err := compacted.CommitTo(filepath.Join(dir, "main")); err != nil {
			return Result{}, err
		}
	} else {
		if _, err := compacted.Commit(); err != nil {
			return Result{}, err
		}
	}

	// main plus the freshly committed segment is already a superset of
	// the pre-compaction snapshot, so a stale tx.* left behind by a
	// failed unlink does not affect correctness; log it and move on.
	pruneSnapshot(db.TransactionPaths())

	return Result{RecordCount: n}, nil
}

func txnOptionsFor(opts Options) []txn.Option {
	// Records copied straight from the snapshot were checked when first
	// written; only a Gegnum child's output is checked again.
	if opts.NoFormatCheck || opts.Gegnum == "" {
		return []txn.Option{txn.WithNoFormatCheck()}
	}
	return nil
}

// copyStraight streams every record of the snapshot into compacted
// without leaving the process, used when no external filter is given.
func copyStraight(db *database.Reader, compacted *txn.Writer) (uint64, error) {
	mi, err := db.Range(nil, nil)
	if err != nil {
		return 0, err
	}

	var n uint64
	for {
		rec, ok, err := mi.Next()
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}

		if err := compacted.AddRecord(rec.Key, rec.Timestamp, rec.Format, rec.Value); err != nil {
			return n, err
		}
		n++
	}

	return n, nil
}

// runGegnum spawns the filter command, feeding it the snapshot's records
// on a writer goroutine while the caller's goroutine parses its stdout
// back into records for compacted. Both directions use the
// self-describing text record format, since a single compaction stream
// can carry more than one key's format.
func runGegnum(db *database.Reader, compacted *txn.Writer, opts Options) (uint64, error) {
	cmd := exec.Command("/bin/sh", "-c", opts.Gegnum)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return 0, fmt.Errorf("compact: %w: gegnum stdin: %v", errs.ErrIO, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("compact: %w: gegnum stdout: %v", errs.ErrIO, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("compact: %w: starting gegnum: %v", errs.ErrIO, err)
	}

	printOpts := textfmt.Options{
		TimestampMode: textfmt.Strftime,
		Layout:        opts.TimestampLayout,
		IncludeFormat: true,
	}

	writeErrCh := make(chan error, 1)
	go func() {
		writeErrCh <- feedChild(db, stdin, printOpts)
	}()

	n, readErr := readChild(stdout, compacted, printOpts)

	writeErr := <-writeErrCh

	waitErr := cmd.Wait()

	if readErr != nil {
		return n, readErr
	}
	if writeErr != nil {
		return n, writeErr
	}
	if waitErr != nil {
		return n, fmt.Errorf("compact: %w: gegnum process: %v", errs.ErrIO, waitErr)
	}

	return n, nil
}

func feedChild(db *database.Reader, w io.WriteCloser, opts textfmt.Options) error {
	defer w.Close() //nolint:errcheck

	bw := bufio.NewWriter(w)

	mi, err := db.Range(nil, nil)
	if err != nil {
		return err
	}

	for {
		rec, ok, err := mi.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := textfmt.Print(bw, rec, opts); err != nil {
			return fmt.Errorf("compact: %w: writing to gegnum: %v", errs.ErrIO, err)
		}
	}

	return bw.Flush()
}

func readChild(r io.Reader, compacted *txn.Writer, opts textfmt.Options) (uint64, error) {
	var n uint64

	err := textfmt.ScanLines(r, func(line string) error {
		rec, err := textfmt.ParseSelfDescribing(line, opts)
		if err != nil {
			return err
		}

		if err := compacted.AddRecord(rec.Key, rec.Timestamp, rec.Format, rec.Value); err != nil {
			return err
		}
		n++

		return nil
	})

	return n, err
}

// pruneSnapshot removes every pre-compaction segment file except `main`,
// now superseded by the freshly-committed compacted transaction. A
// failed unlink is logged, not returned: the database is still correct
// with the stale file left in place, just not yet reclaimed.
func pruneSnapshot(paths []string) {
	for _, p := range paths {
		if filepath.Base(p) == "main" {
			continue
		}
		if err := os.Remove(p); err != nil {
			log.Printf("compact: removing stale segment %s: %v", p, err)
		}
	}
}
