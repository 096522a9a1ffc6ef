// Package sonnerie is an embedded, append-only timeseries store: records
// are (key, timestamp, format, value) tuples, grouped into transactions
// that are merged at read time in commit order.
//
// A typical writer opens a database, starts a transaction, adds records,
// and commits:
//
//	db, err := sonnerie.Open(dir)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
//	tw, err := sonnerie.Create(dir, db)
//	if err != nil {
//		return err
//	}
//	if err := tw.AddRecord([]byte("cpu.load"), ts, "F", value); err != nil {
//		tw.Abort()
//		return err
//	}
//	if _, err := tw.Commit(); err != nil {
//		return err
//	}
//
// A reader queries the merged view of every transaction in the
// directory:
//
//	it, err := db.Get([]byte("cpu.load"))
//	for {
//		rec, ok, err := it.Next()
//		if err != nil || !ok {
//			break
//		}
//		// use rec
//	}
//
// Periodically, Compact fuses a directory's transactions into one,
// optionally major (folding into `main`) and optionally piping every
// record through an external filter command.
package sonnerie

import (
	"github.com/arloliu/sonnerie/compact"
	"github.com/arloliu/sonnerie/database"
	"github.com/arloliu/sonnerie/txn"
)

// Reader is an open-time snapshot of a database directory, merging
// `main` and every transaction present when it was opened.
type Reader = database.Reader

// Writer accumulates records for a single transaction before it is
// committed or aborted.
type Writer = txn.Writer

// Option configures a Writer. See txn.WithNoFormatCheck,
// txn.WithCompression, and txn.WithBlockSize.
type Option = txn.Option

// CompactOptions configures a Compact call. See compact.Options.
type CompactOptions = compact.Options

// CompactResult reports the outcome of a Compact call.
type CompactResult = compact.Result

// Open snapshots dir for reading, including `main` if present.
func Open(dir string) (*Reader, error) {
	return database.Open(dir)
}

// Create starts a new transaction in dir. lookup, typically the Reader
// returned by Open, supplies the format already on record for a key so a
// transaction can reject a conflicting format before it is committed; it
// may be nil to skip that check entirely.
func Create(dir string, lookup txn.FormatLookup, opts ...Option) (*Writer, error) {
	return txn.NewTx(dir, lookup, opts...)
}

// Compact fuses dir's transactions into one, per opts. See package
// compact for the major/minor and gegnum-filter semantics.
func Compact(dir string, opts CompactOptions) (CompactResult, error) {
	return compact.Run(dir, opts)
}
