// Command sonnerie is the CLI front-end for the sonnerie timeseries
// store: add records from stdin, read them back as text, and compact a
// database's transactions.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/arloliu/sonnerie/compact"
	"github.com/arloliu/sonnerie/database"
	"github.com/arloliu/sonnerie/record"
	"github.com/arloliu/sonnerie/textfmt"
	"github.com/arloliu/sonnerie/txn"
)

type nextFunc func() (record.Record, bool, error)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "add":
		err = runAdd(os.Args[2:])
	case "read":
		err = runRead(os.Args[2:])
	case "compact":
		err = runCompact(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "sonnerie:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "A command must be specified (read, add, compact)")
}

func runAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	dir := fs.String("dir", "", "store data here in this directory")
	format := fs.String("format", "", "the format string shared by every record on stdin")
	tsFormat := fs.String("timestamp-format", "", "strftime format for input timestamps (default: nanoseconds)")
	nocheck := fs.Bool("unsafe-nocheck", false, "suppress the format coherency check")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if *format == "" {
		return fmt.Errorf("--format is required")
	}

	db, err := database.Open(*dir)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	var txOpts []txn.Option
	if *nocheck {
		txOpts = append(txOpts, txn.WithNoFormatCheck())
	}

	tw, err := txn.NewTx(*dir, db, txOpts...)
	if err != nil {
		return err
	}

	opts := textfmt.Options{TimestampMode: textfmt.Nanos}
	if *tsFormat != "" {
		opts.TimestampMode = textfmt.Strftime
		opts.Layout = textfmt.TranslateStrftime(*tsFormat)
	}

	err = textfmt.ScanLines(os.Stdin, func(line string) error {
		rec, err := textfmt.Parse(line, *format, opts)
		if err != nil {
			return err
		}
		return tw.AddRecord(rec.Key, rec.Timestamp, rec.Format, rec.Value)
	})
	if err != nil {
		_ = tw.Abort()
		return err
	}

	_, err = tw.Commit()
	return err
}

func runRead(args []string) error {
	fs := flag.NewFlagSet("read", flag.ExitOnError)
	dir := fs.String("dir", "", "store data here in this directory")
	printFormat := fs.Bool("print-format", false, "output the line format after the timestamp for each record")
	tsFormat := fs.String("timestamp-format", "%F %T", `instead of "%F %T", use this strftime format`)
	tsNanos := fs.Bool("timestamp-nanos", false, "print timestamps as nanoseconds since the unix epoch")
	tsSeconds := fs.Bool("timestamp-seconds", false, "print timestamps as seconds since the unix epoch")
	before := fs.String("before", "", "read values before (but not including) this key")
	after := fs.String("after", "", "read values after (and including) this key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	filter := ""
	if fs.NArg() > 0 {
		filter = fs.Arg(0)
	}

	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}
	if filter == "" && *before == "" && *after == "" {
		return fmt.Errorf("one of a filter, --before, or --after is required")
	}

	db, err := database.Open(*dir)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	opts := textfmt.Options{IncludeFormat: *printFormat}
	switch {
	case *tsNanos:
		opts.TimestampMode = textfmt.Nanos
	case *tsSeconds:
		opts.TimestampMode = textfmt.Seconds
	default:
		opts.TimestampMode = textfmt.Strftime
		opts.Layout = textfmt.TranslateStrftime(*tsFormat)
	}

	next, err := readerFor(db, filter, *before, *after)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush() //nolint:errcheck

	for {
		rec, ok, err := next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := textfmt.Print(w, rec, opts); err != nil {
			return err
		}
	}
}

func readerFor(db *database.Reader, filter, before, after string) (nextFunc, error) {
	switch {
	case filter != "":
		fi, err := db.GetFilter(filter)
		if err != nil {
			return nil, err
		}
		return fi.Next, nil
	case after != "" && before != "":
		mi, err := db.Range([]byte(after), []byte(before))
		if err != nil {
			return nil, err
		}
		return mi.Next, nil
	case after != "":
		mi, err := db.Range([]byte(after), nil)
		if err != nil {
			return nil, err
		}
		return mi.Next, nil
	case before != "":
		mi, err := db.Range(nil, []byte(before))
		if err != nil {
			return nil, err
		}
		return mi.Next, nil
	default:
		return nil, fmt.Errorf("no range specified")
	}
}

func runCompact(args []string) error {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	dir := fs.String("dir", "", "store data here in this directory")
	major := fs.Bool("major", false, "compact the entire database, including main, back into main")
	gegnum := fs.String("gegnum", "", "run this shell command as a record filter")
	tsFormat := fs.String("timestamp-format", "%FT%T", "with --gegnum, use this strftime format instead of nanoseconds")
	nocheck := fs.Bool("unsafe-nocheck", false, "suppress the format coherency check")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *dir == "" {
		return fmt.Errorf("--dir is required")
	}

	res, err := compact.Run(*dir, compact.Options{
		Major:           *major,
		Gegnum:          *gegnum,
		TimestampLayout: textfmt.TranslateStrftime(*tsFormat),
		NoFormatCheck:   *nocheck,
	})
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintln(os.Stderr, "nothing to do")
	} else {
		fmt.Fprintf(os.Stderr, "compacted %d records\n", res.RecordCount)
	}

	return nil
}
