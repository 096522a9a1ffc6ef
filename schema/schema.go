// Package schema interprets a record's "format" string just enough for the
// block codec to know how to delimit value bytes inside a compressed
// payload: either every record in the block has the same fixed width (no
// per-record length needed), or at least one column is variable-width and
// every record's value must carry an explicit length prefix.
//
// The engine otherwise treats format and value as opaque bytes (per the
// storage model): schema never interprets the column contents, only their
// byte widths.
package schema

import "fmt"

// column widths, in bytes. 0 means variable-width (string column).
const (
	widthU = 4 // u: one uint32
	widthU8 = 8 // U: one uint64
	widthF = 4 // f: one float32
	widthD = 8 // F: one float64 ("D" for double, since widthF is taken by 'f')
	widthB = 1 // b: one byte/bool
)

// ColumnWidth returns the byte width of a single format column letter, and
// whether that width is fixed. An unrecognized letter is an error.
func ColumnWidth(col byte) (width int, fixed bool, err error) {
	switch col {
	case 'u':
		return widthU, true, nil
	case 'U':
		return widthU8, true, nil
	case 'f':
		return widthF, true, nil
	case 'F':
		return widthD, true, nil
	case 'b':
		return widthB, true, nil
	case 's':
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("schema: unknown format column %q", col)
	}
}

// RecordWidth returns the total byte width of a record value laid out
// according to format, and whether that width is the same for every record
// sharing this format (true) or varies per record because it contains at
// least one variable-width ("s") column (false).
func RecordWidth(format string) (width int, fixed bool, err error) {
	if format == "" {
		return 0, false, fmt.Errorf("schema: empty format")
	}

	fixed = true
	for i := 0; i < len(format); i++ {
		w, colFixed, err := ColumnWidth(format[i])
		if err != nil {
			return 0, false, err
		}

		if !colFixed {
			fixed = false
			continue
		}

		width += w
	}

	return width, fixed, nil
}
