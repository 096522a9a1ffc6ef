// Package textfmt implements the tab-separated text record format used
// by the `add`/`read` CLI subcommands and by a compaction's external
// filter pipe: `<key>\t<timestamp>\t[<format>\t]<col1> <col2> ...`,
// where a string column escapes spaces as `\ ` and backslashes as `\\`.
//
// The storage engine treats a record's value as one opaque byte blob;
// textfmt is what gives format meaning, packing/unpacking that blob
// into columns per the format string so it can render and parse them as
// human-readable text.
package textfmt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/arloliu/sonnerie/errs"
	"github.com/arloliu/sonnerie/record"
	"github.com/arloliu/sonnerie/schema"
)

// TimestampMode selects how Print renders a record's timestamp and how
// Parse expects to read one back.
type TimestampMode int

const (
	// Nanos prints/parses the timestamp as a plain integer, nanoseconds
	// since the Unix epoch.
	Nanos TimestampMode = iota
	// Seconds prints/parses the timestamp floored to whole seconds since
	// the Unix epoch.
	Seconds
	// Strftime prints/parses the timestamp using Layout, a Go time
	// layout already translated from a strftime-style format string via
	// TranslateStrftime.
	Strftime
)

// Options configures Print and Parse.
type Options struct {
	TimestampMode TimestampMode
	Layout        string // Go time layout, used when TimestampMode == Strftime
	IncludeFormat bool   // print the format as a third tab field (Print only)
}

// strftimeDirectives maps the subset of strftime conversion specifiers the
// `--timestamp-format` flag accepts (default "%F %T") to their Go
// reference-time layout equivalents.
var strftimeDirectives = map[byte]string{
	'F': "2006-01-02",
	'T': "15:04:05",
	'Y': "2006",
	'm': "01",
	'd': "02",
	'H': "15",
	'M': "04",
	'S': "05",
	'z': "-0700",
	'Z': "MST",
}

// TranslateStrftime converts a strftime-style format string, as accepted by
// the `--timestamp-format` flag, into the equivalent Go reference-time
// layout understood by Options.Layout. An unrecognized directive is copied
// through literally.
func TranslateStrftime(format string) string {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 >= len(format) {
			b.WriteByte(format[i])
			continue
		}

		if layout, ok := strftimeDirectives[format[i+1]]; ok {
			b.WriteString(layout)
			i++
			continue
		}

		b.WriteByte(format[i])
	}

	return b.String()
}

// Print writes rec to w in the text record format.
func Print(w io.Writer, rec record.Record, opts Options) error {
	cols, err := DecodeValue(rec.Format, rec.Value)
	if err != nil {
		return err
	}

	rendered := make([]string, len(cols))
	for i, col := range cols {
		s, err := renderColumn(rec.Format[i], col)
		if err != nil {
			return err
		}
		rendered[i] = s
	}

	ts, err := renderTimestamp(rec.Timestamp, opts)
	if err != nil {
		return err
	}

	var line string
	if opts.IncludeFormat {
		line = fmt.Sprintf("%s\t%s\t%s\t%s", rec.Key, ts, rec.Format, strings.Join(rendered, " "))
	} else {
		line = fmt.Sprintf("%s\t%s\t%s", rec.Key, ts, strings.Join(rendered, " "))
	}

	_, err = fmt.Fprintln(w, line)
	return err
}

// Parse reads one text record line using a fixed, externally-supplied
// format (the `add` subcommand's `--format` flag: every ingested line
// shares one format).
func Parse(line string, format string, opts Options) (record.Record, error) {
	fields := strings.SplitN(line, "\t", 3)
	if len(fields) != 3 {
		return record.Record{}, fmt.Errorf("textfmt: %w: expected 3 tab-separated fields, got %d", errs.ErrParse, len(fields))
	}

	return parseFields(fields[0], fields[1], format, fields[2], opts)
}

// ParseSelfDescribing reads one text record line whose third field is
// the format (the `--print-format` / gegnum round-trip shape), used
// when a single stream can carry records of more than one format.
func ParseSelfDescribing(line string, opts Options) (record.Record, error) {
	fields := strings.SplitN(line, "\t", 4)
	if len(fields) != 4 {
		return record.Record{}, fmt.Errorf("textfmt: %w: expected 4 tab-separated fields, got %d", errs.ErrParse, len(fields))
	}

	return parseFields(fields[0], fields[1], fields[2], fields[3], opts)
}

func parseFields(key, tsField, format, columnsField string, opts Options) (record.Record, error) {
	ts, err := parseTimestamp(tsField, opts)
	if err != nil {
		return record.Record{}, fmt.Errorf("textfmt: %w: timestamp %q: %v", errs.ErrParse, tsField, err)
	}

	tokens, err := splitColumns(columnsField)
	if err != nil {
		return record.Record{}, err
	}
	if len(tokens) != len(format) {
		return record.Record{}, fmt.Errorf("textfmt: %w: format %q wants %d columns, line has %d", errs.ErrParse, format, len(format), len(tokens))
	}

	cols := make([][]byte, len(tokens))
	for i, tok := range tokens {
		b, err := parseColumn(format[i], tok)
		if err != nil {
			return record.Record{}, fmt.Errorf("textfmt: %w: column %d: %v", errs.ErrParse, i, err)
		}
		cols[i] = b
	}

	value, err := EncodeValue(format, cols)
	if err != nil {
		return record.Record{}, fmt.Errorf("textfmt: %w: %v", errs.ErrParse, err)
	}

	return record.Record{Key: []byte(key), Timestamp: ts, Format: format, Value: value}, nil
}

// ScanLines calls fn for every non-empty line r yields, stopping at the
// first error fn returns or at EOF.
func ScanLines(r io.Reader, fn func(line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}

	if err := sc.Err(); err != nil {
		return fmt.Errorf("textfmt: %w: %v", errs.ErrIO, err)
	}

	return nil
}

func renderTimestamp(ts uint64, opts Options) (string, error) {
	switch opts.TimestampMode {
	case Nanos:
		return strconv.FormatUint(ts, 10), nil
	case Seconds:
		return strconv.FormatInt(int64(ts)/1e9, 10), nil
	case Strftime:
		layout := opts.Layout
		if layout == "" {
			layout = time.RFC3339
		}
		t := time.Unix(0, int64(ts)).UTC()
		return t.Format(layout), nil
	default:
		return "", fmt.Errorf("textfmt: unknown timestamp mode %d", opts.TimestampMode)
	}
}

func parseTimestamp(s string, opts Options) (uint64, error) {
	switch opts.TimestampMode {
	case Nanos:
		v, err := strconv.ParseUint(s, 10, 64)
		return v, err
	case Seconds:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, err
		}
		return uint64(v) * 1e9, nil
	case Strftime:
		layout := opts.Layout
		if layout == "" {
			layout = time.RFC3339
		}
		t, err := time.Parse(layout, s)
		if err != nil {
			return 0, err
		}
		return uint64(t.UnixNano()), nil //nolint:gosec
	default:
		return 0, fmt.Errorf("unknown timestamp mode %d", opts.TimestampMode)
	}
}

// renderColumn renders one decoded column's raw bytes as a text token.
func renderColumn(col byte, data []byte) (string, error) {
	switch col {
	case 's':
		return escape(data), nil
	case 'u':
		return strconv.FormatUint(uint64(binary.BigEndian.Uint32(data)), 10), nil
	case 'U':
		return strconv.FormatUint(binary.BigEndian.Uint64(data), 10), nil
	case 'f':
		bits := binary.BigEndian.Uint32(data)
		return strconv.FormatFloat(float64(math.Float32frombits(bits)), 'g', -1, 32), nil
	case 'F':
		bits := binary.BigEndian.Uint64(data)
		return strconv.FormatFloat(math.Float64frombits(bits), 'g', -1, 64), nil
	case 'b':
		if data[0] == 0 {
			return "0", nil
		}
		return "1", nil
	default:
		return "", fmt.Errorf("unknown format column %q", col)
	}
}

// parseColumn parses one text token into a column's raw fixed/variable
// byte encoding.
func parseColumn(col byte, tok string) ([]byte, error) {
	switch col {
	case 's':
		return unescape(tok)
	case 'u':
		v, err := strconv.ParseUint(tok, 10, 32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(v))
		return b, nil
	case 'U':
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, v)
		return b, nil
	case 'f':
		v, err := strconv.ParseFloat(tok, 32)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, math.Float32bits(float32(v)))
		return b, nil
	case 'F':
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, err
		}
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, math.Float64bits(v))
		return b, nil
	case 'b':
		if tok == "0" {
			return []byte{0}, nil
		}
		return []byte{1}, nil
	default:
		return nil, fmt.Errorf("unknown format column %q", col)
	}
}

// EncodeValue packs columns — one per format letter, already encoded to
// their fixed-width or raw-string bytes — into a single opaque value
// blob. Every variable-width column gets a 4-byte big-endian length
// header so multiple string columns can be told apart when the blob is
// split back up by DecodeValue; this convention lives entirely in
// textfmt, above the storage engine's opaque-value boundary.
func EncodeValue(format string, columns [][]byte) ([]byte, error) {
	if len(format) != len(columns) {
		return nil, fmt.Errorf("textfmt: format %q has %d columns, got %d values", format, len(format), len(columns))
	}

	var buf []byte
	for i := 0; i < len(format); i++ {
		width, fixed, err := schema.ColumnWidth(format[i])
		if err != nil {
			return nil, err
		}

		if fixed {
			if len(columns[i]) != width {
				return nil, fmt.Errorf("textfmt: column %d wants %d bytes, got %d", i, width, len(columns[i]))
			}
			buf = append(buf, columns[i]...)
			continue
		}

		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(columns[i])))
		buf = append(buf, lenBuf[:]...)
		buf = append(buf, columns[i]...)
	}

	return buf, nil
}

// DecodeValue splits a value blob previously produced by EncodeValue
// back into its per-column byte slices.
func DecodeValue(format string, value []byte) ([][]byte, error) {
	cols := make([][]byte, 0, len(format))

	off := 0
	for i := 0; i < len(format); i++ {
		width, fixed, err := schema.ColumnWidth(format[i])
		if err != nil {
			return nil, err
		}

		if fixed {
			if off+width > len(value) {
				return nil, fmt.Errorf("textfmt: %w: truncated column %d", errs.ErrParse, i)
			}
			cols = append(cols, value[off:off+width])
			off += width
			continue
		}

		if off+4 > len(value) {
			return nil, fmt.Errorf("textfmt: %w: truncated string length for column %d", errs.ErrParse, i)
		}
		l := int(binary.BigEndian.Uint32(value[off : off+4]))
		off += 4

		if off+l > len(value) {
			return nil, fmt.Errorf("textfmt: %w: truncated string for column %d", errs.ErrParse, i)
		}
		cols = append(cols, value[off:off+l])
		off += l
	}

	return cols, nil
}

func escape(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		switch c {
		case '\\':
			b.WriteString(`\\`)
		case ' ':
			b.WriteString(`\ `)
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func unescape(s string) ([]byte, error) {
	var b []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b = append(b, s[i])
			continue
		}
		if i+1 >= len(s) {
			return nil, fmt.Errorf("dangling escape at end of %q", s)
		}
		switch s[i+1] {
		case '\\':
			b = append(b, '\\')
		case ' ':
			b = append(b, ' ')
		default:
			return nil, fmt.Errorf("invalid escape %q", s[i:i+2])
		}
		i++
	}

	return b, nil
}

// splitColumns splits a space-separated column field, respecting `\ `
// as an escaped literal space rather than a separator.
func splitColumns(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}

	var tokens []string
	var cur strings.Builder

	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			cur.WriteByte(s[i])
			cur.WriteByte(s[i+1])
			i++
		case s[i] == ' ':
			tokens = append(tokens, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(s[i])
		}
	}
	tokens = append(tokens, cur.String())

	return tokens, nil
}
