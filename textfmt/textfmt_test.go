package textfmt_test

import (
	"bytes"
	"testing"

	"github.com/arloliu/sonnerie/record"
	"github.com/arloliu/sonnerie/textfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateStrftime(t *testing.T) {
	assert.Equal(t, "2006-01-02 15:04:05", textfmt.TranslateStrftime("%F %T"))
	assert.Equal(t, "2006-01-02_15:04:05", textfmt.TranslateStrftime("%F_%T"))
}

func TestEncodeDecodeValueMultiColumn(t *testing.T) {
	cols := [][]byte{[]byte("Many words"), []byte("Lotsa stuff here")}

	value, err := textfmt.EncodeValue("ss", cols)
	require.NoError(t, err)

	got, err := textfmt.DecodeValue("ss", value)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Many words", string(got[0]))
	assert.Equal(t, "Lotsa stuff here", string(got[1]))
}

func TestParseSelfDescribingMulticolumnString(t *testing.T) {
	opts := textfmt.Options{
		TimestampMode: textfmt.Strftime,
		Layout:        textfmt.TranslateStrftime("%F_%T"),
		IncludeFormat: true,
	}

	lines := []string{
		`a	2010-01-01_00:00:00	ss	Many\ words Lotsa\ stuff\ here`,
		`b	2010-01-02_00:00:00	su	Fluffy\ cat 42`,
		`c	2010-01-01_00:00:00	us	900 It's\ a\ cat!`,
	}

	for _, line := range lines {
		rec, err := textfmt.ParseSelfDescribing(line, opts)
		require.NoError(t, err)

		cols, err := textfmt.DecodeValue(rec.Format, rec.Value)
		require.NoError(t, err)

		switch string(rec.Key) {
		case "a":
			assert.Equal(t, "Many words", string(cols[0]))
			assert.Equal(t, "Lotsa stuff here", string(cols[1]))
		case "b":
			assert.Equal(t, "Fluffy cat", string(cols[0]))
		case "c":
			assert.Equal(t, "It's a cat!", string(cols[1]))
		}
	}
}

func TestPrintParseRoundTripNanos(t *testing.T) {
	opts := textfmt.Options{TimestampMode: textfmt.Nanos, IncludeFormat: true}

	value, err := textfmt.EncodeValue("u", [][]byte{{0, 0, 0, 42}})
	require.NoError(t, err)

	rec := record.New([]byte("key"), 123456789, "u", value)

	var buf bytes.Buffer
	require.NoError(t, textfmt.Print(&buf, rec, opts))

	parsed, err := textfmt.ParseSelfDescribing(buf.String()[:buf.Len()-1], opts)
	require.NoError(t, err)

	assert.Equal(t, rec.Key, parsed.Key)
	assert.Equal(t, rec.Timestamp, parsed.Timestamp)
	assert.Equal(t, rec.Format, parsed.Format)
	assert.Equal(t, rec.Value, parsed.Value)
}

func TestParseFixedFormatRejectsColumnCountMismatch(t *testing.T) {
	opts := textfmt.Options{TimestampMode: textfmt.Nanos}

	_, err := textfmt.Parse("key\t0\t1 2", "u", opts)
	assert.Error(t, err)
}

func TestEscapeRoundTripsSpacesAndBackslashes(t *testing.T) {
	opts := textfmt.Options{TimestampMode: textfmt.Nanos}

	value, err := textfmt.EncodeValue("s", [][]byte{[]byte(`back\slash and space`)})
	require.NoError(t, err)

	rec := record.New([]byte("k"), 0, "s", value)

	var buf bytes.Buffer
	require.NoError(t, textfmt.Print(&buf, rec, opts))

	parsed, err := textfmt.Parse(buf.String()[:buf.Len()-1], "s", opts)
	require.NoError(t, err)

	cols, err := textfmt.DecodeValue("s", parsed.Value)
	require.NoError(t, err)
	assert.Equal(t, `back\slash and space`, string(cols[0]))
}
