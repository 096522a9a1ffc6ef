package segment_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/arloliu/sonnerie/record"
	"github.com/arloliu/sonnerie/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func u32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func buildSegment(t *testing.T, recs []record.Record, opts ...segment.WriterOption) (*segment.Reader, []byte) {
	t.Helper()

	var buf bytes.Buffer
	w, err := segment.NewWriter(&buf, opts...)
	require.NoError(t, err)

	for _, r := range recs {
		require.NoError(t, w.AddRecord(r.Key, r.Timestamp, r.Format, r.Value))
	}

	n, err := w.Finish()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(recs)), n)

	data := buf.Bytes()
	rd, err := segment.Open(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, uint64(len(recs)), rd.RecordCount())

	return rd, data
}

func drain(t *testing.T, it *segment.Iterator) []record.Record {
	t.Helper()

	var out []record.Record
	for {
		rec, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		out = append(out, rec)
	}

	return out
}

func TestBasicFourRecords(t *testing.T) {
	recs := []record.Record{
		{Key: []byte("ab"), Timestamp: 0, Format: "u", Value: u32(0)},
		{Key: []byte("ab"), Timestamp: 1, Format: "u", Value: u32(1)},
		{Key: []byte("ab"), Timestamp: 2, Format: "u", Value: u32(2)},
		{Key: []byte("ab"), Timestamp: 0x0303, Format: "u", Value: u32(3)},
	}

	rd, _ := buildSegment(t, recs)

	out := drain(t, rd.Get([]byte("ab")))
	require.Len(t, out, 4)
	for i, rec := range out {
		assert.Equal(t, recs[i].Timestamp, rec.Timestamp)
		assert.Equal(t, recs[i].Value, rec.Value)
	}
}

func TestMultipleKeysRangeAndGet(t *testing.T) {
	var recs []record.Record
	keys := []string{"aa", "aabq", "aac", "n"}
	counts := []int{7, 5, 3, 4}

	for i, k := range keys {
		for ts := 0; ts < counts[i]; ts++ {
			recs = append(recs, record.Record{
				Key:       []byte(k),
				Timestamp: uint64(ts),
				Format:    "U",
				Value:     append(make([]byte, 7), byte(ts)),
			})
		}
	}

	rd, _ := buildSegment(t, recs)

	for i, k := range keys {
		out := drain(t, rd.Get([]byte(k)))
		assert.Len(t, out, counts[i], "key %q", k)
	}

	// Range(nil, "aac") should include "aa" and "aabq" but not "aac"/"n"
	out := drain(t, rd.Range(nil, []byte("aac")))
	assert.Equal(t, counts[0]+counts[1], len(out))

	// Range(nil, "aabq") should include only "aa"
	out = drain(t, rd.Range(nil, []byte("aabq")))
	assert.Equal(t, counts[0], len(out))
}

func TestMulticolumnRoundTrip(t *testing.T) {
	recs := []record.Record{
		{Key: []byte("ab"), Timestamp: 0, Format: "uu", Value: append(u32(1), u32(2)...)},
		{Key: []byte("ab"), Timestamp: 5, Format: "uu", Value: append(u32(3), u32(4)...)},
	}

	rd, _ := buildSegment(t, recs)

	out := drain(t, rd.Get([]byte("ab")))
	require.Len(t, out, 2)
	assert.Equal(t, recs[0].Value, out[0].Value)
	assert.Equal(t, recs[1].Value, out[1].Value)
}

func TestOutOfOrderRejected(t *testing.T) {
	var buf bytes.Buffer
	w, err := segment.NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.AddRecord([]byte("b"), 1, "u", u32(1)))
	err = w.AddRecord([]byte("a"), 1, "u", u32(1))
	assert.Error(t, err)
}

func TestDuplicateTimestampRejected(t *testing.T) {
	var buf bytes.Buffer
	w, err := segment.NewWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.AddRecord([]byte("a"), 1, "u", u32(1)))
	err = w.AddRecord([]byte("a"), 1, "u", u32(2))
	assert.Error(t, err)
}

func TestLargeSingleKeyForcesMultipleBlocks(t *testing.T) {
	const n = 5000

	var recs []record.Record
	for i := 0; i < n; i++ {
		recs = append(recs, record.Record{
			Key:       []byte("abc"),
			Timestamp: uint64(i),
			Format:    "u",
			Value:     u32(uint32(i)),
		})
	}

	rd, _ := buildSegment(t, recs, segment.WithBlockSize(1024))

	out := drain(t, rd.Get([]byte("abc")))
	require.Len(t, out, n)
	for i, rec := range out {
		assert.Equal(t, uint64(i), rec.Timestamp)
	}
}
