package block_test

import (
	"testing"

	"github.com/arloliu/sonnerie/block"
	"github.com/arloliu/sonnerie/compress"
	"github.com/arloliu/sonnerie/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(format string, values ...[]byte) []record.Record {
	recs := make([]record.Record, len(values))
	for i, v := range values {
		recs[i] = record.Record{
			Key:       []byte("ab"),
			Timestamp: uint64(1000 + i*17),
			Format:    format,
			Value:     v,
		}
	}
	return recs
}

func TestEncodeDecodeRoundTripFixedWidth(t *testing.T) {
	codec, err := compress.Get(compress.LZ4)
	require.NoError(t, err)

	in := records("u", []byte{0, 0, 0, 1}, []byte{0, 0, 0, 2}, []byte{0, 0, 0, 3})

	encoded, err := block.Encode(in, codec)
	require.NoError(t, err)

	out, n, err := block.Decode(encoded, codec)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	require.Len(t, out, len(in))

	for i, rec := range out {
		assert.Equal(t, in[i].Key, rec.Key)
		assert.Equal(t, in[i].Timestamp, rec.Timestamp)
		assert.Equal(t, in[i].Format, rec.Format)
		assert.Equal(t, in[i].Value, rec.Value)
	}
}

func TestEncodeDecodeRoundTripVariableWidth(t *testing.T) {
	codec, err := compress.Get(compress.None)
	require.NoError(t, err)

	in := records("s", []byte("hello"), []byte(""), []byte("a longer string value"))

	encoded, err := block.Encode(in, codec)
	require.NoError(t, err)

	out, _, err := block.Decode(encoded, codec)
	require.NoError(t, err)
	require.Len(t, out, len(in))

	for i, rec := range out {
		assert.Equal(t, in[i].Value, rec.Value)
	}
}

func TestDecodeMultipleBlocksBackToBack(t *testing.T) {
	codec, err := compress.Get(compress.S2)
	require.NoError(t, err)

	first, err := block.Encode(records("u", []byte{0, 0, 0, 1}), codec)
	require.NoError(t, err)
	second, err := block.Encode(records("u", []byte{0, 0, 0, 2}), codec)
	require.NoError(t, err)

	buf := append(append([]byte{}, first...), second...)

	out1, n1, err := block.Decode(buf, codec)
	require.NoError(t, err)
	assert.Equal(t, len(first), n1)
	require.Len(t, out1, 1)

	out2, n2, err := block.Decode(buf[n1:], codec)
	require.NoError(t, err)
	assert.Equal(t, len(second), n2)
	require.Len(t, out2, 1)
}

func TestEncodeRejectsNonIncreasingTimestamps(t *testing.T) {
	codec, err := compress.Get(compress.None)
	require.NoError(t, err)

	in := []record.Record{
		{Key: []byte("ab"), Timestamp: 100, Format: "u", Value: []byte{0, 0, 0, 1}},
		{Key: []byte("ab"), Timestamp: 100, Format: "u", Value: []byte{0, 0, 0, 2}},
	}

	_, err = block.Encode(in, codec)
	assert.Error(t, err)
}

func TestDecodeDetectsChecksumMismatch(t *testing.T) {
	codec, err := compress.Get(compress.None)
	require.NoError(t, err)

	encoded, err := block.Encode(records("u", []byte{0, 0, 0, 1}), codec)
	require.NoError(t, err)

	corrupt := append([]byte(nil), encoded...)
	corrupt[len(corrupt)-1] ^= 0xFF

	_, _, err = block.Decode(corrupt, codec)
	assert.Error(t, err)
}

func TestDecodeDetectsTruncation(t *testing.T) {
	codec, err := compress.Get(compress.None)
	require.NoError(t, err)

	encoded, err := block.Encode(records("u", []byte{0, 0, 0, 1}, []byte{0, 0, 0, 2}), codec)
	require.NoError(t, err)

	_, _, err = block.Decode(encoded[:len(encoded)-3], codec)
	assert.Error(t, err)
}
