package compress_test

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/arloliu/sonnerie/compress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allTypes() []compress.Type {
	return []compress.Type{compress.None, compress.LZ4, compress.S2, compress.Zstd}
}

func TestCodecRoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":      {},
		"small":      []byte("hello, sonnerie"),
		"repetitive": bytes.Repeat([]byte{0xAB}, 4096),
	}

	rng := rand.New(rand.NewSource(1))
	random := make([]byte, 8192)
	rng.Read(random)
	payloads["random"] = random

	for _, typ := range allTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			codec, err := compress.Get(typ)
			require.NoError(t, err)

			for name, data := range payloads {
				t.Run(name, func(t *testing.T) {
					compressed, err := codec.Compress(data)
					require.NoError(t, err)

					decompressed, err := codec.Decompress(compressed)
					require.NoError(t, err)
					assert.Equal(t, data, decompressed)
				})
			}
		})
	}
}

func TestGetUnsupportedType(t *testing.T) {
	_, err := compress.Get(compress.Type(0xFF))
	assert.Error(t, err)
}

func TestNoOpIsIdentity(t *testing.T) {
	c := compress.NewNoOpCompressor()
	data := []byte("unchanged")
	out, err := c.Compress(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
