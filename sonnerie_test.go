package sonnerie_test

import (
	"testing"

	"github.com/arloliu/sonnerie"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreateCommitRoundTrip(t *testing.T) {
	dir := t.TempDir()

	db, err := sonnerie.Open(dir)
	require.NoError(t, err)
	defer db.Close()

	tw, err := sonnerie.Create(dir, db)
	require.NoError(t, err)
	require.NoError(t, tw.AddRecord([]byte("cpu.load"), 1, "F", []byte{0, 0, 0, 0, 0, 0, 0, 0}))

	_, err = tw.Commit()
	require.NoError(t, err)

	db2, err := sonnerie.Open(dir)
	require.NoError(t, err)
	defer db2.Close()

	it, err := db2.Get([]byte("cpu.load"))
	require.NoError(t, err)

	rec, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cpu.load", string(rec.Key))

	_, ok, err = it.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompactFacadeDelegatesToCompactPackage(t *testing.T) {
	dir := t.TempDir()

	db, err := sonnerie.Open(dir)
	require.NoError(t, err)

	tw, err := sonnerie.Create(dir, db)
	require.NoError(t, err)
	require.NoError(t, tw.AddRecord([]byte("a"), 0, "u", []byte{0, 0, 0, 1}))
	_, err = tw.Commit()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	res, err := sonnerie.Compact(dir, sonnerie.CompactOptions{Major: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.RecordCount)
}
