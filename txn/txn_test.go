package txn_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arloliu/sonnerie/txn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommitProducesMonotonicName(t *testing.T) {
	dir := t.TempDir()

	tw, err := txn.NewTx(dir, nil)
	require.NoError(t, err)
	require.NoError(t, tw.AddRecord([]byte("a"), 1, "u", []byte{0, 0, 0, 1}))

	path, err := tw.Commit()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(filepath.Base(path), "tx."))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestCommitToRenamesToMain(t *testing.T) {
	dir := t.TempDir()

	tw, err := txn.NewTx(dir, nil)
	require.NoError(t, err)
	require.NoError(t, tw.AddRecord([]byte("a"), 1, "u", []byte{0, 0, 0, 1}))

	mainPath := filepath.Join(dir, "main")
	require.NoError(t, tw.CommitTo(mainPath))

	_, err = os.Stat(mainPath)
	require.NoError(t, err)
}

func TestAbortRemovesTempFile(t *testing.T) {
	dir := t.TempDir()

	tw, err := txn.NewTx(dir, nil)
	require.NoError(t, err)
	require.NoError(t, tw.AddRecord([]byte("a"), 1, "u", []byte{0, 0, 0, 1}))
	require.NoError(t, tw.Abort())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type fakeLookup map[string]string

func (f fakeLookup) FormatForKey(key []byte) (string, bool, error) {
	format, ok := f[string(key)]
	return format, ok, nil
}

func TestFormatMismatchRejected(t *testing.T) {
	dir := t.TempDir()

	tw, err := txn.NewTx(dir, fakeLookup{"a": "u"})
	require.NoError(t, err)

	err = tw.AddRecord([]byte("a"), 1, "uu", []byte{0, 0, 0, 1, 0, 0, 0, 2})
	assert.Error(t, err)
}

func TestNoFormatCheckBypassesLookup(t *testing.T) {
	dir := t.TempDir()

	tw, err := txn.NewTx(dir, fakeLookup{"a": "u"}, txn.WithNoFormatCheck())
	require.NoError(t, err)

	err = tw.AddRecord([]byte("a"), 1, "uu", []byte{0, 0, 0, 1, 0, 0, 0, 2})
	assert.NoError(t, err)
}
