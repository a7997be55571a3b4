package gravelkv_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/MikhailWahib/gravelkv"
	"github.com/MikhailWahib/gravelkv/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenPutGetReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	db, err := gravelkv.Open(dir, nil, gravelkv.WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, db.Put(1, "val1"))
	require.NoError(t, db.Put(2, "val2"))
	existed, err := db.Delete(1)
	require.NoError(t, err)
	assert.True(t, existed)
	require.NoError(t, db.Close())
	assert.ErrorIs(t, db.Put(3, "x"), gravelkv.ErrClosed)

	db, err = gravelkv.Open(dir, gravelkv.DefaultConfig(), gravelkv.WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer db.Close()

	_, found := db.Get(1)
	assert.False(t, found)
	v, found := db.Get(2)
	assert.True(t, found)
	assert.Equal(t, "val2", v)
	assert.Equal(t, 1, db.Len())
}

func TestWriteTable(t *testing.T) {
	dir := t.TempDir()
	db, err := gravelkv.Open(dir, nil, gravelkv.WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer db.Close()

	for i := range 10 {
		require.NoError(t, db.Put(i, "value"))
	}
	path := filepath.Join(dir, "export.sst")
	require.NoError(t, db.WriteTable(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xDB4775248B80FB57), binary.LittleEndian.Uint64(data[len(data)-8:]))
}

func TestTableBuilder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.sst")
	b, err := gravelkv.NewTableBuilder(path, gravelkv.TableBuilderOptions{})
	require.NoError(t, err)

	require.NoError(t, b.Add([]byte("a"), []byte("1")))
	require.NoError(t, b.Finish())
	assert.ErrorIs(t, b.Finish(), gravelkv.ErrAlreadyFinished)
	assert.GreaterOrEqual(t, b.FileSize(), uint64(48))
}
