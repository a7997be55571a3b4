package engine_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/MikhailWahib/gravelkv/internal/config"
	"github.com/MikhailWahib/gravelkv/internal/diskmanager/mockdm"
	"github.com/MikhailWahib/gravelkv/internal/engine"
	"github.com/MikhailWahib/gravelkv/internal/logging"
	"github.com/MikhailWahib/gravelkv/internal/metrics"
	"github.com/MikhailWahib/gravelkv/internal/record"
	"github.com/MikhailWahib/gravelkv/internal/sstable"
	"github.com/MikhailWahib/gravelkv/internal/wal"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openInt(t *testing.T, dir string, opts ...engine.Option) *engine.Engine[int] {
	t.Helper()
	opts = append([]engine.Option{engine.WithLogger(logging.Discard())}, opts...)
	db, err := engine.New[int](dir, engine.IntCodec{}, nil, opts...)
	require.NoError(t, err)
	return db
}

func TestEngine_BasicPutGetDelete(t *testing.T) {
	db := openInt(t, t.TempDir())
	defer db.Close()

	require.NoError(t, db.Put(1, "bar"))
	require.NoError(t, db.Put(2, "qux"))

	val, found := db.Get(1)
	assert.True(t, found)
	assert.Equal(t, "bar", val)

	val, found = db.Get(2)
	assert.True(t, found)
	assert.Equal(t, "qux", val)

	existed, err := db.Delete(1)
	require.NoError(t, err)
	assert.True(t, existed)

	val, found = db.Get(1)
	assert.False(t, found)
	assert.Equal(t, "", val)

	existed, err = db.Delete(1)
	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, 1, db.Len())
}

func TestEngine_WALDurability(t *testing.T) {
	dir := t.TempDir()
	db := openInt(t, dir)

	require.NoError(t, db.Put(1, "persistent_val"))
	_, err := db.Delete(1)
	require.NoError(t, err)

	// Appends are synced before returning, so the bytes are visible without closing.
	data, err := os.ReadFile(filepath.Join(dir, "wal.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.True(t, bytes.Contains(data, []byte("1")))
	assert.True(t, bytes.Contains(data, []byte("persistent_val")))
	assert.Len(t, data, 2*record.HeaderSize+1+len("persistent_val")+1)

	require.NoError(t, db.Close())
}

func TestEngine_WALReplay(t *testing.T) {
	dir := t.TempDir()

	db := openInt(t, dir)
	require.NoError(t, db.Put(1, "val1"))
	require.NoError(t, db.Put(2, "val2"))
	_, err := db.Delete(1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// Simulate restart (replay WAL)
	db2 := openInt(t, dir)
	defer db2.Close()

	val, found := db2.Get(1)
	assert.False(t, found)
	assert.Equal(t, "", val)

	val, found = db2.Get(2)
	assert.True(t, found)
	assert.Equal(t, "val2", val)

	assert.Equal(t, 3, db2.Recovery().Records)
	assert.Equal(t, wal.StopEOF, db2.Recovery().Stop)

	// New writes continue the existing log.
	require.NoError(t, db2.Put(3, "val3"))
	require.NoError(t, db2.Close())
	db3 := openInt(t, dir)
	defer db3.Close()
	assert.Equal(t, 4, db3.Recovery().Records)
	assert.Equal(t, 2, db3.Len())
}

func TestEngine_TruncatedTail(t *testing.T) {
	dir := t.TempDir()
	db := openInt(t, dir)
	require.NoError(t, db.Put(1, "valid"))
	require.NoError(t, db.Close())

	walPath := filepath.Join(dir, "wal.log")
	f, err := os.OpenFile(walPath, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0xde, 0xad, 0xbe, 0xef, 0x42})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	db2 := openInt(t, dir)
	defer db2.Close()

	val, found := db2.Get(1)
	assert.True(t, found)
	assert.Equal(t, "valid", val)
	assert.Equal(t, wal.StopTruncatedHeader, db2.Recovery().Stop)
}

func TestEngine_CorruptFirstRecord(t *testing.T) {
	dir := t.TempDir()
	db := openInt(t, dir)
	require.NoError(t, db.Put(1, "val1"))
	require.NoError(t, db.Put(2, "val2"))
	require.NoError(t, db.Close())

	walPath := filepath.Join(dir, "wal.log")
	data, err := os.ReadFile(walPath)
	require.NoError(t, err)
	data[record.HeaderSize+2] ^= 0xFF
	require.NoError(t, os.WriteFile(walPath, data, 0644))

	db2 := openInt(t, dir)
	defer db2.Close()

	_, found := db2.Get(1)
	assert.False(t, found, "a corrupt record must not be applied")
	_, found = db2.Get(2)
	assert.False(t, found, "records after a corrupt one must not be applied")
	assert.Equal(t, wal.StopChecksumMismatch, db2.Recovery().Stop)
}

func TestEngine_SkipsUnparseableKeys(t *testing.T) {
	dir := t.TempDir()
	var log bytes.Buffer
	log.Write(record.Encode(record.NewPut([]byte("1"), []byte("one"))))
	log.Write(record.Encode(record.NewPut([]byte("not-a-number"), []byte("junk"))))
	log.Write(record.Encode(record.NewPut([]byte("01"), []byte("alias"))))
	log.Write(record.Encode(record.NewPut([]byte("2"), []byte("two"))))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wal.log"), log.Bytes(), 0644))

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	db := openInt(t, dir, engine.WithMetrics(m))
	defer db.Close()

	v, ok := db.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "one", v, "a non-canonical alias must not overwrite key 1")
	v, ok = db.Get(2)
	assert.True(t, ok, "replay must continue past a bad key")
	assert.Equal(t, "two", v)
	assert.Equal(t, 2, db.Len())

	skipped, err := m.ReplayRecordsTotal.GetMetricWithLabelValues(metrics.OutcomeSkipped)
	require.NoError(t, err)
	var metric dto.Metric
	require.NoError(t, skipped.Write(&metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestEngine_FailedWriteIsNotApplied(t *testing.T) {
	dm := mockdm.NewMockDiskManager()
	db := openInt(t, "data", engine.WithDiskManager(dm))
	defer db.Close()

	require.NoError(t, db.Put(1, "kept"))

	dm.FailSync = errors.New("sync failed")
	err := db.Put(1, "lost")
	require.ErrorIs(t, err, dm.FailSync)
	_, err = db.Delete(1)
	require.Error(t, err)
	dm.FailSync = nil

	v, ok := db.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "kept", v)
}

func TestEngine_EmptyWALSkipsReplay(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wal.log"), nil, 0644))

	db := openInt(t, dir)
	defer db.Close()
	assert.Equal(t, wal.ReplayResult{}, db.Recovery())
	assert.Equal(t, 0, db.Len())
}

func TestEngine_ClosedRejectsMutations(t *testing.T) {
	db := openInt(t, t.TempDir())
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	assert.ErrorIs(t, db.Put(1, "x"), engine.ErrClosed)
	_, err := db.Delete(1)
	assert.ErrorIs(t, err, engine.ErrClosed)
}

func TestEngine_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Probability = 2
	_, err := engine.New[int](t.TempDir(), engine.IntCodec{}, cfg)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestEngine_ZeroProbabilityConfig(t *testing.T) {
	cfg := &config.Config{Probability: 0, Seed: 1}
	db, err := engine.New[int](t.TempDir(), engine.IntCodec{}, cfg, engine.WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer db.Close()

	for i := range 100 {
		require.NoError(t, db.Put(i, "v"))
	}
	assert.Equal(t, 100, db.Len())
}

func TestEngine_WriteTable(t *testing.T) {
	dir := t.TempDir()
	db := openInt(t, dir, engine.WithRand(rand.New(rand.NewSource(3))))
	defer db.Close()

	for _, k := range []int{5, -3, 100, 0, -200} {
		require.NoError(t, db.Put(k, "v"))
	}

	path := filepath.Join(dir, "000001.sst")
	require.NoError(t, db.WriteTable(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	footer, err := sstable.DecodeFooter(data[len(data)-sstable.FooterSize:])
	require.NoError(t, err)
	require.NotZero(t, footer.Index.Size)

	// Walk the single data block and check the keys come out in numeric order.
	var keys []int64
	body := data[:footer.Index.Offset-4]
	for len(body) > 0 {
		klen := binary.LittleEndian.Uint32(body[0:4])
		vlen := binary.LittleEndian.Uint32(body[4:8])
		key := body[8 : 8+klen]
		keys = append(keys, int64(binary.BigEndian.Uint64(key)^(1<<63)))
		body = body[8+klen+vlen:]
	}
	assert.Equal(t, []int64{-200, -3, 0, 5, 100}, keys)
}

func TestEngine_StringKeys(t *testing.T) {
	dir := t.TempDir()
	db, err := engine.New[string](dir, engine.StringCodec{}, nil, engine.WithLogger(logging.Discard()))
	require.NoError(t, err)

	require.NoError(t, db.Put("apple", "red"))
	require.NoError(t, db.Put("banana", "yellow"))
	require.NoError(t, db.Close())

	db, err = engine.New[string](dir, engine.StringCodec{}, nil, engine.WithLogger(logging.Discard()))
	require.NoError(t, err)
	defer db.Close()
	v, ok := db.Get("banana")
	assert.True(t, ok)
	assert.Equal(t, "yellow", v)
}
