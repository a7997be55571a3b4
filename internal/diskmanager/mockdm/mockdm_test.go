package mockdm_test

import (
	"errors"
	"io"
	"os"
	"testing"

	"github.com/MikhailWahib/gravelkv/internal/diskmanager/mockdm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockDiskManager_OpenFlags(t *testing.T) {
	dm := mockdm.NewMockDiskManager()

	_, err := dm.Open("missing", os.O_RDONLY, 0)
	require.True(t, os.IsNotExist(err))

	w, err := dm.Open("f", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)

	w2, err := dm.Open("f", os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = w2.Write([]byte("def"))
	require.NoError(t, err)

	r, err := dm.Open("f", os.O_RDONLY, 0)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(data))

	_, err = r.Write([]byte("x"))
	assert.Error(t, err, "read-only handle must reject writes")

	_, err = dm.Open("f", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	assert.True(t, os.IsExist(err))

	_, err = dm.Open("f", os.O_TRUNC|os.O_WRONLY, 0644)
	require.NoError(t, err)
	assert.Empty(t, dm.Bytes("f"))
}

func TestMockDiskManager_FaultInjection(t *testing.T) {
	dm := mockdm.NewMockDiskManager()
	boom := errors.New("boom")

	f, err := dm.Open("f", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)

	dm.FailWrite = boom
	n, err := f.Write([]byte("abcd"))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, n, "failed writes store half of the buffer")
	assert.Equal(t, "ab", string(dm.Bytes("f")))
	dm.FailWrite = nil

	dm.FailSync = boom
	assert.ErrorIs(t, f.Sync(), boom)
	dm.FailSync = nil
	require.NoError(t, f.Sync())
	assert.Equal(t, 1, dm.SyncCount)

	require.NoError(t, f.Truncate(0))
	assert.Empty(t, dm.Bytes("f"))

	dm.FailOpen = boom
	_, err = dm.Open("g", os.O_CREATE|os.O_WRONLY, 0644)
	assert.ErrorIs(t, err, boom)
}

func TestMockDiskManager_SetBytesVisibleToOpenHandles(t *testing.T) {
	dm := mockdm.NewMockDiskManager()
	dm.SetBytes("f", []byte("one"))

	r, err := dm.Open("f", os.O_RDONLY, 0)
	require.NoError(t, err)
	dm.SetBytes("f", []byte("two!"))

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "two!", string(data))

	info, err := dm.Stat("f")
	require.NoError(t, err)
	assert.Equal(t, int64(4), info.Size())
}
