package sstable_test

import (
	"encoding/binary"
	"testing"

	"github.com/MikhailWahib/gravelkv/internal/sstable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFooterEncoding(t *testing.T) {
	f := sstable.Footer{Index: sstable.BlockHandle{Offset: 8192, Size: 77}}
	buf := f.Encode()

	require.Len(t, buf, 48)
	assert.Equal(t, make([]byte, 20), buf[0:20], "metaindex handle is reserved")
	assert.Equal(t, uint64(8192), binary.LittleEndian.Uint64(buf[20:28]))
	assert.Equal(t, uint64(77), binary.LittleEndian.Uint64(buf[28:36]))
	assert.Equal(t, make([]byte, 4), buf[36:40], "handle padding")
	assert.Equal(t, []byte{0x57, 0xFB, 0x80, 0x8B, 0x24, 0x75, 0x47, 0xDB}, buf[40:48])

	decoded, err := sstable.DecodeFooter(buf)
	require.NoError(t, err)
	assert.Equal(t, f, decoded)
}

func TestDecodeFooterRejectsBadInput(t *testing.T) {
	buf := sstable.Footer{}.Encode()
	buf[47] ^= 0xFF
	_, err := sstable.DecodeFooter(buf)
	assert.ErrorIs(t, err, sstable.ErrBadMagic)

	_, err = sstable.DecodeFooter(buf[:40])
	assert.Error(t, err)
}
