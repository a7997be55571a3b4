package sstable

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Table layout:
//
//	[data block]* [index block]? [footer]
//
// data block  = [entry]* [crc32 of entries]
// entry       = [key len u32][value len u32][key][value]
// index block = [index entry]* [crc32 of index entries]
// index entry = [key len u32][last key of block][block offset u64][block size u64]
// footer      = [metaindex handle][index handle][magic u64]
//
// Integers are little-endian. Block sizes include the trailing checksum.
const (
	// DefaultBlockSize is the buffered size at which a data block is flushed.
	DefaultBlockSize = 4096

	// BlockHandleSize is the encoded size of a BlockHandle: offset, size and 4 bytes of padding.
	BlockHandleSize = 20
	// FooterSize is the fixed size of the table trailer.
	FooterSize = 2*BlockHandleSize + 8

	// TableMagic identifies a table file. It is stored in the last 8 bytes.
	TableMagic uint64 = 0xDB4775248B80FB57

	blockTrailerSize = 4
)

// ErrBadMagic is returned when a footer does not end with TableMagic.
var ErrBadMagic = errors.New("sstable: bad magic number")

// BlockHandle locates a byte range within a table file.
type BlockHandle struct {
	Offset uint64
	Size   uint64
}

// EncodeTo writes h into dst, which must hold BlockHandleSize bytes.
func (h BlockHandle) EncodeTo(dst []byte) {
	_ = dst[BlockHandleSize-1]
	binary.LittleEndian.PutUint64(dst[0:8], h.Offset)
	binary.LittleEndian.PutUint64(dst[8:16], h.Size)
	clear(dst[16:BlockHandleSize])
}

// DecodeBlockHandle reads a handle from the first BlockHandleSize bytes of src.
func DecodeBlockHandle(src []byte) BlockHandle {
	_ = src[BlockHandleSize-1]
	return BlockHandle{
		Offset: binary.LittleEndian.Uint64(src[0:8]),
		Size:   binary.LittleEndian.Uint64(src[8:16]),
	}
}

// Footer is the fixed-size trailer of a table. MetaIndex is reserved and
// always zero for tables written by Builder; Index is zero for empty tables.
type Footer struct {
	MetaIndex BlockHandle
	Index     BlockHandle
}

// Encode returns the FooterSize-byte encoding of f.
func (f Footer) Encode() []byte {
	buf := make([]byte, FooterSize)
	f.MetaIndex.EncodeTo(buf[0:BlockHandleSize])
	f.Index.EncodeTo(buf[BlockHandleSize : 2*BlockHandleSize])
	binary.LittleEndian.PutUint64(buf[2*BlockHandleSize:], TableMagic)
	return buf
}

// DecodeFooter parses the last FooterSize bytes of a table.
func DecodeFooter(buf []byte) (Footer, error) {
	if len(buf) != FooterSize {
		return Footer{}, fmt.Errorf("sstable: footer is %d bytes, want %d", len(buf), FooterSize)
	}
	if magic := binary.LittleEndian.Uint64(buf[2*BlockHandleSize:]); magic != TableMagic {
		return Footer{}, fmt.Errorf("%w: %#x", ErrBadMagic, magic)
	}
	return Footer{
		MetaIndex: DecodeBlockHandle(buf[0:BlockHandleSize]),
		Index:     DecodeBlockHandle(buf[BlockHandleSize : 2*BlockHandleSize]),
	}, nil
}

// appendEntry appends a data block entry for key and value.
func appendEntry(dst, key, value []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(key)))
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(value)))
	dst = append(dst, key...)
	return append(dst, value...)
}

// appendIndexEntry appends an index entry pointing at h whose last key is key.
func appendIndexEntry(dst, key []byte, h BlockHandle) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(key)))
	dst = append(dst, key...)
	dst = binary.LittleEndian.AppendUint64(dst, h.Offset)
	return binary.LittleEndian.AppendUint64(dst, h.Size)
}
