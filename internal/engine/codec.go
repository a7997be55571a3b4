package engine

import (
	"cmp"
	"encoding/binary"
	"fmt"
	"strconv"
)

// KeyCodec converts store keys to bytes.
//
// Encode and Decode give the form written to the WAL and must round trip.
// SortKey gives the form written to tables; bytes.Compare on sort keys must
// agree with the ordering of K.
type KeyCodec[K cmp.Ordered] interface {
	Encode(key K) []byte
	Decode(b []byte) (K, error)
	SortKey(key K) []byte
}

// IntCodec logs int keys as decimal text.
type IntCodec struct{}

// Encode returns the decimal form of key.
func (IntCodec) Encode(key int) []byte {
	return strconv.AppendInt(nil, int64(key), 10)
}

// Decode parses a decimal key in the exact form Encode writes. A leading "+",
// leading zeros and "-0" are rejected.
func (IntCodec) Decode(b []byte) (int, error) {
	key, err := strconv.Atoi(string(b))
	if err != nil {
		return 0, fmt.Errorf("invalid int key %q: %w", b, err)
	}
	if strconv.Itoa(key) != string(b) {
		return 0, fmt.Errorf("invalid int key %q: not in canonical form", b)
	}
	return key, nil
}

// SortKey returns key as 8 big-endian bytes with the sign bit flipped,
// so negative keys sort before positive ones.
func (IntCodec) SortKey(key int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(int64(key))^(1<<63))
}

// StringCodec stores string keys as their raw bytes.
type StringCodec struct{}

// Encode returns the bytes of key.
func (StringCodec) Encode(key string) []byte { return []byte(key) }

// Decode accepts any byte sequence.
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }

// SortKey returns the bytes of key; byte order matches string order.
func (StringCodec) SortKey(key string) []byte { return []byte(key) }
