// Package record encodes the mutations that make up the write-ahead log.
package record

// ChecksumSize is the size in bytes of the CRC-32 that leads every record
const ChecksumSize = 4

// LengthSize is the size in bytes used to store length prefixes
const LengthSize = 4

// EntryTypeSize is the size in bytes used to store an entry type marker
const EntryTypeSize = 1

// HeaderSize is the fixed prefix of an encoded record:
// [4 bytes Checksum][4 bytes KeyLen][4 bytes ValueLen][1 byte EntryType]
const HeaderSize = ChecksumSize + (2 * LengthSize) + EntryTypeSize // 13 bytes

// Offsets of the header fields within an encoded record.
const (
	KeyLenOffset   = ChecksumSize
	ValueLenOffset = KeyLenOffset + LengthSize
	TypeOffset     = ValueLenOffset + LengthSize
)
