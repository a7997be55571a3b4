package record

import (
	"encoding/binary"
	"hash/crc32"
)

// Checksum returns the CRC-32 (IEEE polynomial 0xEDB88320, all-ones initial
// state, complemented output) of b. The empty input yields 0.
func Checksum(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}

// Encode lays r out as
// [4 bytes Checksum][4 bytes KeyLen][4 bytes ValueLen][1 byte Type][Key][Value].
// Integers are little-endian. The checksum covers everything after itself.
func Encode(r LogRecord) []byte {
	keyLen := len(r.Key)
	valueLen := len(r.Value)

	buf := make([]byte, HeaderSize+keyLen+valueLen)
	binary.LittleEndian.PutUint32(buf[KeyLenOffset:], uint32(keyLen))
	binary.LittleEndian.PutUint32(buf[ValueLenOffset:], uint32(valueLen))
	buf[TypeOffset] = byte(r.Type)
	copy(buf[HeaderSize:], r.Key)
	copy(buf[HeaderSize+keyLen:], r.Value)

	binary.LittleEndian.PutUint32(buf[:ChecksumSize], Checksum(buf[ChecksumSize:]))
	return buf
}

// ParseHeader decodes the fixed prefix of a record. buf must hold at least HeaderSize bytes.
func ParseHeader(buf []byte) Header {
	_ = buf[HeaderSize-1]
	return Header{
		Checksum: binary.LittleEndian.Uint32(buf[:ChecksumSize]),
		KeyLen:   binary.LittleEndian.Uint32(buf[KeyLenOffset:]),
		ValueLen: binary.LittleEndian.Uint32(buf[ValueLenOffset:]),
		Type:     EntryType(buf[TypeOffset]),
	}
}

// PayloadChecksum recomputes the checksum of a record from its raw header
// and payload without reassembling them into one buffer.
func PayloadChecksum(header, key, value []byte) uint32 {
	crc := crc32.Update(0, crc32.IEEETable, header[ChecksumSize:HeaderSize])
	crc = crc32.Update(crc, crc32.IEEETable, key)
	return crc32.Update(crc, crc32.IEEETable, value)
}
