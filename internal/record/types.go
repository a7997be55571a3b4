package record

import "fmt"

// EntryType represents the type of mutation carried by a record
type EntryType byte

const (
	// PutEntry indicates a key-value insertion operation
	PutEntry EntryType = iota
	// DeleteEntry indicates a key deletion operation
	DeleteEntry
)

// Valid reports whether t is a known entry type.
func (t EntryType) Valid() bool {
	return t == PutEntry || t == DeleteEntry
}

func (t EntryType) String() string {
	switch t {
	case PutEntry:
		return "put"
	case DeleteEntry:
		return "delete"
	default:
		return fmt.Sprintf("EntryType(%d)", byte(t))
	}
}

// LogRecord is a single mutation. Value is empty for deletes.
type LogRecord struct {
	Type  EntryType
	Key   []byte
	Value []byte
}

// NewPut returns a put record for key and value.
func NewPut(key, value []byte) LogRecord {
	return LogRecord{Type: PutEntry, Key: key, Value: value}
}

// NewDelete returns a delete record for key.
func NewDelete(key []byte) LogRecord {
	return LogRecord{Type: DeleteEntry, Key: key}
}

// Header is the decoded fixed prefix of a record.
type Header struct {
	Checksum uint32
	KeyLen   uint32
	ValueLen uint32
	Type     EntryType
}
