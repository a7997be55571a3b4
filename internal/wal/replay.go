package wal

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/MikhailWahib/gravelkv/internal/diskmanager"
	"github.com/MikhailWahib/gravelkv/internal/record"
)

// StopReason tells why a replay ended.
type StopReason int

const (
	// StopEOF means every byte of the log was consumed.
	StopEOF StopReason = iota
	// StopTruncatedHeader means fewer than a header's worth of bytes remained.
	StopTruncatedHeader
	// StopTruncatedPayload means the last record's key or value was cut short.
	StopTruncatedPayload
	// StopChecksumMismatch means a record failed its checksum.
	StopChecksumMismatch
	// StopUnknownType means a record passed its checksum but carries an unknown type tag.
	StopUnknownType
)

func (s StopReason) String() string {
	switch s {
	case StopEOF:
		return "eof"
	case StopTruncatedHeader:
		return "truncated_header"
	case StopTruncatedPayload:
		return "truncated_payload"
	case StopChecksumMismatch:
		return "checksum_mismatch"
	case StopUnknownType:
		return "unknown_type"
	default:
		return fmt.Sprintf("StopReason(%d)", int(s))
	}
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	// Records is the number of valid records returned.
	Records int
	// Offset is the byte offset just past the last valid record.
	Offset int64
	Stop   StopReason
}

// Replay reads every valid record of the log at path, in order.
//
// Replay is fail-stop: it ends at the first truncated, corrupt or unknown
// record and never returns anything after it, even if later bytes are well
// formed. Such a stop is reported in the result, not as an error. A missing
// file yields no records. The log is never modified.
func Replay(dm diskmanager.DiskManager, path string, logger *slog.Logger) ([]record.LogRecord, ReplayResult, error) {
	if dm == nil {
		dm = diskmanager.NewDiskManager()
	}
	if logger == nil {
		logger = slog.Default()
	}

	file, err := dm.Open(path, os.O_RDONLY, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ReplayResult{}, nil
		}
		return nil, ReplayResult{}, fmt.Errorf("wal: open %s for replay: %w", path, err)
	}
	defer file.Close()

	return ReplayFrom(file, logger.With("component", "wal", "path", path))
}

// ReplayFrom decodes records from r with the same rules as Replay.
func ReplayFrom(r io.Reader, logger *slog.Logger) ([]record.LogRecord, ReplayResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		records []record.LogRecord
		result  ReplayResult
		header  = make([]byte, record.HeaderSize)
	)
	br := bufio.NewReader(r)

	stop := func(reason StopReason) ([]record.LogRecord, ReplayResult, error) {
		result.Stop = reason
		if reason != StopEOF {
			logger.Warn("wal replay stopped early", "reason", reason.String(), "offset", result.Offset, "records", result.Records)
		}
		return records, result, nil
	}

	for {
		if _, err := io.ReadFull(br, header); err != nil {
			switch {
			case errors.Is(err, io.EOF):
				return stop(StopEOF)
			case errors.Is(err, io.ErrUnexpectedEOF):
				return stop(StopTruncatedHeader)
			default:
				return records, result, fmt.Errorf("wal: read header at offset %d: %w", result.Offset, err)
			}
		}

		h := record.ParseHeader(header)
		payloadLen := int64(h.KeyLen) + int64(h.ValueLen)

		// A corrupt length can claim gigabytes; LimitReader keeps the read
		// bounded by what the file actually holds.
		payload, err := io.ReadAll(io.LimitReader(br, payloadLen))
		if err != nil {
			return records, result, fmt.Errorf("wal: read payload at offset %d: %w", result.Offset, err)
		}
		if int64(len(payload)) < payloadLen {
			return stop(StopTruncatedPayload)
		}

		key := payload[:h.KeyLen]
		value := payload[h.KeyLen:]
		if record.PayloadChecksum(header, key, value) != h.Checksum {
			return stop(StopChecksumMismatch)
		}
		if !h.Type.Valid() {
			return stop(StopUnknownType)
		}

		records = append(records, record.LogRecord{Type: h.Type, Key: key, Value: value})
		result.Records++
		result.Offset += record.HeaderSize + payloadLen
	}
}
