// Package trace reads memory-access traces, one record per line.
package trace

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// A Format locates the hexadecimal address inside a record.
type Format struct {
	// AddressOffset is the character offset of the address field.
	AddressOffset int

	// AddressWidth is the number of hex digits in the address field.
	AddressWidth int
}

// DefaultFormat matches records such as "s 0x1fffff50 1".
var DefaultFormat = Format{AddressOffset: 4, AddressWidth: 8}

// A Source yields the addresses of a trace. Next returns io.EOF when the trace
// is exhausted. A *MalformedRecordError leaves the source usable.
type Source interface {
	Next() (uint32, error)
}

// MaxRecordLength bounds a record. Longer lines are reported as malformed
// and skipped.
const MaxRecordLength = 4096

// Reader parses records from an io.Reader.
type Reader struct {
	format Format
	reader *bufio.Reader
	line   int
}

// NewReader creates a reader that uses the default record format.
func NewReader(r io.Reader) *Reader {
	return NewReaderWithFormat(r, DefaultFormat)
}

// NewReaderWithFormat creates a reader for a custom record format.
func NewReaderWithFormat(r io.Reader, format Format) *Reader {
	return &Reader{
		format: format,
		reader: bufio.NewReaderSize(r, MaxRecordLength),
	}
}

// Next returns the address of the next record.
func (r *Reader) Next() (uint32, error) {
	record, err := r.reader.ReadSlice('\n')
	switch {
	case errors.Is(err, bufio.ErrBufferFull):
		return 0, r.skipLongRecord(record)
	case errors.Is(err, io.EOF):
		if len(record) == 0 {
			return 0, io.EOF
		}
	case err != nil:
		return 0, err
	}

	r.line++

	return r.format.Parse(r.line, strings.TrimSuffix(string(record), "\n"))
}

// skipLongRecord discards the rest of an overlong line so that the next call
// starts at the following record.
func (r *Reader) skipLongRecord(head []byte) error {
	r.line++

	malformed := &MalformedRecordError{
		Line:   r.line,
		Record: string(head[:64]) + "...",
		Reason: "record longer than " + strconv.Itoa(MaxRecordLength) + " bytes",
	}

	for {
		_, err := r.reader.ReadSlice('\n')
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case err == nil, errors.Is(err, io.EOF):
			return malformed
		default:
			return err
		}
	}
}

// Line returns the number of the record last returned.
func (r *Reader) Line() int {
	return r.line
}

// Parse extracts the address of one record. The line number only annotates
// errors.
func (f Format) Parse(lineNo int, record string) (uint32, error) {
	record = strings.TrimRight(record, "\r")

	end := f.AddressOffset + f.AddressWidth
	if len(record) < end {
		return 0, &MalformedRecordError{
			Line:   lineNo,
			Record: record,
			Reason: "record too short",
		}
	}

	field := record[f.AddressOffset:end]

	addr, err := strconv.ParseUint(field, 16, 32)
	if err != nil {
		return 0, &MalformedRecordError{
			Line:   lineNo,
			Record: record,
			Reason: "address " + strconv.Quote(field) + " is not hexadecimal",
		}
	}

	return uint32(addr), nil
}

// SliceSource replays addresses held in memory.
type SliceSource struct {
	addrs []uint32
	next  int
}

// NewSliceSource creates a source over the given addresses.
func NewSliceSource(addrs ...uint32) *SliceSource {
	return &SliceSource{addrs: addrs}
}

// Next returns the next address.
func (s *SliceSource) Next() (uint32, error) {
	if s.next >= len(s.addrs) {
		return 0, io.EOF
	}

	addr := s.addrs[s.next]
	s.next++

	return addr, nil
}
