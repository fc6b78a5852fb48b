// Package wire implements the binary frame codec for the upload/query
// protocol. All multi-byte integers and the score float travel in
// network (big-endian) byte order; strings are UTF-8, length-prefixed,
// never null-terminated.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/logferry/logferry/internal/model"
)

// Command codes.
const (
	CmdUpload uint16 = 0x0001
	CmdQuery  uint16 = 0x0002
)

// Per-frame size limits. A length prefix implying more than this is
// treated as malformed rather than allocated.
const (
	MaxRecords   = 1 << 20
	MaxStringLen = 1 << 16
)

var (
	// ErrTruncated reports a connection that closed mid-frame. A caller
	// never sees a partially decoded record.
	ErrTruncated = errors.New("wire: truncated frame")

	// ErrMalformed reports a length prefix or command code that cannot
	// describe a valid frame.
	ErrMalformed = errors.New("wire: malformed frame")

	// ErrIncomplete reports that a buffer does not yet hold one whole
	// frame. Only ParseFrame returns it; callers read more and retry.
	ErrIncomplete = errors.New("wire: incomplete frame")
)

// Frame is one decoded command unit. Entries is set for UPLOAD frames,
// Query for QUERY frames.
type Frame struct {
	Command uint16
	Entries []model.LogEntry
	Query   string
}

// EncodeUpload builds an UPLOAD frame carrying the given records.
func EncodeUpload(entries []model.LogEntry) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, CmdUpload)
	binary.Write(buf, binary.BigEndian, uint32(len(entries)))
	for _, e := range entries {
		appendEntry(buf, e)
	}
	return buf.Bytes()
}

// EncodeQuery builds a QUERY frame carrying the raw filter string.
func EncodeQuery(query string) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, CmdQuery)
	binary.Write(buf, binary.BigEndian, uint32(len(query)))
	buf.WriteString(query)
	return buf.Bytes()
}

// EncodeResultSet builds the QUERY response body: count plus records.
func EncodeResultSet(entries []model.LogEntry) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(len(entries)))
	for _, e := range entries {
		appendEntry(buf, e)
	}
	return buf.Bytes()
}

// EncodeCount builds the UPLOAD response body: the accepted record count.
func EncodeCount(n uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, n)
	return b
}

func appendEntry(buf *bytes.Buffer, e model.LogEntry) {
	binary.Write(buf, binary.BigEndian, uint16(len(e.Username)))
	binary.Write(buf, binary.BigEndian, uint16(len(e.IP)))
	binary.Write(buf, binary.BigEndian, uint16(len(e.Server)))
	buf.WriteString(e.Username)
	buf.WriteString(e.IP)
	buf.WriteString(e.Server)
	binary.Write(buf, binary.BigEndian, e.Port)
	binary.Write(buf, binary.BigEndian, e.AccessTime)
	binary.Write(buf, binary.BigEndian, e.DataSent)
	binary.Write(buf, binary.BigEndian, e.DataReceived)
	binary.Write(buf, binary.BigEndian, math.Float32bits(e.Score))
}

// ReadFrame blocks until one whole frame is read from r. io.EOF before
// the first command byte is returned as io.EOF so callers can tell a
// clean peer close from ErrTruncated mid-frame.
func ReadFrame(r io.Reader) (Frame, error) {
	var cmd uint16
	if err := binary.Read(r, binary.BigEndian, &cmd); err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}

	switch cmd {
	case CmdUpload:
		count, err := readUint32(r)
		if err != nil {
			return Frame{}, err
		}
		if count > MaxRecords {
			return Frame{}, fmt.Errorf("%w: record count %d", ErrMalformed, count)
		}
		entries := make([]model.LogEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			e, err := readEntry(r)
			if err != nil {
				return Frame{}, err
			}
			entries = append(entries, e)
		}
		return Frame{Command: cmd, Entries: entries}, nil

	case CmdQuery:
		n, err := readUint32(r)
		if err != nil {
			return Frame{}, err
		}
		if n > MaxStringLen {
			return Frame{}, fmt.Errorf("%w: query length %d", ErrMalformed, n)
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return Frame{}, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		return Frame{Command: cmd, Query: string(b)}, nil

	default:
		return Frame{}, fmt.Errorf("%w: unknown command 0x%04x", ErrMalformed, cmd)
	}
}

// ReadResultSet blocks until a whole QUERY response body is read.
func ReadResultSet(r io.Reader) ([]model.LogEntry, error) {
	count, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	if count > MaxRecords {
		return nil, fmt.Errorf("%w: result count %d", ErrMalformed, count)
	}
	entries := make([]model.LogEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		e, err := readEntry(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadCount blocks until an UPLOAD response body is read.
func ReadCount(r io.Reader) (uint32, error) {
	return readUint32(r)
}

func readUint32(r io.Reader) (uint32, error) {
	b := make([]byte, 4)
	if _, err := io.ReadFull(r, b); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return binary.BigEndian.Uint32(b), nil
}

func readEntry(r io.Reader) (model.LogEntry, error) {
	head := make([]byte, 6)
	if _, err := io.ReadFull(r, head); err != nil {
		return model.LogEntry{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	userLen := binary.BigEndian.Uint16(head[0:2])
	ipLen := binary.BigEndian.Uint16(head[2:4])
	srvLen := binary.BigEndian.Uint16(head[4:6])

	// strings + port(2) + accessTime(4) + dataSent(4) + dataReceived(4) + score(4)
	body := make([]byte, int(userLen)+int(ipLen)+int(srvLen)+18)
	if _, err := io.ReadFull(r, body); err != nil {
		return model.LogEntry{}, fmt.Errorf("%w: %v", ErrTruncated, err)
	}
	return decodeEntryBody(userLen, ipLen, srvLen, body), nil
}

func decodeEntryBody(userLen, ipLen, srvLen uint16, body []byte) model.LogEntry {
	off := 0
	username := string(body[off : off+int(userLen)])
	off += int(userLen)
	ip := string(body[off : off+int(ipLen)])
	off += int(ipLen)
	server := string(body[off : off+int(srvLen)])
	off += int(srvLen)

	e := model.LogEntry{
		Username:     username,
		IP:           ip,
		Server:       server,
		Port:         binary.BigEndian.Uint16(body[off : off+2]),
		AccessTime:   binary.BigEndian.Uint32(body[off+2 : off+6]),
		DataSent:     binary.BigEndian.Uint32(body[off+6 : off+10]),
		DataReceived: binary.BigEndian.Uint32(body[off+10 : off+14]),
		Score:        math.Float32frombits(binary.BigEndian.Uint32(body[off+14 : off+18])),
	}
	return e
}

// ParseFrame decodes one frame from the front of b without blocking.
// It returns the decoded frame and the number of bytes consumed, or
// ErrIncomplete when b does not yet hold the whole frame. The readiness
// strategy assembles frames this way from readability-driven chunks.
func ParseFrame(b []byte) (Frame, int, error) {
	if len(b) < 2 {
		return Frame{}, 0, ErrIncomplete
	}
	cmd := binary.BigEndian.Uint16(b[0:2])
	off := 2

	switch cmd {
	case CmdUpload:
		if len(b) < off+4 {
			return Frame{}, 0, ErrIncomplete
		}
		count := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		if count > MaxRecords {
			return Frame{}, 0, fmt.Errorf("%w: record count %d", ErrMalformed, count)
		}
		entries := make([]model.LogEntry, 0, count)
		for i := uint32(0); i < count; i++ {
			if len(b) < off+6 {
				return Frame{}, 0, ErrIncomplete
			}
			userLen := binary.BigEndian.Uint16(b[off : off+2])
			ipLen := binary.BigEndian.Uint16(b[off+2 : off+4])
			srvLen := binary.BigEndian.Uint16(b[off+4 : off+6])
			bodyLen := int(userLen) + int(ipLen) + int(srvLen) + 18
			if len(b) < off+6+bodyLen {
				return Frame{}, 0, ErrIncomplete
			}
			entries = append(entries, decodeEntryBody(userLen, ipLen, srvLen, b[off+6:off+6+bodyLen]))
			off += 6 + bodyLen
		}
		return Frame{Command: cmd, Entries: entries}, off, nil

	case CmdQuery:
		if len(b) < off+4 {
			return Frame{}, 0, ErrIncomplete
		}
		n := binary.BigEndian.Uint32(b[off : off+4])
		off += 4
		if n > MaxStringLen {
			return Frame{}, 0, fmt.Errorf("%w: query length %d", ErrMalformed, n)
		}
		if len(b) < off+int(n) {
			return Frame{}, 0, ErrIncomplete
		}
		return Frame{Command: cmd, Query: string(b[off : off+int(n)])}, off + int(n), nil

	default:
		return Frame{}, 0, fmt.Errorf("%w: unknown command 0x%04x", ErrMalformed, cmd)
	}
}
