package model

import (
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
)

// ErrInvalidEntry is wrapped by every validation failure so callers can
// distinguish record-level problems from I/O problems.
var ErrInvalidEntry = errors.New("invalid log entry")

// LogEntry represents one access event. Entries are immutable after
// creation; anything failing validation never becomes a LogEntry.
type LogEntry struct {
	Username     string
	IP           string
	Server       string
	Port         uint16
	AccessTime   uint32
	DataSent     uint32
	DataReceived uint32
	Score        float32
}

// Validate checks every field constraint. Decoded wire entries pass
// through here as well, so a peer cannot inject malformed records.
func (e LogEntry) Validate() error {
	if e.Username == "" {
		return fmt.Errorf("%w: empty username", ErrInvalidEntry)
	}
	if e.Server == "" {
		return fmt.Errorf("%w: empty server", ErrInvalidEntry)
	}
	if net.ParseIP(e.IP) == nil {
		return fmt.Errorf("%w: bad ip %q", ErrInvalidEntry, e.IP)
	}
	if math.IsNaN(float64(e.Score)) || math.IsInf(float64(e.Score), 0) {
		return fmt.Errorf("%w: non-finite score", ErrInvalidEntry)
	}
	return nil
}

// ParseLine parses one comma-separated source log line. Field order:
// username, IP, port, accessTime, dataSent, dataReceived, score, server.
func ParseLine(line string) (LogEntry, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 8 {
		return LogEntry{}, fmt.Errorf("%w: got %d fields, want 8", ErrInvalidEntry, len(fields))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	port, err := strconv.ParseUint(fields[2], 10, 16)
	if err != nil {
		return LogEntry{}, fmt.Errorf("%w: bad port %q", ErrInvalidEntry, fields[2])
	}
	accessTime, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return LogEntry{}, fmt.Errorf("%w: bad accessTime %q", ErrInvalidEntry, fields[3])
	}
	dataSent, err := strconv.ParseUint(fields[4], 10, 32)
	if err != nil {
		return LogEntry{}, fmt.Errorf("%w: bad dataSent %q", ErrInvalidEntry, fields[4])
	}
	dataReceived, err := strconv.ParseUint(fields[5], 10, 32)
	if err != nil {
		return LogEntry{}, fmt.Errorf("%w: bad dataReceived %q", ErrInvalidEntry, fields[5])
	}
	score, err := strconv.ParseFloat(fields[6], 32)
	if err != nil {
		return LogEntry{}, fmt.Errorf("%w: bad score %q", ErrInvalidEntry, fields[6])
	}

	e := LogEntry{
		Username:     fields[0],
		IP:           fields[1],
		Server:       fields[7],
		Port:         uint16(port),
		AccessTime:   uint32(accessTime),
		DataSent:     uint32(dataSent),
		DataReceived: uint32(dataReceived),
		Score:        float32(score),
	}
	if err := e.Validate(); err != nil {
		return LogEntry{}, err
	}
	return e, nil
}
