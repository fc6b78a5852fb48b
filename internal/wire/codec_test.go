package wire

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/logferry/logferry/internal/model"
)

func sampleEntries() []model.LogEntry {
	return []model.LogEntry{
		{Username: "Alice", IP: "10.0.0.9", Server: "srvA", Port: 54362,
			AccessTime: 100, DataSent: 100, DataReceived: 0, Score: 1.0},
		{Username: "Bob", IP: "2001:db8::1", Server: "srvB", Port: 24153,
			AccessTime: 50, DataSent: 4096, DataReceived: 1234567, Score: -3.25},
		{Username: "五郎", IP: "192.168.1.1", Server: "sörver", Port: 0,
			AccessTime: 0, DataSent: 0, DataReceived: 0, Score: 0},
	}
}

func TestUploadRoundTrip(t *testing.T) {
	entries := sampleEntries()
	frame, err := ReadFrame(bytes.NewReader(EncodeUpload(entries)))
	require.NoError(t, err)

	assert.Equal(t, CmdUpload, frame.Command)
	assert.Equal(t, entries, frame.Entries)
}

func TestQueryRoundTrip(t *testing.T) {
	query := "accessTime<75,server=srvA"
	frame, err := ReadFrame(bytes.NewReader(EncodeQuery(query)))
	require.NoError(t, err)

	assert.Equal(t, CmdQuery, frame.Command)
	assert.Equal(t, query, frame.Query)
}

func TestResultSetRoundTrip(t *testing.T) {
	entries := sampleEntries()
	got, err := ReadResultSet(bytes.NewReader(EncodeResultSet(entries)))
	require.NoError(t, err)
	assert.Equal(t, entries, got)

	empty, err := ReadResultSet(bytes.NewReader(EncodeResultSet(nil)))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCountRoundTrip(t *testing.T) {
	n, err := ReadCount(bytes.NewReader(EncodeCount(42)))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), n)
}

func TestReadFrameCleanEOF(t *testing.T) {
	// EOF before the first command byte is a clean peer close, not a
	// truncated frame.
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.Equal(t, io.EOF, err)
}

func TestReadFrameTruncated(t *testing.T) {
	full := EncodeUpload(sampleEntries())
	// Every proper prefix must surface Truncated, never a partial record.
	for _, cut := range []int{1, 3, 7, len(full) / 2, len(full) - 1} {
		_, err := ReadFrame(bytes.NewReader(full[:cut]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}
}

func TestReadFrameMalformed(t *testing.T) {
	// Unknown command code.
	_, err := ReadFrame(bytes.NewReader([]byte{0xff, 0xff, 0, 0, 0, 0}))
	assert.ErrorIs(t, err, ErrMalformed)

	// Record count far beyond the frame limit.
	buf := []byte{0x00, 0x01, 0xff, 0xff, 0xff, 0xff}
	_, err = ReadFrame(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrMalformed)

	// Query length beyond the string limit.
	buf = []byte{0x00, 0x02, 0xff, 0xff, 0xff, 0xff}
	_, err = ReadFrame(bytes.NewReader(buf))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseFrameIncremental(t *testing.T) {
	full := EncodeUpload(sampleEntries())

	// Feed the frame byte by byte: every prefix is incomplete, the
	// whole buffer decodes exactly once.
	for cut := 0; cut < len(full); cut++ {
		_, _, err := ParseFrame(full[:cut])
		require.ErrorIs(t, err, ErrIncomplete, "cut at %d", cut)
	}

	frame, n, err := ParseFrame(full)
	require.NoError(t, err)
	assert.Equal(t, len(full), n)
	assert.Equal(t, sampleEntries(), frame.Entries)
}

func TestParseFrameLeavesTrailingBytes(t *testing.T) {
	first := EncodeQuery("score>4")
	second := EncodeQuery("score<9.5")
	buf := append(append([]byte{}, first...), second...)

	frame, n, err := ParseFrame(buf)
	require.NoError(t, err)
	assert.Equal(t, "score>4", frame.Query)
	assert.Equal(t, len(first), n)

	frame, n, err = ParseFrame(buf[n:])
	require.NoError(t, err)
	assert.Equal(t, "score<9.5", frame.Query)
	assert.Equal(t, len(second), n)
}

func TestParseFrameMalformed(t *testing.T) {
	_, _, err := ParseFrame([]byte{0xab, 0xcd})
	assert.ErrorIs(t, err, ErrMalformed)
}
