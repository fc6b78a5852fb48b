package store

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"

	"github.com/logferry/logferry/internal/model"
)

// Loader reads source log files into an UploadQueue. Malformed lines
// are skipped with a diagnostic naming the line; they never abort the
// load.
type Loader struct {
	log    *zap.Logger
	parser fastjson.ParserPool
}

// NewLoader returns a Loader logging skipped lines through log.
func NewLoader(log *zap.Logger) *Loader {
	return &Loader{log: log}
}

// LoadFile loads path into a fresh queue. `.zst` files are
// decompressed transparently; `.json`/`.jsonl` files (compressed or
// not) are parsed as one JSON object per line, everything else as
// comma-separated text.
func (l *Loader) LoadFile(path string) (*UploadQueue, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open source log: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	name := path
	if strings.HasSuffix(name, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, 0, fmt.Errorf("open zstd source log: %w", err)
		}
		defer dec.Close()
		r = dec
		name = strings.TrimSuffix(name, ".zst")
	}

	jsonLines := strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".jsonl")
	return l.load(r, jsonLines)
}

// load reads one record per line from r, returning the populated queue
// and the number of skipped lines.
func (l *Loader) load(r io.Reader, jsonLines bool) (*UploadQueue, int, error) {
	queue := NewUploadQueue()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	skipped := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var e model.LogEntry
		var err error
		if jsonLines {
			e, err = l.parseJSONLine(line)
		} else {
			e, err = model.ParseLine(line)
		}
		if err != nil {
			skipped++
			l.log.Warn("skipping malformed line",
				zap.Int("line", lineNo),
				zap.Error(err))
			continue
		}
		queue.Enqueue(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read source log: %w", err)
	}
	return queue, skipped, nil
}

func (l *Loader) parseJSONLine(line string) (model.LogEntry, error) {
	p := l.parser.Get()
	defer l.parser.Put(p)

	v, err := p.Parse(line)
	if err != nil {
		return model.LogEntry{}, fmt.Errorf("%w: %v", model.ErrInvalidEntry, err)
	}

	port := v.GetUint("port")
	if port > math.MaxUint16 {
		return model.LogEntry{}, fmt.Errorf("%w: bad port %d", model.ErrInvalidEntry, port)
	}
	e := model.LogEntry{
		Username:     string(v.GetStringBytes("username")),
		IP:           string(v.GetStringBytes("ip")),
		Server:       string(v.GetStringBytes("server")),
		Port:         uint16(port),
		AccessTime:   uint32(v.GetUint("accessTime")),
		DataSent:     uint32(v.GetUint("dataSent")),
		DataReceived: uint32(v.GetUint("dataReceived")),
		Score:        float32(v.GetFloat64("score")),
	}
	if err := e.Validate(); err != nil {
		return model.LogEntry{}, err
	}
	return e, nil
}
