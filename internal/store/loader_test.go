package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const csvSource = `Alice,10.0.0.9,54362,100,100,0,1.0,srvA
Bob,999.1.1.1,24153,50,100,0,1.0,srvA
Cara,10.0.0.7,8080,60,5,12,7.5,srvB
`

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestLoadFileSkipsMalformedLines(t *testing.T) {
	path := writeTemp(t, "access.log", []byte(csvSource))

	loader := NewLoader(zaptest.NewLogger(t))
	queue, skipped, err := loader.LoadFile(path)
	require.NoError(t, err)

	// The bad-IP line is skipped with a diagnostic; everything else loads.
	assert.Equal(t, 1, skipped)
	require.Equal(t, 2, queue.Len())

	drained := queue.DequeueAll()
	assert.Equal(t, "Cara", drained[0].Username) // accessTime 60
	assert.Equal(t, "Alice", drained[1].Username)
}

func TestLoadFileZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "access.log.zst")
	f, err := os.Create(path)
	require.NoError(t, err)
	enc, err := zstd.NewWriter(f)
	require.NoError(t, err)
	_, err = enc.Write([]byte(csvSource))
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	loader := NewLoader(zaptest.NewLogger(t))
	queue, skipped, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, queue.Len())
}

func TestLoadFileJSONLines(t *testing.T) {
	src := `{"username":"Alice","ip":"10.0.0.9","server":"srvA","port":54362,"accessTime":100,"dataSent":100,"dataReceived":0,"score":1.0}
not json at all
{"username":"Bob","ip":"10.0.0.4","server":"srvA","port":24153,"accessTime":50,"dataSent":100,"dataReceived":0,"score":1.0}
`
	path := writeTemp(t, "access.jsonl", []byte(src))

	loader := NewLoader(zaptest.NewLogger(t))
	queue, skipped, err := loader.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Equal(t, 2, queue.Len())

	drained := queue.DequeueAll()
	assert.Equal(t, "Bob", drained[0].Username)
	assert.Equal(t, "Alice", drained[1].Username)
}

func TestLoadFileMissing(t *testing.T) {
	loader := NewLoader(zaptest.NewLogger(t))
	_, _, err := loader.LoadFile(filepath.Join(t.TempDir(), "nope.log"))
	assert.Error(t, err)
}
