package writers

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rvdas-go/pkg/record"
)

func TestFileWriterCreatesDirectoryAndAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	fw, err := NewFileWriter(FileWriterConfig{Filename: filepath.Join(dir, "out.log"), Flush: true})
	require.NoError(t, err)
	defer fw.Close()

	require.NoError(t, fw.Write(record.New(1.0, map[string]record.Value{"text": "hello"})))
	require.NoError(t, fw.Write(record.New(2.0, map[string]record.Value{"text": "world"})))

	data, err := os.ReadFile(filepath.Join(dir, "out.log"))
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(data))
}

func TestFileWriterRollsOverOnBucketBoundary(t *testing.T) {
	dir := t.TempDir()
	fw, err := NewFileWriter(FileWriterConfig{
		Filename:    filepath.Join(dir, "acquire"),
		Flush:       true,
		SplitByTime: time.Hour,
		TimeLayout:  "-2006010215",
	})
	require.NoError(t, err)
	defer fw.Close()

	t0 := time.Date(2026, 1, 1, 10, 30, 0, 0, time.UTC)
	t1 := t0.Add(15 * time.Minute) // still within the 10:00 hour bucket
	t2 := t0.Add(90 * time.Minute) // rolls into the 12:00 bucket

	require.NoError(t, fw.Write(record.New(float64(t0.Unix()), map[string]record.Value{"text": "a"})))
	require.NoError(t, fw.Write(record.New(float64(t1.Unix()), map[string]record.Value{"text": "b"})))
	require.NoError(t, fw.Write(record.New(float64(t2.Unix()), map[string]record.Value{"text": "c"})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestFileWriterWritesHeaderOnlyOnNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	fw, err := NewFileWriter(FileWriterConfig{Filename: path, Flush: true, Header: "# header"})
	require.NoError(t, err)
	require.NoError(t, fw.Write(record.New(1.0, map[string]record.Value{"text": "line1"})))
	require.NoError(t, fw.Close())

	fw2, err := NewFileWriter(FileWriterConfig{Filename: path, Flush: true, Header: "# header"})
	require.NoError(t, err)
	require.NoError(t, fw2.Write(record.New(2.0, map[string]record.Value{"text": "line2"})))
	require.NoError(t, fw2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# header\nline1\nline2\n", string(data))
}
