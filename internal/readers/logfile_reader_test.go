package readers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLogfileReaderReadsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acquire.log")
	require.NoError(t, os.WriteFile(path, []byte("first\n"), 0o644))

	r, err := NewLogfileReader(LogfileReaderConfig{Path: path, Seek: SeekBeginning})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	line, err := r.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "first", line)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("second\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	line, err = r.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, "second", line)
}

func TestLogfileReaderReadRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "quiet.log")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o644))

	r, err := NewLogfileReader(LogfileReaderConfig{Path: path, Seek: SeekEnd})
	require.NoError(t, err)
	defer r.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = r.Read(ctx)
	require.Error(t, err)
}
