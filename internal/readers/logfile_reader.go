package readers

import (
	"context"
	"fmt"
	"io"

	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"
)

// SeekStrategy controls where LogfileReader starts reading an existing file
// (spec.md §4.2 "LogfileReader"), mirrored from an equivalent
// determineSeekPosition.
type SeekStrategy string

const (
	SeekBeginning SeekStrategy = "beginning"
	SeekEnd       SeekStrategy = "end"
	SeekRecent    SeekStrategy = "recent"
)

// LogfileReaderConfig configures a LogfileReader.
type LogfileReaderConfig struct {
	Path string

	// Seek chooses where to start reading a pre-existing file. Defaults to
	// SeekBeginning.
	Seek SeekStrategy

	// RecentBytes is the offset from EOF used when Seek is SeekRecent.
	// Defaults to 1MB.
	RecentBytes int64

	// Poll forces polling for file changes instead of inotify, for
	// filesystems (NFS, some containers) where inotify isn't reliable.
	Poll bool

	Logger *logrus.Logger
}

// LogfileReader tails a single file, following rotation (truncate/recreate)
// via nxadm/tail's ReOpen, and hands lines back one at a time through Read.
// Grounded on internal/monitors/file_monitor.go's logTailer, trimmed from
// its worker-pool/dispatcher plumbing down to a plain blocking Reader.
type LogfileReader struct {
	cfg    LogfileReaderConfig
	tailer *tail.Tail
	logger *logrus.Logger
}

func NewLogfileReader(cfg LogfileReaderConfig) (*LogfileReader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("readers: logfile path is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	tailCfg := tail.Config{
		Follow:   true,
		ReOpen:   true,
		Poll:     cfg.Poll,
		Location: seekInfo(cfg),
	}

	t, err := tail.TailFile(cfg.Path, tailCfg)
	if err != nil {
		return nil, fmt.Errorf("readers: failed to tail %s: %w", cfg.Path, err)
	}

	cfg.Logger.WithFields(logrus.Fields{
		"component": "logfile_reader",
		"path":      cfg.Path,
		"seek":      cfg.Seek,
		"poll":      cfg.Poll,
	}).Info("tailing file")

	return &LogfileReader{cfg: cfg, tailer: t, logger: cfg.Logger}, nil
}

func seekInfo(cfg LogfileReaderConfig) *tail.SeekInfo {
	switch cfg.Seek {
	case SeekEnd:
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	case SeekRecent:
		offset := cfg.RecentBytes
		if offset == 0 {
			offset = 1048576
		}
		return &tail.SeekInfo{Offset: -offset, Whence: io.SeekEnd}
	case SeekBeginning:
		fallthrough
	default:
		return &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}
}

// Read blocks until the next line is available, ctx is cancelled, or the
// tailer's line channel closes (the file was removed and ReOpen gave up).
func (r *LogfileReader) Read(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-r.tailer.Lines:
		if !ok {
			if err := r.tailer.Err(); err != nil {
				return "", fmt.Errorf("readers: tailer for %s stopped: %w", r.cfg.Path, err)
			}
			return "", io.EOF
		}
		if line.Err != nil {
			return "", fmt.Errorf("readers: line error on %s: %w", r.cfg.Path, line.Err)
		}
		return line.Text, nil
	}
}

func (r *LogfileReader) Close() error {
	if err := r.tailer.Stop(); err != nil {
		return fmt.Errorf("readers: failed to stop tailer for %s: %w", r.cfg.Path, err)
	}
	r.tailer.Cleanup()
	return nil
}
