package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// AOFWriter appends framed commands to the append-only log.
type AOFWriter struct {
	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	path string
	size int64
}

// NewAOFWriter opens or creates the log at path, positioned at its end.
func NewAOFWriter(path string) (*AOFWriter, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open AOF file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat AOF file: %w", err)
	}

	return &AOFWriter{
		file: file,
		buf:  bufio.NewWriter(file),
		path: path,
		size: info.Size(),
	}, nil
}

// Write buffers one frame produced by FormatCommand.
func (a *AOFWriter) Write(frame []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, err := a.buf.Write(frame)
	a.size += int64(n)
	return err
}

// Flush hands buffered frames to the operating system.
func (a *AOFWriter) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Flush()
}

// Sync flushes and fsyncs.
func (a *AOFWriter) Sync() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		return err
	}
	return a.file.Sync()
}

// Close flushes and closes the file.
func (a *AOFWriter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		_ = a.file.Close()
		return err
	}
	if err := a.file.Sync(); err != nil {
		_ = a.file.Close()
		return err
	}
	return a.file.Close()
}

// Size returns the log size in bytes, buffered frames included.
func (a *AOFWriter) Size() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.size
}

// Path returns the file path.
func (a *AOFWriter) Path() string {
	return a.path
}

// ReplaceWith atomically renames newFilePath over the log and reopens it.
// Used at the end of a rewrite.
func (a *AOFWriter) ReplaceWith(newFilePath string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush AOF before replace: %w", err)
	}
	_ = a.file.Close()

	if err := os.Rename(newFilePath, a.path); err != nil {
		return fmt.Errorf("failed to replace AOF file: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0666)
	if err != nil {
		return fmt.Errorf("failed to reopen AOF file after replace: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat AOF file after replace: %w", err)
	}
	a.file = file
	a.size = info.Size()
	a.buf.Reset(file)
	return nil
}

// ReplayStats summarizes a Replay.
type ReplayStats struct {
	Commands  int
	Bytes     int64
	Truncated int64 // bytes of torn tail cut from the file
}

// Replay feeds every command in the log at path to apply, in order.
//
// A torn or corrupted tail, the usual result of a crash mid-write, is cut
// off at the last good frame boundary and logged; everything before it is
// kept. Errors from apply abort the replay. A missing file is an empty log.
func Replay(path string, apply func(*Command) error) (ReplayStats, error) {
	var stats ReplayStats

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return stats, nil
	}
	if err != nil {
		return stats, err
	}

	r := bufio.NewReader(file)
	var readErr error
	for {
		cmd, n, err := ParseCommand(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = err
			break
		}
		if err := apply(cmd); err != nil {
			_ = file.Close()
			return stats, fmt.Errorf("replaying command %d (%s): %w", stats.Commands, cmd.Name, err)
		}
		stats.Commands++
		stats.Bytes += int64(n)
	}

	info, statErr := file.Stat()
	_ = file.Close()
	if readErr == nil {
		return stats, nil
	}
	if statErr != nil {
		return stats, statErr
	}

	stats.Truncated = info.Size() - stats.Bytes
	slog.Warn("AOF tail is damaged, truncating to last valid frame",
		"path", path,
		"error", readErr,
		"valid_bytes", stats.Bytes,
		"dropped_bytes", stats.Truncated,
	)
	if err := os.Truncate(path, stats.Bytes); err != nil {
		return stats, fmt.Errorf("failed to truncate damaged AOF: %w", err)
	}
	return stats, nil
}
