package persistence

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrWriterClosed is returned by writes after Close.
var ErrWriterClosed = errors.New("AOF writer is closed")

// LazyConfig tunes the batching of a LazyAOFWriter.
type LazyConfig struct {
	// FlushInterval is how often buffered frames reach the OS.
	FlushInterval time.Duration
	// SyncInterval is how often the file is fsynced. It bounds the window of
	// writes lost on a crash.
	SyncInterval time.Duration
	// MaxBuffered frames trigger an immediate flush.
	MaxBuffered int
}

// DefaultLazyConfig flushes every 100ms, syncs every second and caps the
// buffer at 1000 frames.
func DefaultLazyConfig() LazyConfig {
	return LazyConfig{
		FlushInterval: 100 * time.Millisecond,
		SyncInterval:  time.Second,
		MaxBuffered:   1000,
	}
}

// LazyAOFWriter batches frames in memory and hands them to an AOFWriter from
// background tickers. Graph mutations call Write on the hot path and never
// wait for the disk; Flush and Sync are available when a caller needs a
// durability point.
type LazyAOFWriter struct {
	underlying *AOFWriter
	cfg        LazyConfig

	mu      sync.Mutex
	buffer  [][]byte
	stopped bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewLazyAOFWriter wraps underlying with DefaultLazyConfig.
func NewLazyAOFWriter(underlying *AOFWriter) *LazyAOFWriter {
	return NewLazyAOFWriterWithConfig(underlying, DefaultLazyConfig())
}

// NewLazyAOFWriterWithConfig wraps underlying. Zero fields of cfg take the
// defaults. The underlying writer must not be used directly afterwards.
func NewLazyAOFWriterWithConfig(underlying *AOFWriter, cfg LazyConfig) *LazyAOFWriter {
	def := DefaultLazyConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = def.SyncInterval
	}
	if cfg.MaxBuffered <= 0 {
		cfg.MaxBuffered = def.MaxBuffered
	}

	lw := &LazyAOFWriter{
		underlying: underlying,
		cfg:        cfg,
		buffer:     make([][]byte, 0, cfg.MaxBuffered),
		stopCh:     make(chan struct{}),
	}

	lw.wg.Add(1)
	go lw.loop()

	slog.Debug("lazy AOF writer started",
		"path", underlying.Path(),
		"flush_interval", cfg.FlushInterval,
		"sync_interval", cfg.SyncInterval,
		"max_buffered", cfg.MaxBuffered,
	)
	return lw
}

// Write queues one frame. A full buffer is flushed inline.
func (lw *LazyAOFWriter) Write(frame []byte) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.stopped {
		return ErrWriterClosed
	}
	lw.buffer = append(lw.buffer, frame)
	if len(lw.buffer) >= lw.cfg.MaxBuffered {
		return lw.flushLocked()
	}
	return nil
}

// Flush writes every queued frame through to the OS.
func (lw *LazyAOFWriter) Flush() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.flushLocked()
}

func (lw *LazyAOFWriter) flushLocked() error {
	if len(lw.buffer) == 0 {
		return nil
	}
	for i, frame := range lw.buffer {
		if err := lw.underlying.Write(frame); err != nil {
			// keep what was not written for the next attempt
			lw.buffer = append(lw.buffer[:0], lw.buffer[i:]...)
			return err
		}
	}
	lw.buffer = lw.buffer[:0]
	return lw.underlying.Flush()
}

// Sync flushes queued frames and fsyncs.
func (lw *LazyAOFWriter) Sync() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.flushLocked(); err != nil {
		return err
	}
	return lw.underlying.Sync()
}

// Close stops the tickers, writes out everything pending and closes the file.
func (lw *LazyAOFWriter) Close() error {
	lw.mu.Lock()
	if lw.stopped {
		lw.mu.Unlock()
		return ErrWriterClosed
	}
	lw.stopped = true
	lw.mu.Unlock()

	close(lw.stopCh)
	lw.wg.Wait()

	lw.mu.Lock()
	defer lw.mu.Unlock()
	if err := lw.flushLocked(); err != nil {
		slog.Error("failed to flush AOF during close", "error", err)
	}
	return lw.underlying.Close()
}

// Size returns the log size including frames still queued here.
func (lw *LazyAOFWriter) Size() int64 {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	size := lw.underlying.Size()
	for _, f := range lw.buffer {
		size += int64(len(f))
	}
	return size
}

// Path returns the log path.
func (lw *LazyAOFWriter) Path() string {
	return lw.underlying.Path()
}

// ReplaceWith flushes pending frames and swaps in a rewritten log.
// Callers must block writers for the duration so no frame lands in the old
// file after the rewrite snapshot was taken.
func (lw *LazyAOFWriter) ReplaceWith(newFilePath string) error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if err := lw.flushLocked(); err != nil {
		return err
	}
	return lw.underlying.ReplaceWith(newFilePath)
}

func (lw *LazyAOFWriter) loop() {
	defer lw.wg.Done()

	flush := time.NewTicker(lw.cfg.FlushInterval)
	defer flush.Stop()
	fsync := time.NewTicker(lw.cfg.SyncInterval)
	defer fsync.Stop()

	for {
		select {
		case <-lw.stopCh:
			return
		case <-flush.C:
			if err := lw.Flush(); err != nil {
				slog.Error("periodic AOF flush failed", "error", err)
			}
		case <-fsync.C:
			if err := lw.Sync(); err != nil {
				slog.Error("periodic AOF sync failed", "error", err)
			}
		}
	}
}
