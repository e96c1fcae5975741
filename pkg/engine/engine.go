// Package engine provides the embedded property-graph store that matching
// runs read from and write results back to.
//
// Graph records live in an in-memory KV store; every mutation is appended to
// a CRC-framed log that is replayed on Open and compacted in the background.
//
// Basic usage:
//
//	opts := engine.DefaultOptions("./data")
//	db, err := engine.Open(opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
package engine

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sanonone/kektormatch/pkg/core"
	"github.com/sanonone/kektormatch/pkg/metrics"
	"github.com/sanonone/kektormatch/pkg/persistence"
)

// Options configures persistence and background maintenance.
type Options struct {
	// DataDir holds the log. It is created if missing.
	DataDir string

	// AofFilename is the log file name (default "kektormatch.aof").
	AofFilename string

	// AutoSaveInterval and AutoSaveThreshold together trigger a compaction
	// once at least AutoSaveThreshold writes happened and AutoSaveInterval
	// elapsed since the last one. Zero disables either condition.
	AutoSaveInterval  time.Duration
	AutoSaveThreshold int64

	// AofRewritePercentage compacts the log when it grew by this percentage
	// over its size after the last compaction. 0 disables.
	AofRewritePercentage int

	// MaintenanceInterval is how often the policies above are evaluated.
	MaintenanceInterval time.Duration

	// Lazy tunes log batching.
	Lazy persistence.LazyConfig
}

// DefaultOptions returns the stock configuration rooted at dataDir.
//
// Defaults:
//   - AofFilename: "kektormatch.aof"
//   - AutoSave: every 60s if at least 1000 writes occurred
//   - AofRewrite: at 100% growth
func DefaultOptions(dataDir string) Options {
	return Options{
		DataDir:              dataDir,
		AofFilename:          "kektormatch.aof",
		AutoSaveInterval:     60 * time.Second,
		AutoSaveThreshold:    1000,
		AofRewritePercentage: 100,
		MaintenanceInterval:  time.Second,
		Lazy:                 persistence.DefaultLazyConfig(),
	}
}

// Engine is the graph store. All methods are safe for concurrent use;
// mutations are serialized, reads run in parallel.
type Engine struct {
	// AOF is the batched append-only log.
	AOF *persistence.LazyAOFWriter

	mu    sync.RWMutex
	state *graphState

	opts        Options
	aofPath     string
	aofBaseSize int64

	dirtyCounter int64
	lastSaveTime time.Time

	adminMu sync.Mutex

	closed    chan struct{}
	isClosed  atomic.Bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open loads the graph from the log in opts.DataDir and starts background
// maintenance. It blocks until the graph is fully loaded.
func Open(opts Options) (*Engine, error) {
	if opts.AofFilename == "" {
		opts.AofFilename = DefaultOptions(opts.DataDir).AofFilename
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	e := &Engine{
		state:        newGraphState(core.NewKVStore()),
		opts:         opts,
		aofPath:      filepath.Join(opts.DataDir, opts.AofFilename),
		lastSaveTime: time.Now(),
		closed:       make(chan struct{}),
	}

	start := time.Now()
	stats, err := e.replayAOF()
	if err != nil {
		return nil, fmt.Errorf("failed to replay AOF: %w", err)
	}

	aofWriter, err := persistence.NewAOFWriter(e.aofPath)
	if err != nil {
		return nil, err
	}
	e.AOF = persistence.NewLazyAOFWriterWithConfig(aofWriter, opts.Lazy)
	e.aofBaseSize = e.AOF.Size()

	e.publishCounts()
	slog.Info("graph store loaded",
		"path", e.aofPath,
		"commands", stats.Commands,
		"nodes", e.state.nodes.Len(),
		"edges", e.state.edges,
		"duration", time.Since(start),
	)

	e.wg.Add(1)
	go e.backgroundTasks()

	return e, nil
}

// Close stops maintenance and flushes the log. Further writes fail with
// ErrClosed; reads on the in-memory graph keep working.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.isClosed.Store(true)
		close(e.closed)
		e.wg.Wait()

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.AOF != nil {
			err = e.AOF.Close()
		}
	})
	return err
}

func (e *Engine) backgroundTasks() {
	defer e.wg.Done()

	interval := e.opts.MaintenanceInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.closed:
			return
		case <-ticker.C:
			e.checkMaintenance()
		}
	}
}

// checkMaintenance compacts the log when either policy fires.
func (e *Engine) checkMaintenance() {
	dirty := atomic.LoadInt64(&e.dirtyCounter)

	e.adminMu.Lock()
	sinceSave := time.Since(e.lastSaveTime)
	base := e.aofBaseSize
	e.adminMu.Unlock()

	if e.opts.AutoSaveThreshold > 0 && e.opts.AutoSaveInterval > 0 {
		if dirty >= e.opts.AutoSaveThreshold && sinceSave >= e.opts.AutoSaveInterval {
			if err := e.RewriteAOF(); err != nil {
				slog.Error("background AOF compaction failed", "error", err)
			}
			return
		}
	}

	if e.opts.AofRewritePercentage > 0 {
		threshold := base + base*int64(e.opts.AofRewritePercentage)/100
		// skip tiny logs
		if threshold < 1024*1024 {
			threshold = 1024 * 1024
		}
		if e.AOF.Size() > threshold {
			if err := e.RewriteAOF(); err != nil {
				slog.Error("background AOF rewrite failed", "error", err)
			}
		}
	}
}

func (e *Engine) publishCounts() {
	metrics.GraphNodes.Set(float64(e.state.nodes.Len()))
	metrics.GraphEdges.Set(float64(e.state.edges))
}
