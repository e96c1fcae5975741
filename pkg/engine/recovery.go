package engine

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/sanonone/kektormatch/pkg/core"
	"github.com/sanonone/kektormatch/pkg/persistence"
)

// Logged verbs.
const (
	cmdSet = "SET"
	cmdDel = "DEL"
)

// replayAOF applies the log to the empty KV store and rebuilds the indexes.
func (e *Engine) replayAOF() (persistence.ReplayStats, error) {
	kv := e.state.kv
	stats, err := persistence.Replay(e.aofPath, func(cmd *persistence.Command) error {
		switch cmd.Name {
		case cmdSet:
			if len(cmd.Args) != 2 {
				return fmt.Errorf("SET expects 2 arguments, got %d", len(cmd.Args))
			}
			// Args alias the frame buffer, which is not reused
			kv.Set(string(cmd.Args[0]), cmd.Args[1])
		case cmdDel:
			if len(cmd.Args) != 1 {
				return fmt.Errorf("DEL expects 1 argument, got %d", len(cmd.Args))
			}
			kv.Delete(string(cmd.Args[0]))
		default:
			slog.Warn("skipping unknown AOF command", "command", cmd.Name)
		}
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, e.state.rebuildIndexes()
}

// RewriteAOF compacts the log to one SET per live key. Writers are blocked
// for the duration; readers are not.
func (e *Engine) RewriteAOF() error {
	if e.isClosed.Load() {
		return ErrClosed
	}
	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	tempAof := filepath.Join(e.opts.DataDir, "rewrite.tmp")
	f, err := os.Create(tempAof)
	if err != nil {
		return err
	}
	defer os.Remove(tempAof)

	w := bufio.NewWriter(f)
	var writeErr error
	keys := 0
	e.state.kv.Range("", func(p core.KVPair) bool {
		if _, writeErr = w.Write(persistence.FormatCommand(cmdSet, []byte(p.Key), p.Value)); writeErr != nil {
			return false
		}
		keys++
		return true
	})
	if writeErr == nil {
		writeErr = w.Flush()
	}
	if writeErr == nil {
		writeErr = f.Sync()
	}
	if cerr := f.Close(); writeErr == nil {
		writeErr = cerr
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write compacted AOF: %w", writeErr)
	}

	if err := e.AOF.ReplaceWith(tempAof); err != nil {
		return err
	}

	e.aofBaseSize = e.AOF.Size()
	e.lastSaveTime = time.Now()
	atomic.StoreInt64(&e.dirtyCounter, 0)

	slog.Info("AOF rewritten", "keys", keys, "bytes", e.aofBaseSize, "duration", time.Since(start))
	return nil
}
