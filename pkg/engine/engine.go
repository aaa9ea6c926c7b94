// Package engine provides the high-level, embedded interface for KektorGraph.
//
// It opens one of the storage backends (the in-memory store, optionally
// backed by snapshot files, or the bbolt-based disk store), instruments every
// call with Prometheus metrics and, for the memory backend, runs a
// background task that snapshots the graph when enough writes accumulated.
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
	"time"

	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/datastore/disk"
	"github.com/sanonone/kektorgraph/pkg/datastore/memory"
	"github.com/sanonone/kektorgraph/pkg/metrics"
)

// Engine is the main entry point for KektorGraph. It satisfies
// datastore.Datastore, so it can be used wherever a bare backend can.
//
// Use Open() to initialize an Engine and Close() to shut it down gracefully.
type Engine struct {
	ds      datastore.Datastore
	backend string

	// mem is set for the memory backend; it owns the snapshot file.
	mem *memory.Datastore
	// dsk is set for the disk backend.
	dsk *disk.Datastore

	opts         Options
	path         string
	lastSaveTime time.Time

	// adminMu serializes snapshots.
	adminMu sync.Mutex

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ datastore.Datastore = (*Engine)(nil)

// Open initializes a new Engine instance using the provided options.
//
// It performs the following actions:
// 1. Creates DataDir if missing.
// 2. Opens the configured backend, loading the snapshot (memory) or the
// database file (disk).
// 3. Starts the background snapshot task for a persistent memory backend.
func Open(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts:         opts,
		backend:      opts.Backend,
		lastSaveTime: time.Now(),
		closed:       make(chan struct{}),
	}

	if opts.DataDir != "" {
		if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		e.path = filepath.Join(opts.DataDir, opts.filename())
	}

	switch opts.Backend {
	case BackendMemory:
		mem, err := memory.Open(memory.Options{Path: e.path, PageSize: opts.PageSize})
		if err != nil {
			return nil, fmt.Errorf("failed to open memory datastore: %w", err)
		}
		e.mem, e.ds = mem, mem
	case BackendDisk:
		dsk, err := disk.Open(disk.Options{
			Path:     e.path,
			PageSize: opts.PageSize,
			Timeout:  opts.Timeout,
			NoSync:   opts.NoSync,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open disk datastore: %w", err)
		}
		e.dsk, e.ds = dsk, dsk
	}

	if e.mem != nil && e.path != "" {
		e.wg.Add(1)
		go e.backgroundTasks()
	}

	slog.Info("Engine opened", "backend", opts.Backend, "path", e.path)
	return e, nil
}

// Close performs a clean shutdown of the Engine.
//
// It stops the background task and closes the backend. The memory backend
// writes a final snapshot on close, so no acknowledged write is lost.
func (e *Engine) Close() error {
	var err error

	e.closeOnce.Do(func() {
		close(e.closed)
		e.wg.Wait()

		e.adminMu.Lock()
		defer e.adminMu.Unlock()
		if err = e.ds.Close(); err != nil {
			slog.Error("Engine close failed", "backend", e.backend, "error", err)
			return
		}
		slog.Info("Engine closed", "backend", e.backend)
	})
	return err
}

// SaveSnapshot persists the current state. For the memory backend it writes
// a full snapshot file; for the disk backend it forces an fsync. It is a
// no-op for a memory engine without DataDir.
func (e *Engine) SaveSnapshot() error {
	e.adminMu.Lock()
	defer e.adminMu.Unlock()

	if e.dsk != nil {
		return e.dsk.Sync()
	}
	if e.path == "" {
		return nil
	}

	start := time.Now()
	if err := e.mem.Sync(); err != nil {
		metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.SnapshotsTotal.WithLabelValues("ok").Inc()
	e.lastSaveTime = time.Now()
	slog.Info("Snapshot saved", "path", e.path, "duration", time.Since(start))
	return nil
}

// backgroundTasks handles automatic snapshots.
// (Unexported: internal use only)
func (e *Engine) backgroundTasks() {
	defer e.wg.Done()

	// Use the configured value or a safe default if 0
	interval := e.opts.MaintenanceInterval
	if interval <= 0 {
		interval = 1 * time.Second
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

// checkMaintenance evaluates if a snapshot is needed: both enough writes
// and enough time since the last save.
func (e *Engine) checkMaintenance() {
	if e.opts.SnapshotThreshold <= 0 || e.opts.SnapshotInterval <= 0 {
		return
	}

	dirty := e.mem.Dirty()
	e.adminMu.Lock()
	due := time.Since(e.lastSaveTime) >= e.opts.SnapshotInterval
	e.adminMu.Unlock()

	if dirty >= e.opts.SnapshotThreshold && due {
		if err := e.SaveSnapshot(); err != nil {
			// Log error but continue (background task)
			slog.Error("Background snapshot failed", "error", err)
		}
	}
}
