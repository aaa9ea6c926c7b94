// Package memory implements the datastore contract over ordered in-process
// containers (tidwall/btree).
//
// All mutations are serialized by a single exclusive lock and applied to a
// copy-on-write clone of the trees, which replaces the published state only
// when every item of the call succeeded. Readers share a read lock and walk
// the trees one page at a time.
//
// When Options.Path is set the store is loaded from a snapshot file at open
// and Sync (and Close) write a new one.
package memory

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// DefaultPageSize is the number of items read per lock acquisition while
// scanning.
const DefaultPageSize = 256

// Options configures a memory datastore.
type Options struct {
	// Path of the snapshot file. Empty disables persistence.
	Path string

	// PageSize bounds how many items a scan holds at once.
	PageSize int

	// Clock returns edge timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Datastore is the in-memory backend.
type Datastore struct {
	mu    sync.RWMutex
	state *state

	opts     Options
	pageSize int
	clock    func() time.Time

	// dirty counts committed write calls since the last snapshot.
	dirty     atomic.Int64
	closeOnce sync.Once
	// closed is guarded by mu.
	closed bool
}

// ErrClosed is wrapped in the StorageError returned by every call made
// after Close.
var ErrClosed = errors.New("datastore is closed")

// checkOpen must be called with mu held.
func (d *Datastore) checkOpen(op string) error {
	if d.closed {
		return graph.NewStorageError(op, ErrClosed)
	}
	return nil
}

var _ datastore.Datastore = (*Datastore)(nil)
var _ datastore.Reader = (*Datastore)(nil)

// New returns an empty, non-persistent datastore.
func New() *Datastore {
	ds, _ := Open(Options{})
	return ds
}

// Open creates a datastore and, if opts.Path names an existing snapshot,
// loads it.
func Open(opts Options) (*Datastore, error) {
	d := &Datastore{
		state:    newState(),
		opts:     opts,
		pageSize: opts.PageSize,
		clock:    opts.Clock,
	}
	if d.pageSize <= 0 {
		d.pageSize = DefaultPageSize
	}
	if d.clock == nil {
		d.clock = time.Now
	}

	if opts.Path != "" {
		s, err := loadSnapshot(opts.Path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Debug("No snapshot found, starting empty", "path", opts.Path)
		case err != nil:
			return nil, graph.NewStorageError("load snapshot", err)
		default:
			d.state = s
			slog.Info("Snapshot loaded", "path", opts.Path, "vertices", s.vertices.Len(), "edges", s.edges.Len())
		}
	}
	return d, nil
}

// Dirty returns the number of write calls committed since the last Sync.
func (d *Datastore) Dirty() int64 {
	return d.dirty.Load()
}

// Sync writes a snapshot of the current state to Options.Path. It is a
// no-op for a non-persistent store.
func (d *Datastore) Sync() error {
	if d.opts.Path == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen("sync"); err != nil {
		return err
	}

	dirty := d.dirty.Load()
	if err := writeSnapshot(d.opts.Path, d.state); err != nil {
		return graph.NewStorageError("write snapshot", err)
	}
	d.dirty.Add(-dirty)
	return nil
}

// Close writes a final snapshot when the store is persistent. Every later
// call fails with ErrClosed; closing again is a no-op.
func (d *Datastore) Close() error {
	var err error
	d.closeOnce.Do(func() {
		err = d.Sync()
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
	})
	return err
}

// mutate applies items atomically: they run against a clone which is only
// published if all of them succeed.
func (d *Datastore) mutate(items ...datastore.Mutation) error {
	if err := datastore.ValidateAll(items); err != nil {
		return err
	}
	now := d.clock().UTC()

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen("write"); err != nil {
		return err
	}

	next := d.state.clone()
	for i, m := range items {
		if err := next.apply(m, now); err != nil {
			if len(items) > 1 {
				return fmt.Errorf("bulk item %d: %w", i, err)
			}
			return err
		}
	}
	d.state = next
	d.dirty.Add(1)
	return nil
}

// Bulk implements datastore.Datastore.
func (d *Datastore) Bulk(items []datastore.Mutation) error {
	if len(items) == 0 {
		return nil
	}
	return d.mutate(items...)
}

func (d *Datastore) CreateVertex(v graph.Vertex) error {
	return d.mutate(datastore.CreateVertex{Vertex: v})
}

func (d *Datastore) CreateVertexFromType(t graph.Identifier) (uuid.UUID, error) {
	v := graph.NewVertex(t)
	if err := d.CreateVertex(v); err != nil {
		return uuid.Nil, err
	}
	return v.ID, nil
}

func (d *Datastore) GetVertices(q query.Query) (iter.Seq2[graph.Vertex, error], error) {
	return datastore.Vertices(d, q)
}

func (d *Datastore) DeleteVertices(q query.Query) error {
	return d.deleteMatching(q, query.VertexOutput)
}

func (d *Datastore) VertexCount() (uint64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen("count"); err != nil {
		return 0, err
	}
	return uint64(d.state.vertices.Len()), nil
}

func (d *Datastore) CreateEdge(key graph.EdgeKey) error {
	return d.mutate(datastore.CreateEdge{Key: key})
}

func (d *Datastore) GetEdges(q query.Query) (iter.Seq2[graph.Edge, error], error) {
	return datastore.Edges(d, q)
}

func (d *Datastore) DeleteEdges(q query.Query) error {
	return d.deleteMatching(q, query.EdgeOutput)
}

func (d *Datastore) EdgeCount(id uuid.UUID, t *graph.Identifier, dir graph.Direction) (uint64, error) {
	if t != nil {
		if err := t.Valid(); err != nil {
			return 0, err
		}
	}
	var n uint64
	for _, err := range d.Adjacent(id, dir, t) {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

func (d *Datastore) GetVertexProperty(id uuid.UUID, name graph.Identifier) (graph.Value, error) {
	if err := name.Valid(); err != nil {
		return nil, err
	}
	val, ok, err := d.VertexProperty(id, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("property %s of vertex %s: %w", name, id, graph.ErrNotFound)
	}
	return val, nil
}

func (d *Datastore) SetVertexProperty(id uuid.UUID, name graph.Identifier, value graph.Value) error {
	return d.mutate(datastore.SetVertexProperty{ID: id, Name: name, Value: value})
}

func (d *Datastore) DeleteVertexProperty(id uuid.UUID, name graph.Identifier) error {
	return d.mutate(datastore.DeleteVertexProperty{ID: id, Name: name})
}

func (d *Datastore) GetVertexProperties(q query.Query, name graph.Identifier) (iter.Seq2[graph.VertexProperty, error], error) {
	return datastore.VertexProperties(d, q, name)
}

func (d *Datastore) GetEdgeProperty(key graph.EdgeKey, name graph.Identifier) (graph.Value, error) {
	if err := name.Valid(); err != nil {
		return nil, err
	}
	val, ok, err := d.EdgeProperty(key, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("property %s of edge %s: %w", name, key, graph.ErrNotFound)
	}
	return val, nil
}

func (d *Datastore) SetEdgeProperty(key graph.EdgeKey, name graph.Identifier, value graph.Value) error {
	return d.mutate(datastore.SetEdgeProperty{Key: key, Name: name, Value: value})
}

func (d *Datastore) DeleteEdgeProperty(key graph.EdgeKey, name graph.Identifier) error {
	return d.mutate(datastore.DeleteEdgeProperty{Key: key, Name: name})
}

func (d *Datastore) GetEdgeProperties(q query.Query, name graph.Identifier) (iter.Seq2[graph.EdgeProperty, error], error) {
	return datastore.EdgeProperties(d, q, name)
}

// deleteMatching evaluates q and deletes the matches in one atomic step. The
// query runs under the write lock against the state being modified, so no
// other writer can slip in between evaluation and deletion.
func (d *Datastore) deleteMatching(q query.Query, out query.Output) error {
	if err := q.Expect(out); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkOpen("delete"); err != nil {
		return err
	}

	// The published state is immutable, so it can be read through a
	// private view (with its own lock) while the clone is modified.
	view := &Datastore{state: d.state, pageSize: d.pageSize, clock: d.clock}
	next := d.state.clone()
	deleted := 0

	if out == query.VertexOutput {
		vertices, err := datastore.Vertices(view, q)
		if err != nil {
			return err
		}
		for v, err := range vertices {
			if err != nil {
				return err
			}
			// A traversal may yield the same vertex more than once.
			if !next.hasVertex(v.ID) {
				continue
			}
			if err := next.deleteVertex(v.ID); err != nil {
				return err
			}
			deleted++
		}
	} else {
		edges, err := datastore.Edges(view, q)
		if err != nil {
			return err
		}
		for e, err := range edges {
			if err != nil {
				return err
			}
			if next.deleteEdge(e.Key) {
				deleted++
			}
		}
	}

	if deleted > 0 {
		d.state = next
		d.dirty.Add(1)
	}
	return nil
}
