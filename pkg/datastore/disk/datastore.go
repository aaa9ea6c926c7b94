// Package disk implements the datastore contract on top of bbolt, a
// single-file B+tree store.
//
// All rows live in one bucket under byte prefixes chosen so that the
// natural key order is also the order results are produced in: vertices by
// id, edges by (outbound, type, inbound), reverse edges by
// (inbound, type, outbound). Property values are indexed by name and value
// so equality starts never scan unrelated rows.
package disk

import (
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	bolt "go.etcd.io/bbolt"
)

// DefaultPageSize is the number of rows read per read transaction while
// scanning.
const DefaultPageSize = 256

var bucketName = []byte("graph")

// Options configures a disk datastore.
type Options struct {
	// Path of the database file. It is created if missing.
	Path string

	// PageSize bounds how many rows a scan reads per transaction.
	PageSize int

	// Timeout is how long Open waits for the file lock. Zero waits forever.
	Timeout time.Duration

	// NoSync skips fsync on commit. Only safe for throwaway data.
	NoSync bool

	// ReadOnly opens the file with a shared lock; every write fails.
	ReadOnly bool

	// Clock returns edge timestamps. Defaults to time.Now.
	Clock func() time.Time
}

// Datastore is the persistent backend.
type Datastore struct {
	db       *bolt.DB
	opts     Options
	pageSize int
	clock    func() time.Time

	// writeMu serializes writers, so a query-driven delete evaluates and
	// applies without another write in between.
	writeMu   sync.Mutex
	closeOnce sync.Once
}

var _ datastore.Datastore = (*Datastore)(nil)
var _ datastore.Reader = (*Datastore)(nil)

// Open opens or creates the database at opts.Path.
func Open(opts Options) (*Datastore, error) {
	db, err := bolt.Open(opts.Path, 0o600, &bolt.Options{
		Timeout:  opts.Timeout,
		NoSync:   opts.NoSync,
		ReadOnly: opts.ReadOnly,
	})
	if err != nil {
		return nil, graph.NewStorageError("open", err)
	}

	if !opts.ReadOnly {
		err = db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketName)
			return err
		})
		if err != nil {
			db.Close()
			return nil, graph.NewStorageError("init", err)
		}
	}

	d := &Datastore{
		db:       db,
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
	slog.Info("Disk datastore opened", "path", opts.Path, "read_only", opts.ReadOnly)
	return d, nil
}

// Sync forces the file to disk. It matters only with NoSync.
func (d *Datastore) Sync() error {
	if err := d.db.Sync(); err != nil {
		return graph.NewStorageError("sync", err)
	}
	return nil
}

// Close releases the file lock.
func (d *Datastore) Close() error {
	var err error
	d.closeOnce.Do(func() {
		if cerr := d.db.Close(); cerr != nil {
			err = graph.NewStorageError("close", cerr)
			return
		}
		slog.Info("Disk datastore closed", "path", d.opts.Path)
	})
	return err
}

// update runs fn in a read-write transaction. Errors returned by fn are
// passed through untouched; failures of bbolt itself become StorageErrors.
func (d *Datastore) update(fn func(b *bolt.Bucket) error) error {
	var fnErr error
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			fnErr = graph.NewStorageError("write", bolt.ErrBucketNotFound)
			return fnErr
		}
		fnErr = fn(b)
		return fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return graph.NewStorageError("commit", err)
	}
	return nil
}

// mutate applies items in one transaction. Each item is planned against
// the transaction's current view and its row operations applied before the
// next item is planned, so later items see the effects of earlier ones.
func (d *Datastore) mutate(items ...datastore.Mutation) error {
	if err := datastore.ValidateAll(items); err != nil {
		return err
	}
	now := d.clock().UTC()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	return d.update(func(b *bolt.Bucket) error {
		for i, m := range items {
			p := planner{b: b, now: now}
			if err := p.plan(m); err != nil {
				if len(items) > 1 {
					return fmt.Errorf("bulk item %d: %w", i, err)
				}
				return err
			}
			if err := p.apply(); err != nil {
				return err
			}
		}
		return nil
	})
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

// VertexCount counts vertex rows inside a single read transaction.
func (d *Datastore) VertexCount() (uint64, error) {
	return d.count([]byte{prefixVertex})
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
	return d.count(adjacencyPrefix(id, dir, t))
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

// deleteMatching evaluates q and deletes what it selects in one
// transaction. The writer lock is held throughout, so the committed state
// the query reads cannot change before the delete lands. Evaluation uses
// separate read transactions; bbolt does not allow a read transaction to be
// opened from inside a write transaction on the same goroutine.
func (d *Datastore) deleteMatching(q query.Query, out query.Output) error {
	if err := q.Expect(out); err != nil {
		return err
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	var items []datastore.Mutation
	if out == query.VertexOutput {
		vertices, err := datastore.Vertices(d, q)
		if err != nil {
			return err
		}
		seen := make(map[uuid.UUID]bool)
		for v, err := range vertices {
			if err != nil {
				return err
			}
			if !seen[v.ID] {
				seen[v.ID] = true
				items = append(items, datastore.DeleteVertex{ID: v.ID})
			}
		}
	} else {
		edges, err := datastore.Edges(d, q)
		if err != nil {
			return err
		}
		seen := make(map[graph.EdgeKey]bool)
		for e, err := range edges {
			if err != nil {
				return err
			}
			if !seen[e.Key] {
				seen[e.Key] = true
				items = append(items, datastore.DeleteEdge{Key: e.Key})
			}
		}
	}
	if len(items) == 0 {
		return nil
	}

	return d.update(func(b *bolt.Bucket) error {
		for _, m := range items {
			p := planner{b: b}
			if err := p.plan(m); err != nil {
				return err
			}
			if err := p.apply(); err != nil {
				return err
			}
		}
		return nil
	})
}
