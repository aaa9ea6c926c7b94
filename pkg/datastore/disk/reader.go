package disk

import (
	"bytes"
	"iter"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	bolt "go.etcd.io/bbolt"
)

type row struct {
	key   []byte
	value []byte
}

// scan yields copies of the rows under prefix in key order, starting at the
// first key >= from (or at the prefix when from is nil). Each page is read
// in its own read transaction which is closed before the page is yielded,
// so consumers may write while iterating.
func (d *Datastore) scan(prefix, from []byte) iter.Seq2[row, error] {
	return func(yield func(row, error) bool) {
		seek := from
		if seek == nil {
			seek = prefix
		}
		page := make([]row, 0, d.pageSize)
		for {
			page = page[:0]
			exhausted := true

			err := d.db.View(func(tx *bolt.Tx) error {
				b := tx.Bucket(bucketName)
				if b == nil {
					return nil
				}
				c := b.Cursor()
				for k, v := c.Seek(seek); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
					if len(page) == cap(page) {
						exhausted = false
						break
					}
					page = append(page, row{key: bytes.Clone(k), value: bytes.Clone(v)})
				}
				return nil
			})
			if err != nil {
				yield(row{}, graph.NewStorageError("scan", err))
				return
			}

			for _, r := range page {
				if !yield(r, nil) {
					return
				}
			}
			if exhausted || len(page) == 0 {
				return
			}
			// The smallest key greater than the last one returned.
			seek = append(bytes.Clone(page[len(page)-1].key), 0x00)
		}
	}
}

// get reads a single row, copying the value out of the transaction.
func (d *Datastore) get(key []byte) ([]byte, bool, error) {
	var (
		value []byte
		found bool
	)
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		if v := b.Get(key); v != nil {
			value, found = bytes.Clone(v), true
		}
		return nil
	})
	if err != nil {
		return nil, false, graph.NewStorageError("get", err)
	}
	return value, found, nil
}

// count counts the rows under prefix in one read transaction.
func (d *Datastore) count(prefix []byte) (uint64, error) {
	var n uint64
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, graph.NewStorageError("count", err)
	}
	return n, nil
}

func decodeVertex(r row) (graph.Vertex, error) {
	if len(r.key) != 1+idLen {
		return graph.Vertex{}, corrupt("vertex", r.key)
	}
	t, err := graph.NewIdentifier(string(r.value))
	if err != nil {
		return graph.Vertex{}, corrupt("vertex", r.key)
	}
	var v graph.Vertex
	copy(v.ID[:], r.key[1:])
	v.Type = t
	return v, nil
}

// decodeEdge decodes an edge or reverse edge row into the edge it
// describes.
func decodeEdge(r row) (graph.Edge, error) {
	key, ok := decodeEdgeKey(r.key[1:])
	if !ok {
		return graph.Edge{}, corrupt("edge", r.key)
	}
	ts, ok := decodeTimestamp(r.value)
	if !ok {
		return graph.Edge{}, corrupt("edge", r.key)
	}
	if r.key[0] == prefixReverseEdge {
		key = key.Reversed()
	}
	return graph.Edge{Key: key, Timestamp: ts}, nil
}

func (d *Datastore) ScanVertices(from uuid.UUID) iter.Seq2[graph.Vertex, error] {
	rows := d.scan([]byte{prefixVertex}, vertexKey(from))
	return func(yield func(graph.Vertex, error) bool) {
		for r, err := range rows {
			if err != nil {
				yield(graph.Vertex{}, err)
				return
			}
			v, err := decodeVertex(r)
			if !yield(v, err) || err != nil {
				return
			}
		}
	}
}

func (d *Datastore) Vertex(id uuid.UUID) (graph.Vertex, bool, error) {
	key := vertexKey(id)
	value, ok, err := d.get(key)
	if err != nil || !ok {
		return graph.Vertex{}, false, err
	}
	v, err := decodeVertex(row{key: key, value: value})
	return v, err == nil, err
}

func (d *Datastore) edges(rows iter.Seq2[row, error]) iter.Seq2[graph.Edge, error] {
	return func(yield func(graph.Edge, error) bool) {
		for r, err := range rows {
			if err != nil {
				yield(graph.Edge{}, err)
				return
			}
			e, err := decodeEdge(r)
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

func (d *Datastore) ScanEdges(from graph.EdgeKey) iter.Seq2[graph.Edge, error] {
	return d.edges(d.scan([]byte{prefixEdge}, edgeKey(from)))
}

func (d *Datastore) Edge(key graph.EdgeKey) (graph.Edge, bool, error) {
	k := edgeKey(key)
	value, ok, err := d.get(k)
	if err != nil || !ok {
		return graph.Edge{}, false, err
	}
	e, err := decodeEdge(row{key: k, value: value})
	return e, err == nil, err
}

func (d *Datastore) Adjacent(id uuid.UUID, dir graph.Direction, t *graph.Identifier) iter.Seq2[graph.Edge, error] {
	return d.edges(d.scan(adjacencyPrefix(id, dir, t), nil))
}

func (d *Datastore) VertexProperty(id uuid.UUID, name graph.Identifier) (graph.Value, bool, error) {
	value, ok, err := d.get(vertexPropertyKey(id, name.String()))
	return graph.Value(value), ok, err
}

func (d *Datastore) EdgeProperty(key graph.EdgeKey, name graph.Identifier) (graph.Value, bool, error) {
	value, ok, err := d.get(edgePropertyKey(key, name.String()))
	return graph.Value(value), ok, err
}

// VertexIndex walks the value index. Owners of one value come out in
// ascending id order; without a value, rows are grouped by encoded value.
func (d *Datastore) VertexIndex(name graph.Identifier, value graph.Value) iter.Seq2[uuid.UUID, error] {
	namePrefix := indexPrefix(prefixVertexIndex, name.String(), nil)
	rows := d.scan(indexPrefix(prefixVertexIndex, name.String(), value), nil)
	return func(yield func(uuid.UUID, error) bool) {
		for r, err := range rows {
			if err != nil {
				yield(uuid.Nil, err)
				return
			}
			owner, ok := indexOwner(r.key, len(namePrefix))
			if !ok || len(owner) != idLen {
				yield(uuid.Nil, corrupt("vertex index", r.key))
				return
			}
			if !yield(uuid.UUID(owner), nil) {
				return
			}
		}
	}
}

func (d *Datastore) EdgeIndex(name graph.Identifier, value graph.Value) iter.Seq2[graph.EdgeKey, error] {
	namePrefix := indexPrefix(prefixEdgeIndex, name.String(), nil)
	rows := d.scan(indexPrefix(prefixEdgeIndex, name.String(), value), nil)
	return func(yield func(graph.EdgeKey, error) bool) {
		for r, err := range rows {
			if err != nil {
				yield(graph.EdgeKey{}, err)
				return
			}
			owner, ok := indexOwner(r.key, len(namePrefix))
			if !ok {
				yield(graph.EdgeKey{}, corrupt("edge index", r.key))
				return
			}
			key, ok := decodeEdgeKey(owner)
			if !ok {
				yield(graph.EdgeKey{}, corrupt("edge index", r.key))
				return
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}
