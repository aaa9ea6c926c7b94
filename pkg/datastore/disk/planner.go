package disk

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	bolt "go.etcd.io/bbolt"
)

type rowOp struct {
	del   bool
	key   []byte
	value []byte
}

// planner turns one mutation into the row operations that implement it.
// Planning only reads the bucket; nothing changes until apply. Keys and
// values read from bbolt are copied, since they are only valid until the
// bucket is modified.
type planner struct {
	b   *bolt.Bucket
	now time.Time
	ops []rowOp
}

func (p *planner) put(key, value []byte) {
	p.ops = append(p.ops, rowOp{key: key, value: value})
}

func (p *planner) delete(key []byte) {
	p.ops = append(p.ops, rowOp{del: true, key: key})
}

func (p *planner) apply() error {
	for _, op := range p.ops {
		var err error
		if op.del {
			err = p.b.Delete(op.key)
		} else {
			err = p.b.Put(op.key, op.value)
		}
		if err != nil {
			return graph.NewStorageError("write", err)
		}
	}
	p.ops = p.ops[:0]
	return nil
}

func (p *planner) plan(m datastore.Mutation) error {
	switch m := m.(type) {
	case datastore.CreateVertex:
		return p.createVertex(m.Vertex)
	case datastore.CreateEdge:
		return p.createEdge(m.Key)
	case datastore.SetVertexProperty:
		return p.setVertexProperty(m.ID, m.Name.String(), m.Value)
	case datastore.SetEdgeProperty:
		return p.setEdgeProperty(m.Key, m.Name.String(), m.Value)
	case datastore.DeleteVertex:
		return p.deleteVertex(m.ID)
	case datastore.DeleteEdge:
		if !p.deleteEdge(m.Key) {
			return fmt.Errorf("edge %s: %w", m.Key, graph.ErrNotFound)
		}
		return nil
	case datastore.DeleteVertexProperty:
		if !p.deleteVertexProperty(m.ID, m.Name.String()) {
			return fmt.Errorf("property %s of vertex %s: %w", m.Name, m.ID, graph.ErrNotFound)
		}
		return nil
	case datastore.DeleteEdgeProperty:
		if !p.deleteEdgeProperty(m.Key, m.Name.String()) {
			return fmt.Errorf("property %s of edge %s: %w", m.Name, m.Key, graph.ErrNotFound)
		}
		return nil
	default:
		return fmt.Errorf("unsupported mutation %T", m)
	}
}

func (p *planner) hasVertex(id uuid.UUID) bool {
	return p.b.Get(vertexKey(id)) != nil
}

func (p *planner) hasEdge(key graph.EdgeKey) bool {
	return p.b.Get(edgeKey(key)) != nil
}

func (p *planner) createVertex(v graph.Vertex) error {
	if p.hasVertex(v.ID) {
		return fmt.Errorf("vertex %s: %w", v.ID, graph.ErrConflict)
	}
	p.put(vertexKey(v.ID), []byte(v.Type.String()))
	return nil
}

// createEdge writes both directions. An existing edge only gets a new
// timestamp.
func (p *planner) createEdge(key graph.EdgeKey) error {
	if !p.hasVertex(key.OutboundID) || !p.hasVertex(key.InboundID) {
		return fmt.Errorf("edge %s: endpoint missing: %w", key, graph.ErrConflict)
	}
	ts := encodeTimestamp(p.now)
	p.put(edgeKey(key), ts)
	p.put(reverseEdgeKey(key), ts)
	return nil
}

func (p *planner) setVertexProperty(id uuid.UUID, name string, value graph.Value) error {
	if !p.hasVertex(id) {
		return fmt.Errorf("vertex %s: %w", id, graph.ErrNotFound)
	}
	key := vertexPropertyKey(id, name)
	if prev := p.b.Get(key); prev != nil {
		p.delete(vertexIndexKey(name, prev, id))
	}
	p.put(key, value)
	p.put(vertexIndexKey(name, value, id), []byte{})
	return nil
}

func (p *planner) setEdgeProperty(edge graph.EdgeKey, name string, value graph.Value) error {
	if !p.hasEdge(edge) {
		return fmt.Errorf("edge %s: %w", edge, graph.ErrNotFound)
	}
	key := edgePropertyKey(edge, name)
	if prev := p.b.Get(key); prev != nil {
		p.delete(edgeIndexKey(name, prev, edge))
	}
	p.put(key, value)
	p.put(edgeIndexKey(name, value, edge), []byte{})
	return nil
}

func (p *planner) deleteVertexProperty(id uuid.UUID, name string) bool {
	key := vertexPropertyKey(id, name)
	prev := p.b.Get(key)
	if prev == nil {
		return false
	}
	p.delete(key)
	p.delete(vertexIndexKey(name, prev, id))
	return true
}

func (p *planner) deleteEdgeProperty(edge graph.EdgeKey, name string) bool {
	key := edgePropertyKey(edge, name)
	prev := p.b.Get(key)
	if prev == nil {
		return false
	}
	p.delete(key)
	p.delete(edgeIndexKey(name, prev, edge))
	return true
}

// deleteEdge removes an edge, its reverse row and its properties. It
// reports whether the edge existed.
func (p *planner) deleteEdge(key graph.EdgeKey) bool {
	if !p.hasEdge(key) {
		return false
	}
	p.delete(edgeKey(key))
	p.delete(reverseEdgeKey(key))

	prefix := edgePropertyPrefix(key)
	c := p.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		name := string(k[len(prefix):])
		p.delete(bytes.Clone(k))
		p.delete(edgeIndexKey(name, v, key))
	}
	return true
}

// deleteVertex removes the vertex with every edge touching it and all the
// properties of both.
func (p *planner) deleteVertex(id uuid.UUID) error {
	if !p.hasVertex(id) {
		return fmt.Errorf("vertex %s: %w", id, graph.ErrNotFound)
	}

	var edges []graph.EdgeKey
	for _, dir := range []graph.Direction{graph.Outbound, graph.Inbound} {
		prefix := adjacencyPrefix(id, dir, nil)
		c := p.b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			key, ok := decodeEdgeKey(k[1:])
			if !ok {
				return corrupt("edge", k)
			}
			if dir == graph.Inbound {
				// Self loops were already found outbound.
				if key.InboundID == id {
					continue
				}
				key = key.Reversed()
			}
			edges = append(edges, key)
		}
	}
	for _, key := range edges {
		p.deleteEdge(key)
	}

	prefix := vertexPropertyPrefix(id)
	c := p.b.Cursor()
	for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
		name := string(k[len(prefix):])
		p.delete(bytes.Clone(k))
		p.delete(vertexIndexKey(name, v, id))
	}

	p.delete(vertexKey(id))
	return nil
}
