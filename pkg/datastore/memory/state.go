package memory

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/tidwall/btree"
)

type vertexItem struct {
	id uuid.UUID
	t  graph.Identifier
}

// edgeItem is used by both edge trees. In the reversed tree key holds the
// reversed edge key, so the tree is ordered by (inbound, type, outbound).
type edgeItem struct {
	key graph.EdgeKey
	ts  time.Time
}

type vertexPropItem struct {
	id    uuid.UUID
	name  string
	value graph.Value
}

type edgePropItem struct {
	key   graph.EdgeKey
	name  string
	value graph.Value
}

type vertexIndexItem struct {
	name  string
	value graph.Value
	id    uuid.UUID
}

type edgeIndexItem struct {
	name  string
	value graph.Value
	key   graph.EdgeKey
}

func vertexLess(a, b vertexItem) bool {
	return graph.CompareIDs(a.id, b.id) < 0
}

func edgeLess(a, b edgeItem) bool {
	return a.key.Compare(b.key) < 0
}

func vertexPropLess(a, b vertexPropItem) bool {
	if c := graph.CompareIDs(a.id, b.id); c != 0 {
		return c < 0
	}
	return a.name < b.name
}

func edgePropLess(a, b edgePropItem) bool {
	if c := a.key.Compare(b.key); c != 0 {
		return c < 0
	}
	return a.name < b.name
}

func vertexIndexLess(a, b vertexIndexItem) bool {
	if c := strings.Compare(a.name, b.name); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.value, b.value); c != 0 {
		return c < 0
	}
	return graph.CompareIDs(a.id, b.id) < 0
}

func edgeIndexLess(a, b edgeIndexItem) bool {
	if c := strings.Compare(a.name, b.name); c != 0 {
		return c < 0
	}
	if c := bytes.Compare(a.value, b.value); c != 0 {
		return c < 0
	}
	return a.key.Compare(b.key) < 0
}

// state holds every container of the store. A state that has been published
// to readers is never modified: writers mutate a copy-on-write clone.
type state struct {
	vertices    *btree.BTreeG[vertexItem]
	edges       *btree.BTreeG[edgeItem]
	reversed    *btree.BTreeG[edgeItem]
	vertexProps *btree.BTreeG[vertexPropItem]
	edgeProps   *btree.BTreeG[edgePropItem]
	vertexIndex *btree.BTreeG[vertexIndexItem]
	edgeIndex   *btree.BTreeG[edgeIndexItem]
}

// The store serializes access itself, so the trees run without their own locks.
var treeOptions = btree.Options{NoLocks: true}

func newState() *state {
	return &state{
		vertices:    btree.NewBTreeGOptions(vertexLess, treeOptions),
		edges:       btree.NewBTreeGOptions(edgeLess, treeOptions),
		reversed:    btree.NewBTreeGOptions(edgeLess, treeOptions),
		vertexProps: btree.NewBTreeGOptions(vertexPropLess, treeOptions),
		edgeProps:   btree.NewBTreeGOptions(edgePropLess, treeOptions),
		vertexIndex: btree.NewBTreeGOptions(vertexIndexLess, treeOptions),
		edgeIndex:   btree.NewBTreeGOptions(edgeIndexLess, treeOptions),
	}
}

// clone returns a copy-on-write copy. Copying is O(1); nodes are duplicated
// lazily as the clone is modified.
func (s *state) clone() *state {
	return &state{
		vertices:    s.vertices.Copy(),
		edges:       s.edges.Copy(),
		reversed:    s.reversed.Copy(),
		vertexProps: s.vertexProps.Copy(),
		edgeProps:   s.edgeProps.Copy(),
		vertexIndex: s.vertexIndex.Copy(),
		edgeIndex:   s.edgeIndex.Copy(),
	}
}

// apply executes one mutation against s.
func (s *state) apply(m datastore.Mutation, now time.Time) error {
	switch m := m.(type) {
	case datastore.CreateVertex:
		return s.createVertex(m.Vertex)
	case datastore.CreateEdge:
		return s.createEdge(m.Key, now)
	case datastore.SetVertexProperty:
		return s.setVertexProperty(m.ID, m.Name.String(), m.Value)
	case datastore.SetEdgeProperty:
		return s.setEdgeProperty(m.Key, m.Name.String(), m.Value)
	case datastore.DeleteVertex:
		return s.deleteVertex(m.ID)
	case datastore.DeleteEdge:
		if !s.deleteEdge(m.Key) {
			return fmt.Errorf("edge %s: %w", m.Key, graph.ErrNotFound)
		}
		return nil
	case datastore.DeleteVertexProperty:
		if !s.deleteVertexProperty(m.ID, m.Name.String()) {
			return fmt.Errorf("property %s of vertex %s: %w", m.Name, m.ID, graph.ErrNotFound)
		}
		return nil
	case datastore.DeleteEdgeProperty:
		if !s.deleteEdgeProperty(m.Key, m.Name.String()) {
			return fmt.Errorf("property %s of edge %s: %w", m.Name, m.Key, graph.ErrNotFound)
		}
		return nil
	default:
		return fmt.Errorf("unsupported mutation %T", m)
	}
}

func (s *state) hasVertex(id uuid.UUID) bool {
	_, ok := s.vertices.Get(vertexItem{id: id})
	return ok
}

func (s *state) hasEdge(key graph.EdgeKey) bool {
	_, ok := s.edges.Get(edgeItem{key: key})
	return ok
}

func (s *state) createVertex(v graph.Vertex) error {
	if s.hasVertex(v.ID) {
		return fmt.Errorf("vertex %s: %w", v.ID, graph.ErrConflict)
	}
	s.vertices.Set(vertexItem{id: v.ID, t: v.Type})
	return nil
}

func (s *state) createEdge(key graph.EdgeKey, now time.Time) error {
	if !s.hasVertex(key.OutboundID) || !s.hasVertex(key.InboundID) {
		return fmt.Errorf("edge %s: endpoint missing: %w", key, graph.ErrConflict)
	}
	s.edges.Set(edgeItem{key: key, ts: now})
	s.reversed.Set(edgeItem{key: key.Reversed(), ts: now})
	return nil
}

func (s *state) setVertexProperty(id uuid.UUID, name string, value graph.Value) error {
	if !s.hasVertex(id) {
		return fmt.Errorf("vertex %s: %w", id, graph.ErrNotFound)
	}
	if prev, ok := s.vertexProps.Set(vertexPropItem{id: id, name: name, value: value}); ok {
		s.vertexIndex.Delete(vertexIndexItem{name: name, value: prev.value, id: id})
	}
	s.vertexIndex.Set(vertexIndexItem{name: name, value: value, id: id})
	return nil
}

func (s *state) setEdgeProperty(key graph.EdgeKey, name string, value graph.Value) error {
	if !s.hasEdge(key) {
		return fmt.Errorf("edge %s: %w", key, graph.ErrNotFound)
	}
	if prev, ok := s.edgeProps.Set(edgePropItem{key: key, name: name, value: value}); ok {
		s.edgeIndex.Delete(edgeIndexItem{name: name, value: prev.value, key: key})
	}
	s.edgeIndex.Set(edgeIndexItem{name: name, value: value, key: key})
	return nil
}

func (s *state) deleteVertexProperty(id uuid.UUID, name string) bool {
	prev, ok := s.vertexProps.Delete(vertexPropItem{id: id, name: name})
	if ok {
		s.vertexIndex.Delete(vertexIndexItem{name: name, value: prev.value, id: id})
	}
	return ok
}

func (s *state) deleteEdgeProperty(key graph.EdgeKey, name string) bool {
	prev, ok := s.edgeProps.Delete(edgePropItem{key: key, name: name})
	if ok {
		s.edgeIndex.Delete(edgeIndexItem{name: name, value: prev.value, key: key})
	}
	return ok
}

// deleteVertex removes the vertex, every edge touching it and every property
// owned by any of them. The edges to remove are gathered into a work queue
// first; the walk is bounded by the vertex degree.
func (s *state) deleteVertex(id uuid.UUID) error {
	if !s.hasVertex(id) {
		return fmt.Errorf("vertex %s: %w", id, graph.ErrNotFound)
	}

	var queue []graph.EdgeKey
	s.edges.Ascend(edgeItem{key: graph.EdgeKey{OutboundID: id}}, func(item edgeItem) bool {
		if item.key.OutboundID != id {
			return false
		}
		queue = append(queue, item.key)
		return true
	})
	s.reversed.Ascend(edgeItem{key: graph.EdgeKey{OutboundID: id}}, func(item edgeItem) bool {
		if item.key.OutboundID != id {
			return false
		}
		queue = append(queue, item.key.Reversed())
		return true
	})
	for _, key := range queue {
		// Self loops are queued from both trees; the second delete is a no-op.
		s.deleteEdge(key)
	}

	var names []string
	s.vertexProps.Ascend(vertexPropItem{id: id}, func(item vertexPropItem) bool {
		if item.id != id {
			return false
		}
		names = append(names, item.name)
		return true
	})
	for _, name := range names {
		s.deleteVertexProperty(id, name)
	}

	s.vertices.Delete(vertexItem{id: id})
	return nil
}

// deleteEdge removes an edge, its reverse entry and its properties. It
// reports whether the edge existed.
func (s *state) deleteEdge(key graph.EdgeKey) bool {
	if _, ok := s.edges.Delete(edgeItem{key: key}); !ok {
		return false
	}
	s.reversed.Delete(edgeItem{key: key.Reversed()})

	var names []string
	s.edgeProps.Ascend(edgePropItem{key: key}, func(item edgePropItem) bool {
		if item.key != key {
			return false
		}
		names = append(names, item.name)
		return true
	})
	for _, name := range names {
		s.deleteEdgeProperty(key, name)
	}
	return true
}
