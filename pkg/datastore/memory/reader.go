package memory

import (
	"iter"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/tidwall/btree"
)

// scan walks one tree from pivot in ascending order, holding the read lock
// for one page at a time. Between pages the lock is released; the next page
// resumes after the last item returned. Iteration ends at the first item
// for which within returns false.
func scan[T any](d *Datastore, tree func(*state) *btree.BTreeG[T], less func(a, b T) bool, pivot T, within func(T) bool) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		page := make([]T, 0, d.pageSize)
		resume := false
		for {
			page = page[:0]
			exhausted := true

			d.mu.RLock()
			if err := d.checkOpen("scan"); err != nil {
				d.mu.RUnlock()
				var zero T
				yield(zero, err)
				return
			}
			tree(d.state).Ascend(pivot, func(item T) bool {
				if resume && !less(pivot, item) {
					// The item returned last on the previous page.
					return true
				}
				if !within(item) {
					return false
				}
				if len(page) == cap(page) {
					exhausted = false
					return false
				}
				page = append(page, item)
				return true
			})
			d.mu.RUnlock()

			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
			if exhausted || len(page) == 0 {
				return
			}
			pivot = page[len(page)-1]
			resume = true
		}
	}
}

func (d *Datastore) ScanVertices(from uuid.UUID) iter.Seq2[graph.Vertex, error] {
	items := scan(d, func(s *state) *btree.BTreeG[vertexItem] { return s.vertices }, vertexLess,
		vertexItem{id: from}, func(vertexItem) bool { return true })
	return func(yield func(graph.Vertex, error) bool) {
		for item, err := range items {
			if err != nil {
				yield(graph.Vertex{}, err)
				return
			}
			if !yield(graph.Vertex{ID: item.id, Type: item.t}, nil) {
				return
			}
		}
	}
}

func (d *Datastore) Vertex(id uuid.UUID) (graph.Vertex, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen("get"); err != nil {
		return graph.Vertex{}, false, err
	}
	item, ok := d.state.vertices.Get(vertexItem{id: id})
	return graph.Vertex{ID: item.id, Type: item.t}, ok, nil
}

func (d *Datastore) ScanEdges(from graph.EdgeKey) iter.Seq2[graph.Edge, error] {
	return edgeItems(scan(d, func(s *state) *btree.BTreeG[edgeItem] { return s.edges }, edgeLess,
		edgeItem{key: from}, func(edgeItem) bool { return true }), false)
}

func (d *Datastore) Edge(key graph.EdgeKey) (graph.Edge, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen("get"); err != nil {
		return graph.Edge{}, false, err
	}
	item, ok := d.state.edges.Get(edgeItem{key: key})
	return graph.Edge{Key: item.key, Timestamp: item.ts}, ok, nil
}

func (d *Datastore) Adjacent(id uuid.UUID, dir graph.Direction, t *graph.Identifier) iter.Seq2[graph.Edge, error] {
	pivot := graph.EdgeKey{OutboundID: id}
	if t != nil {
		pivot.Type = *t
	}
	within := func(item edgeItem) bool {
		return item.key.OutboundID == id && (t == nil || item.key.Type == *t)
	}

	tree := func(s *state) *btree.BTreeG[edgeItem] { return s.edges }
	if dir == graph.Inbound {
		tree = func(s *state) *btree.BTreeG[edgeItem] { return s.reversed }
	}
	return edgeItems(scan(d, tree, edgeLess, edgeItem{key: pivot}, within), dir == graph.Inbound)
}

func edgeItems(items iter.Seq2[edgeItem, error], reversed bool) iter.Seq2[graph.Edge, error] {
	return func(yield func(graph.Edge, error) bool) {
		for item, err := range items {
			if err != nil {
				yield(graph.Edge{}, err)
				return
			}
			key := item.key
			if reversed {
				key = key.Reversed()
			}
			if !yield(graph.Edge{Key: key, Timestamp: item.ts}, nil) {
				return
			}
		}
	}
}

func (d *Datastore) VertexProperty(id uuid.UUID, name graph.Identifier) (graph.Value, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen("get"); err != nil {
		return nil, false, err
	}
	item, ok := d.state.vertexProps.Get(vertexPropItem{id: id, name: name.String()})
	return item.value, ok, nil
}

func (d *Datastore) EdgeProperty(key graph.EdgeKey, name graph.Identifier) (graph.Value, bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if err := d.checkOpen("get"); err != nil {
		return nil, false, err
	}
	item, ok := d.state.edgeProps.Get(edgePropItem{key: key, name: name.String()})
	return item.value, ok, nil
}

func (d *Datastore) VertexIndex(name graph.Identifier, value graph.Value) iter.Seq2[uuid.UUID, error] {
	n := name.String()
	items := scan(d, func(s *state) *btree.BTreeG[vertexIndexItem] { return s.vertexIndex }, vertexIndexLess,
		vertexIndexItem{name: n, value: value}, func(item vertexIndexItem) bool {
			return item.name == n && (value == nil || item.value.Equal(value))
		})
	return func(yield func(uuid.UUID, error) bool) {
		for item, err := range items {
			if err != nil {
				yield(uuid.Nil, err)
				return
			}
			if !yield(item.id, nil) {
				return
			}
		}
	}
}

func (d *Datastore) EdgeIndex(name graph.Identifier, value graph.Value) iter.Seq2[graph.EdgeKey, error] {
	n := name.String()
	items := scan(d, func(s *state) *btree.BTreeG[edgeIndexItem] { return s.edgeIndex }, edgeIndexLess,
		edgeIndexItem{name: n, value: value}, func(item edgeIndexItem) bool {
			return item.name == n && (value == nil || item.value.Equal(value))
		})
	return func(yield func(graph.EdgeKey, error) bool) {
		for item, err := range items {
			if err != nil {
				yield(graph.EdgeKey{}, err)
				return
			}
			if !yield(item.key, nil) {
				return
			}
		}
	}
}
