package datastore

import (
	"fmt"
	"iter"
	"slices"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// stream is the intermediate result of a pipeline stage. Exactly one of the
// two sequences is set, matching kind.
type stream struct {
	kind     query.Output
	vertices iter.Seq2[graph.Vertex, error]
	edges    iter.Seq2[graph.Edge, error]
}

// Vertices evaluates a vertex-producing query against r.
func Vertices(r Reader, q query.Query) (iter.Seq2[graph.Vertex, error], error) {
	if err := q.Expect(query.VertexOutput); err != nil {
		return nil, err
	}
	s, err := evaluate(r, q)
	if err != nil {
		return nil, err
	}
	return s.vertices, nil
}

// Edges evaluates an edge-producing query against r.
func Edges(r Reader, q query.Query) (iter.Seq2[graph.Edge, error], error) {
	if err := q.Expect(query.EdgeOutput); err != nil {
		return nil, err
	}
	s, err := evaluate(r, q)
	if err != nil {
		return nil, err
	}
	return s.edges, nil
}

// VertexProperties yields the value of property name for every vertex the
// query selects that owns it.
func VertexProperties(r Reader, q query.Query, name graph.Identifier) (iter.Seq2[graph.VertexProperty, error], error) {
	if err := name.Valid(); err != nil {
		return nil, err
	}
	vertices, err := Vertices(r, q)
	if err != nil {
		return nil, err
	}
	return lookup(vertices, func(v graph.Vertex) (graph.VertexProperty, bool, error) {
		val, ok, err := r.VertexProperty(v.ID, name)
		return graph.VertexProperty{ID: v.ID, Value: val}, ok, err
	}), nil
}

// EdgeProperties yields the value of property name for every edge the query
// selects that owns it.
func EdgeProperties(r Reader, q query.Query, name graph.Identifier) (iter.Seq2[graph.EdgeProperty, error], error) {
	if err := name.Valid(); err != nil {
		return nil, err
	}
	edges, err := Edges(r, q)
	if err != nil {
		return nil, err
	}
	return lookup(edges, func(e graph.Edge) (graph.EdgeProperty, bool, error) {
		val, ok, err := r.EdgeProperty(e.Key, name)
		return graph.EdgeProperty{Key: e.Key, Value: val}, ok, err
	}), nil
}

// evaluate folds the pipeline: start first, then every pipe in order. The
// query must already be validated.
func evaluate(r Reader, q query.Query) (stream, error) {
	s := start(r, q.Start)
	for i, p := range q.Pipes {
		var err error
		if s, err = pipe(r, s, p); err != nil {
			return stream{}, fmt.Errorf("pipe %d: %w", i, err)
		}
	}
	return s, nil
}

func start(r Reader, st query.Start) stream {
	switch st := st.(type) {
	case query.AllVertices:
		return vertexStream(r.ScanVertices(uuid.Nil))
	case query.SpecificVertices:
		ids := slices.Clone(st.IDs)
		slices.SortFunc(ids, graph.CompareIDs)
		ids = slices.Compact(ids)
		return vertexStream(lookup(fromSlice(ids), r.Vertex))
	case query.VertexRange:
		end := st.End
		return vertexStream(takeWhile(r.ScanVertices(st.Start), func(v graph.Vertex) bool {
			return graph.CompareIDs(v.ID, end) <= 0
		}))
	case query.VerticesWithProperty:
		return vertexStream(lookup(r.VertexIndex(st.Name, nil), r.Vertex))
	case query.VerticesWherePropertyEquals:
		return vertexStream(lookup(r.VertexIndex(st.Name, st.Value), r.Vertex))
	case query.AllEdges:
		return edgeStream(r.ScanEdges(graph.EdgeKey{}))
	case query.SpecificEdges:
		keys := slices.Clone(st.Keys)
		slices.SortFunc(keys, graph.EdgeKey.Compare)
		keys = slices.CompactFunc(keys, func(a, b graph.EdgeKey) bool { return a.Compare(b) == 0 })
		return edgeStream(lookup(fromSlice(keys), r.Edge))
	case query.EdgesWithProperty:
		return edgeStream(lookup(r.EdgeIndex(st.Name, nil), r.Edge))
	case query.EdgesWherePropertyEquals:
		return edgeStream(lookup(r.EdgeIndex(st.Name, st.Value), r.Edge))
	default:
		panic(fmt.Sprintf("datastore: unhandled query start %T", st))
	}
}

func pipe(r Reader, s stream, p query.Pipe) (stream, error) {
	switch p := p.(type) {
	case query.EdgesOf:
		if s.kind != query.VertexOutput {
			return s, mismatch(p, s.kind)
		}
		return edgeStream(flatMap(s.vertices, func(v graph.Vertex) iter.Seq2[graph.Edge, error] {
			adjacent := r.Adjacent(v.ID, p.Direction, p.Type)
			if p.High == nil && p.Low == nil {
				return adjacent
			}
			return filter(adjacent, func(e graph.Edge) (bool, error) {
				if p.Low != nil && e.Timestamp.Before(*p.Low) {
					return false, nil
				}
				if p.High != nil && e.Timestamp.After(*p.High) {
					return false, nil
				}
				return true, nil
			})
		})), nil

	case query.Endpoints:
		if s.kind != query.EdgeOutput {
			return s, mismatch(p, s.kind)
		}
		return vertexStream(lookup(s.edges, func(e graph.Edge) (graph.Vertex, bool, error) {
			return r.Vertex(e.Key.Endpoint(p.Direction))
		})), nil

	case query.HasProperty:
		return s.filterProperty(r, p.Name, func(graph.Value) bool { return true }), nil

	case query.PropertyEquals:
		return s.filterProperty(r, p.Name, p.Value.Equal), nil

	case query.Offset:
		if s.kind == query.VertexOutput {
			return vertexStream(skip(s.vertices, p.N)), nil
		}
		return edgeStream(skip(s.edges, p.N)), nil

	case query.Limit:
		if s.kind == query.VertexOutput {
			return vertexStream(take(s.vertices, p.N)), nil
		}
		return edgeStream(take(s.edges, p.N)), nil

	default:
		return s, &graph.QueryError{Reason: fmt.Sprintf("unknown pipe %T", p)}
	}
}

// filterProperty keeps the items whose property name exists and satisfies
// match. One property lookup is issued per upstream item.
func (s stream) filterProperty(r Reader, name graph.Identifier, match func(graph.Value) bool) stream {
	if s.kind == query.VertexOutput {
		return vertexStream(filter(s.vertices, func(v graph.Vertex) (bool, error) {
			val, ok, err := r.VertexProperty(v.ID, name)
			return ok && match(val), err
		}))
	}
	return edgeStream(filter(s.edges, func(e graph.Edge) (bool, error) {
		val, ok, err := r.EdgeProperty(e.Key, name)
		return ok && match(val), err
	}))
}

func vertexStream(seq iter.Seq2[graph.Vertex, error]) stream {
	return stream{kind: query.VertexOutput, vertices: seq}
}

func edgeStream(seq iter.Seq2[graph.Edge, error]) stream {
	return stream{kind: query.EdgeOutput, edges: seq}
}

func mismatch(p query.Pipe, got query.Output) error {
	return &graph.QueryError{Reason: fmt.Sprintf("%T cannot consume %s", p, got)}
}
