package engine

import (
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// observe records one call. It is deferred with a pointer to the named
// error result so it sees the final value.
func (e *Engine) observe(op string, start time.Time, err *error) {
	metrics.OperationsTotal.WithLabelValues(e.backend, op).Inc()
	metrics.OperationDuration.WithLabelValues(e.backend, op).Observe(time.Since(start).Seconds())
	if *err != nil {
		metrics.OperationErrorsTotal.WithLabelValues(e.backend, op).Inc()
	}
}

// --- Vertices ---

// CreateVertex stores v. It fails with graph.ErrConflict if the id is taken.
func (e *Engine) CreateVertex(v graph.Vertex) (err error) {
	defer e.observe("create_vertex", time.Now(), &err)
	return e.ds.CreateVertex(v)
}

// CreateVertexFromType stores a vertex of type t under a fresh id.
func (e *Engine) CreateVertexFromType(t graph.Identifier) (id uuid.UUID, err error) {
	defer e.observe("create_vertex_from_type", time.Now(), &err)
	return e.ds.CreateVertexFromType(t)
}

// GetVertices runs a vertex query.
func (e *Engine) GetVertices(q query.Query) (seq iter.Seq2[graph.Vertex, error], err error) {
	defer e.observe("get_vertices", time.Now(), &err)
	return e.ds.GetVertices(q)
}

// DeleteVertices deletes every vertex q selects, with their edges and
// properties, atomically.
func (e *Engine) DeleteVertices(q query.Query) (err error) {
	defer e.observe("delete_vertices", time.Now(), &err)
	return e.ds.DeleteVertices(q)
}

func (e *Engine) VertexCount() (n uint64, err error) {
	defer e.observe("vertex_count", time.Now(), &err)
	return e.ds.VertexCount()
}

// --- Edges ---

func (e *Engine) CreateEdge(key graph.EdgeKey) (err error) {
	defer e.observe("create_edge", time.Now(), &err)
	return e.ds.CreateEdge(key)
}

func (e *Engine) GetEdges(q query.Query) (seq iter.Seq2[graph.Edge, error], err error) {
	defer e.observe("get_edges", time.Now(), &err)
	return e.ds.GetEdges(q)
}

func (e *Engine) DeleteEdges(q query.Query) (err error) {
	defer e.observe("delete_edges", time.Now(), &err)
	return e.ds.DeleteEdges(q)
}

func (e *Engine) EdgeCount(id uuid.UUID, t *graph.Identifier, dir graph.Direction) (n uint64, err error) {
	defer e.observe("edge_count", time.Now(), &err)
	return e.ds.EdgeCount(id, t, dir)
}

// --- Properties ---

func (e *Engine) GetVertexProperty(id uuid.UUID, name graph.Identifier) (v graph.Value, err error) {
	defer e.observe("get_vertex_property", time.Now(), &err)
	return e.ds.GetVertexProperty(id, name)
}

func (e *Engine) SetVertexProperty(id uuid.UUID, name graph.Identifier, value graph.Value) (err error) {
	defer e.observe("set_vertex_property", time.Now(), &err)
	return e.ds.SetVertexProperty(id, name, value)
}

func (e *Engine) DeleteVertexProperty(id uuid.UUID, name graph.Identifier) (err error) {
	defer e.observe("delete_vertex_property", time.Now(), &err)
	return e.ds.DeleteVertexProperty(id, name)
}

func (e *Engine) GetVertexProperties(q query.Query, name graph.Identifier) (seq iter.Seq2[graph.VertexProperty, error], err error) {
	defer e.observe("get_vertex_properties", time.Now(), &err)
	return e.ds.GetVertexProperties(q, name)
}

func (e *Engine) GetEdgeProperty(key graph.EdgeKey, name graph.Identifier) (v graph.Value, err error) {
	defer e.observe("get_edge_property", time.Now(), &err)
	return e.ds.GetEdgeProperty(key, name)
}

func (e *Engine) SetEdgeProperty(key graph.EdgeKey, name graph.Identifier, value graph.Value) (err error) {
	defer e.observe("set_edge_property", time.Now(), &err)
	return e.ds.SetEdgeProperty(key, name, value)
}

func (e *Engine) DeleteEdgeProperty(key graph.EdgeKey, name graph.Identifier) (err error) {
	defer e.observe("delete_edge_property", time.Now(), &err)
	return e.ds.DeleteEdgeProperty(key, name)
}

func (e *Engine) GetEdgeProperties(q query.Query, name graph.Identifier) (seq iter.Seq2[graph.EdgeProperty, error], err error) {
	defer e.observe("get_edge_properties", time.Now(), &err)
	return e.ds.GetEdgeProperties(q, name)
}

// --- Bulk ---

// Bulk applies items in order as one atomic write.
func (e *Engine) Bulk(items []datastore.Mutation) (err error) {
	defer e.observe("bulk", time.Now(), &err)
	return e.ds.Bulk(items)
}
