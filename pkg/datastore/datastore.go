// Package datastore defines the storage contract every graph backend
// implements, the access paths the query executor relies on, and the
// executor itself.
//
// Two backends ship with the module: memory (ordered in-process containers)
// and disk (bbolt). Both are selected once at construction time, usually
// through package engine.
package datastore

import (
	"iter"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
)

// Datastore is the storage contract. Every call is one atomic unit: a
// concurrent reader never observes a partially applied mutation.
//
// Sequences returned by the Get methods are lazy and read the backend in
// bounded pages; a caller abandons a query by breaking out of the loop.
type Datastore interface {
	// CreateVertex stores v. It fails with graph.ErrConflict if the id is
	// already taken.
	CreateVertex(v graph.Vertex) error
	// CreateVertexFromType stores a vertex with a generated id.
	CreateVertexFromType(t graph.Identifier) (uuid.UUID, error)
	GetVertices(q query.Query) (iter.Seq2[graph.Vertex, error], error)
	// DeleteVertices deletes the matching vertices together with their
	// edges (both directions) and all properties owned by any of them.
	DeleteVertices(q query.Query) error
	VertexCount() (uint64, error)

	// CreateEdge stores the edge, or refreshes its timestamp if the key
	// already exists. It fails with graph.ErrConflict if either endpoint is
	// missing.
	CreateEdge(key graph.EdgeKey) error
	GetEdges(q query.Query) (iter.Seq2[graph.Edge, error], error)
	// DeleteEdges deletes the matching edges and their properties.
	DeleteEdges(q query.Query) error
	// EdgeCount counts the edges of vertex id in direction dir, optionally
	// restricted to one type.
	EdgeCount(id uuid.UUID, t *graph.Identifier, dir graph.Direction) (uint64, error)

	GetVertexProperty(id uuid.UUID, name graph.Identifier) (graph.Value, error)
	SetVertexProperty(id uuid.UUID, name graph.Identifier, value graph.Value) error
	DeleteVertexProperty(id uuid.UUID, name graph.Identifier) error
	GetVertexProperties(q query.Query, name graph.Identifier) (iter.Seq2[graph.VertexProperty, error], error)

	GetEdgeProperty(key graph.EdgeKey, name graph.Identifier) (graph.Value, error)
	SetEdgeProperty(key graph.EdgeKey, name graph.Identifier, value graph.Value) error
	DeleteEdgeProperty(key graph.EdgeKey, name graph.Identifier) error
	GetEdgeProperties(q query.Query, name graph.Identifier) (iter.Seq2[graph.EdgeProperty, error], error)

	// Bulk applies mutations in order. Either every item succeeds or the
	// store is left untouched.
	Bulk(items []Mutation) error

	Close() error
}

// Reader is the set of access paths a backend offers to the query executor.
// Scans are ascending and paginated by the backend, so iterating them holds
// only one page in memory. Lookups report existence with a bool; errors are
// storage failures.
type Reader interface {
	// ScanVertices yields vertices with id >= from.
	ScanVertices(from uuid.UUID) iter.Seq2[graph.Vertex, error]
	Vertex(id uuid.UUID) (graph.Vertex, bool, error)

	// ScanEdges yields edges with key >= from in EdgeKey.Compare order.
	ScanEdges(from graph.EdgeKey) iter.Seq2[graph.Edge, error]
	Edge(key graph.EdgeKey) (graph.Edge, bool, error)

	// Adjacent yields the edges of vertex id in direction dir. Outbound
	// edges are ordered by (type, inbound id), inbound edges by
	// (type, outbound id). A nil t means every type.
	Adjacent(id uuid.UUID, dir graph.Direction, t *graph.Identifier) iter.Seq2[graph.Edge, error]

	VertexProperty(id uuid.UUID, name graph.Identifier) (graph.Value, bool, error)
	EdgeProperty(key graph.EdgeKey, name graph.Identifier) (graph.Value, bool, error)

	// VertexIndex yields the ids of vertices owning property name. With a
	// non-nil value only owners of an equal value are yielded, in ascending
	// id order.
	VertexIndex(name graph.Identifier, value graph.Value) iter.Seq2[uuid.UUID, error]
	// EdgeIndex is VertexIndex for edge properties.
	EdgeIndex(name graph.Identifier, value graph.Value) iter.Seq2[graph.EdgeKey, error]
}

// Mutation is one item of a bulk write.
type Mutation interface {
	isMutation()
}

// CreateVertex creates a vertex; conflicts if the id exists.
type CreateVertex struct {
	Vertex graph.Vertex
}

// CreateEdge creates or refreshes an edge; conflicts if an endpoint is
// missing.
type CreateEdge struct {
	Key graph.EdgeKey
}

// SetVertexProperty sets a property on an existing vertex.
type SetVertexProperty struct {
	ID    uuid.UUID
	Name  graph.Identifier
	Value graph.Value
}

// SetEdgeProperty sets a property on an existing edge.
type SetEdgeProperty struct {
	Key   graph.EdgeKey
	Name  graph.Identifier
	Value graph.Value
}

// DeleteVertex deletes a vertex with its edges and properties.
type DeleteVertex struct {
	ID uuid.UUID
}

// DeleteEdge deletes an edge with its properties.
type DeleteEdge struct {
	Key graph.EdgeKey
}

// DeleteVertexProperty removes one vertex property.
type DeleteVertexProperty struct {
	ID   uuid.UUID
	Name graph.Identifier
}

// DeleteEdgeProperty removes one edge property.
type DeleteEdgeProperty struct {
	Key  graph.EdgeKey
	Name graph.Identifier
}

func (CreateVertex) isMutation()         {}
func (CreateEdge) isMutation()           {}
func (SetVertexProperty) isMutation()    {}
func (SetEdgeProperty) isMutation()      {}
func (DeleteVertex) isMutation()         {}
func (DeleteEdge) isMutation()           {}
func (DeleteVertexProperty) isMutation() {}
func (DeleteEdgeProperty) isMutation()   {}
