// Package query defines the composable graph query model.
//
// A Query is a linear pipeline: exactly one Start followed by zero or more
// Pipes. Starts and pipes are closed sets of variants; the executor in
// package datastore evaluates them with an exhaustive type switch.
//
//	q := query.Vertices(alice).
//		Outbound(&likes).
//		Endpoint(graph.Inbound).
//		WithProperty(name).
//		Limit(10)
package query

import (
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
)

// Output is the kind of item a query produces.
type Output uint8

const (
	VertexOutput Output = iota
	EdgeOutput
)

func (o Output) String() string {
	if o == EdgeOutput {
		return "edges"
	}
	return "vertices"
}

// Start is the first stage of a query.
type Start interface {
	Output() Output
	isStart()
}

// AllVertices selects every vertex in ascending id order.
type AllVertices struct{}

// SpecificVertices selects the listed vertices that exist, in ascending id
// order and without duplicates.
type SpecificVertices struct {
	IDs []uuid.UUID
}

// VertexRange selects the vertices with Start <= id <= End.
type VertexRange struct {
	Start uuid.UUID
	End   uuid.UUID
}

// VerticesWithProperty selects vertices owning a property called Name.
type VerticesWithProperty struct {
	Name graph.Identifier
}

// VerticesWherePropertyEquals selects vertices whose property Name equals
// Value, in ascending id order.
type VerticesWherePropertyEquals struct {
	Name  graph.Identifier
	Value graph.Value
}

// AllEdges selects every edge in ascending key order.
type AllEdges struct{}

// SpecificEdges selects the listed edges that exist, in ascending key order
// and without duplicates.
type SpecificEdges struct {
	Keys []graph.EdgeKey
}

// EdgesWithProperty selects edges owning a property called Name.
type EdgesWithProperty struct {
	Name graph.Identifier
}

// EdgesWherePropertyEquals selects edges whose property Name equals Value,
// in ascending key order.
type EdgesWherePropertyEquals struct {
	Name  graph.Identifier
	Value graph.Value
}

func (AllVertices) Output() Output                 { return VertexOutput }
func (SpecificVertices) Output() Output            { return VertexOutput }
func (VertexRange) Output() Output                 { return VertexOutput }
func (VerticesWithProperty) Output() Output        { return VertexOutput }
func (VerticesWherePropertyEquals) Output() Output { return VertexOutput }
func (AllEdges) Output() Output                    { return EdgeOutput }
func (SpecificEdges) Output() Output               { return EdgeOutput }
func (EdgesWithProperty) Output() Output           { return EdgeOutput }
func (EdgesWherePropertyEquals) Output() Output    { return EdgeOutput }

func (AllVertices) isStart()                 {}
func (SpecificVertices) isStart()            {}
func (VertexRange) isStart()                 {}
func (VerticesWithProperty) isStart()        {}
func (VerticesWherePropertyEquals) isStart() {}
func (AllEdges) isStart()                    {}
func (SpecificEdges) isStart()               {}
func (EdgesWithProperty) isStart()           {}
func (EdgesWherePropertyEquals) isStart()    {}

// Pipe transforms or narrows the stream produced by the previous stage.
type Pipe interface {
	isPipe()
}

// EdgesOf maps each vertex to its edges in Direction, optionally restricted
// to one edge type and to a timestamp window [Low, High].
type EdgesOf struct {
	Direction graph.Direction
	Type      *graph.Identifier
	High      *time.Time
	Low       *time.Time
}

// Endpoints maps each edge to the vertex on the given side.
type Endpoints struct {
	Direction graph.Direction
}

// HasProperty keeps the items that own a property called Name.
type HasProperty struct {
	Name graph.Identifier
}

// PropertyEquals keeps the items whose property Name equals Value.
type PropertyEquals struct {
	Name  graph.Identifier
	Value graph.Value
}

// Offset skips the first N items.
type Offset struct {
	N int
}

// Limit truncates the stream after N items. It must be the last pipe.
type Limit struct {
	N int
}

func (EdgesOf) isPipe()        {}
func (Endpoints) isPipe()      {}
func (HasProperty) isPipe()    {}
func (PropertyEquals) isPipe() {}
func (Offset) isPipe()         {}
func (Limit) isPipe()          {}

// Query is a start followed by a chain of pipes.
type Query struct {
	Start Start
	Pipes []Pipe
}

// Output reports what the query yields once every pipe is applied. It does
// not validate the query.
func (q Query) Output() Output {
	if q.Start == nil {
		return VertexOutput
	}
	out := q.Start.Output()
	for _, p := range q.Pipes {
		switch p.(type) {
		case EdgesOf:
			out = EdgeOutput
		case Endpoints:
			out = VertexOutput
		}
	}
	return out
}

// Pipe returns a copy of q with p appended.
func (q Query) Pipe(p Pipe) Query {
	pipes := make([]Pipe, len(q.Pipes), len(q.Pipes)+1)
	copy(pipes, q.Pipes)
	return Query{Start: q.Start, Pipes: append(pipes, p)}
}

// From starts a query at s.
func From(s Start) Query {
	return Query{Start: s}
}

// AllVerticesQuery selects every vertex.
func AllVerticesQuery() Query {
	return From(AllVertices{})
}

// Vertices selects the given vertex ids.
func Vertices(ids ...uuid.UUID) Query {
	return From(SpecificVertices{IDs: ids})
}

// VerticesBetween selects vertices with ids in [start, end].
func VerticesBetween(start, end uuid.UUID) Query {
	return From(VertexRange{Start: start, End: end})
}

// AllEdgesQuery selects every edge.
func AllEdgesQuery() Query {
	return From(AllEdges{})
}

// Edges selects the given edge keys.
func Edges(keys ...graph.EdgeKey) Query {
	return From(SpecificEdges{Keys: keys})
}

// Outbound follows the outbound edges of each vertex.
func (q Query) Outbound(t *graph.Identifier) Query {
	return q.Pipe(EdgesOf{Direction: graph.Outbound, Type: t})
}

// Inbound follows the inbound edges of each vertex.
func (q Query) Inbound(t *graph.Identifier) Query {
	return q.Pipe(EdgesOf{Direction: graph.Inbound, Type: t})
}

// Endpoint maps edges to their outbound or inbound vertex.
func (q Query) Endpoint(d graph.Direction) Query {
	return q.Pipe(Endpoints{Direction: d})
}

// WithProperty keeps items owning the named property.
func (q Query) WithProperty(name graph.Identifier) Query {
	return q.Pipe(HasProperty{Name: name})
}

// WherePropertyEquals keeps items whose named property equals v.
func (q Query) WherePropertyEquals(name graph.Identifier, v graph.Value) Query {
	return q.Pipe(PropertyEquals{Name: name, Value: v})
}

// Offset skips n items.
func (q Query) Offset(n int) Query {
	return q.Pipe(Offset{N: n})
}

// Limit caps the result at n items.
func (q Query) Limit(n int) Query {
	return q.Pipe(Limit{N: n})
}
