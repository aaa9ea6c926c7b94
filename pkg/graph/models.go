// Package graph defines the data model of the store: identifiers, vertices,
// edges, property values and the error taxonomy shared by every backend.
package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Vertex is a typed, uniquely identified graph node.
type Vertex struct {
	ID   uuid.UUID
	Type Identifier
}

// NewVertex creates a vertex of type t with a freshly generated id.
func NewVertex(t Identifier) Vertex {
	return Vertex{ID: NewID(), Type: t}
}

// Direction selects one side of an edge.
type Direction uint8

const (
	Outbound Direction = iota
	Inbound
)

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Outbound {
		return Inbound
	}
	return Outbound
}

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "outbound"
	case Inbound:
		return "inbound"
	default:
		return fmt.Sprintf("direction(%d)", uint8(d))
	}
}

// EdgeKey identifies an edge. There is no separate edge id: the triple is
// the identity.
type EdgeKey struct {
	OutboundID uuid.UUID
	Type       Identifier
	InboundID  uuid.UUID
}

// NewEdgeKey is a convenience constructor.
func NewEdgeKey(outboundID uuid.UUID, t Identifier, inboundID uuid.UUID) EdgeKey {
	return EdgeKey{OutboundID: outboundID, Type: t, InboundID: inboundID}
}

// Reversed swaps the endpoints.
func (k EdgeKey) Reversed() EdgeKey {
	return EdgeKey{OutboundID: k.InboundID, Type: k.Type, InboundID: k.OutboundID}
}

// Endpoint returns the vertex id on the given side of the edge.
func (k EdgeKey) Endpoint(d Direction) uuid.UUID {
	if d == Inbound {
		return k.InboundID
	}
	return k.OutboundID
}

// Compare orders keys by outbound id, then type, then inbound id. This is
// the order in which edges are scanned.
func (k EdgeKey) Compare(o EdgeKey) int {
	if c := CompareIDs(k.OutboundID, o.OutboundID); c != 0 {
		return c
	}
	if c := strings.Compare(k.Type.name, o.Type.name); c != 0 {
		return c
	}
	return CompareIDs(k.InboundID, o.InboundID)
}

func (k EdgeKey) String() string {
	return fmt.Sprintf("(%s)-[%s]->(%s)", k.OutboundID, k.Type, k.InboundID)
}

// Edge is a typed directed relation between two vertices. Timestamp is set
// when the edge is created and refreshed when the same key is created again.
type Edge struct {
	Key       EdgeKey
	Timestamp time.Time
}

// VertexProperty is a property value together with its owning vertex.
type VertexProperty struct {
	ID    uuid.UUID
	Value Value
}

// EdgeProperty is a property value together with its owning edge.
type EdgeProperty struct {
	Key   EdgeKey
	Value Value
}
