package datastore

import (
	"fmt"

	"github.com/sanonone/kektorgraph/pkg/graph"
)

// Validate checks the identifiers and values carried by a mutation. Backends
// call it before touching any state.
func Validate(m Mutation) error {
	switch m := m.(type) {
	case CreateVertex:
		return m.Vertex.Type.Valid()
	case CreateEdge:
		return m.Key.Type.Valid()
	case SetVertexProperty:
		if err := m.Name.Valid(); err != nil {
			return err
		}
		return m.Value.Valid()
	case SetEdgeProperty:
		if err := m.Key.Type.Valid(); err != nil {
			return err
		}
		if err := m.Name.Valid(); err != nil {
			return err
		}
		return m.Value.Valid()
	case DeleteVertex:
		return nil
	case DeleteEdge:
		return m.Key.Type.Valid()
	case DeleteVertexProperty:
		return m.Name.Valid()
	case DeleteEdgeProperty:
		if err := m.Key.Type.Valid(); err != nil {
			return err
		}
		return m.Name.Valid()
	case nil:
		return &graph.ValidationError{Value: "<nil>", Reason: "nil mutation"}
	default:
		return &graph.ValidationError{Value: fmt.Sprintf("%T", m), Reason: "unknown mutation"}
	}
}

// ValidateAll validates every item of a bulk write.
func ValidateAll(items []Mutation) error {
	for i, m := range items {
		if err := Validate(m); err != nil {
			return fmt.Errorf("bulk item %d: %w", i, err)
		}
	}
	return nil
}
