package query

import (
	"fmt"

	"github.com/sanonone/kektorgraph/pkg/graph"
)

// Validate checks that q is well formed: a start is present, every pipe
// receives the kind of stream it expects, counts are not negative and a
// Limit, if any, is the terminal stage.
func (q Query) Validate() error {
	if q.Start == nil {
		return &graph.QueryError{Reason: "query has no start"}
	}
	if err := validateStart(q.Start); err != nil {
		return err
	}

	out := q.Start.Output()
	for i, p := range q.Pipes {
		switch p := p.(type) {
		case EdgesOf:
			if out != VertexOutput {
				return pipeMismatch(i, "edge traversal", VertexOutput, out)
			}
			if p.Type != nil {
				if err := identifier(p.Type.Valid()); err != nil {
					return err
				}
			}
			if p.High != nil && p.Low != nil && p.High.Before(*p.Low) {
				return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: high bound is before low bound", i)}
			}
			out = EdgeOutput
		case Endpoints:
			if out != EdgeOutput {
				return pipeMismatch(i, "endpoint", EdgeOutput, out)
			}
			out = VertexOutput
		case HasProperty:
			if err := identifier(p.Name.Valid()); err != nil {
				return err
			}
		case PropertyEquals:
			if err := identifier(p.Name.Valid()); err != nil {
				return err
			}
			if err := p.Value.Valid(); err != nil {
				return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: %v", i, err)}
			}
		case Offset:
			if p.N < 0 {
				return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: negative offset %d", i, p.N)}
			}
		case Limit:
			if p.N < 0 {
				return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: negative limit %d", i, p.N)}
			}
			if i != len(q.Pipes)-1 {
				return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: limit must be the last stage", i)}
			}
		case nil:
			return &graph.QueryError{Reason: fmt.Sprintf("pipe %d is nil", i)}
		default:
			return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: unknown pipe %T", i, p)}
		}
	}
	return nil
}

// Expect validates q and additionally checks that it yields out.
func (q Query) Expect(out Output) error {
	if err := q.Validate(); err != nil {
		return err
	}
	if got := q.Output(); got != out {
		return &graph.QueryError{Reason: fmt.Sprintf("query yields %s, expected %s", got, out)}
	}
	return nil
}

func validateStart(s Start) error {
	switch s := s.(type) {
	case AllVertices, AllEdges, SpecificVertices:
		return nil
	case VertexRange:
		if graph.CompareIDs(s.Start, s.End) > 0 {
			return &graph.QueryError{Reason: "vertex range start is after its end"}
		}
	case SpecificEdges:
		for _, k := range s.Keys {
			if err := identifier(k.Type.Valid()); err != nil {
				return err
			}
		}
	case VerticesWithProperty:
		return identifier(s.Name.Valid())
	case EdgesWithProperty:
		return identifier(s.Name.Valid())
	case VerticesWherePropertyEquals:
		if err := identifier(s.Name.Valid()); err != nil {
			return err
		}
		if err := s.Value.Valid(); err != nil {
			return &graph.QueryError{Reason: err.Error()}
		}
	case EdgesWherePropertyEquals:
		if err := identifier(s.Name.Valid()); err != nil {
			return err
		}
		if err := s.Value.Valid(); err != nil {
			return &graph.QueryError{Reason: err.Error()}
		}
	default:
		return &graph.QueryError{Reason: fmt.Sprintf("unknown start %T", s)}
	}
	return nil
}

func pipeMismatch(i int, what string, want, got Output) error {
	return &graph.QueryError{Reason: fmt.Sprintf("pipe %d: %s pipe expects %s but receives %s", i, what, want, got)}
}

func identifier(err error) error {
	if err != nil {
		return &graph.QueryError{Reason: err.Error()}
	}
	return nil
}
