package memory

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/persistence"
	"github.com/vmihailenco/msgpack/v5"
)

// Snapshot frame opcodes. Secondary structures (reverse edges, value
// indexes) are not stored; they are rebuilt on load.
const (
	opHeader byte = iota + 1
	opVertex
	opEdge
	opVertexProperty
	opEdgeProperty
)

const snapshotVersion = 1

type snapshotHeader struct {
	Version  int    `msgpack:"version"`
	Vertices int    `msgpack:"vertices"`
	Edges    int    `msgpack:"edges"`
	Created  string `msgpack:"created"`
}

type vertexRecord struct {
	ID   uuid.UUID `msgpack:"id"`
	Type string    `msgpack:"t"`
}

type edgeRecord struct {
	Out       uuid.UUID `msgpack:"o"`
	Type      string    `msgpack:"t"`
	In        uuid.UUID `msgpack:"i"`
	Timestamp int64     `msgpack:"ts"`
}

type vertexPropertyRecord struct {
	ID    uuid.UUID `msgpack:"id"`
	Name  string    `msgpack:"n"`
	Value []byte    `msgpack:"v"`
}

type edgePropertyRecord struct {
	Out   uuid.UUID `msgpack:"o"`
	Type  string    `msgpack:"t"`
	In    uuid.UUID `msgpack:"i"`
	Name  string    `msgpack:"n"`
	Value []byte    `msgpack:"v"`
}

// writeSnapshot serializes s into a new snapshot at path. The caller must
// keep s stable for the duration of the call.
func writeSnapshot(path string, s *state) error {
	w, err := persistence.CreateSnapshot(path)
	if err != nil {
		return err
	}
	defer w.Abort()

	write := func(op byte, v any) error {
		payload, err := msgpack.Marshal(v)
		if err != nil {
			return err
		}
		return w.WriteFrame(op, payload)
	}

	header := snapshotHeader{
		Version:  snapshotVersion,
		Vertices: s.vertices.Len(),
		Edges:    s.edges.Len(),
		Created:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := write(opHeader, header); err != nil {
		return err
	}

	var werr error
	s.vertices.Scan(func(item vertexItem) bool {
		werr = write(opVertex, vertexRecord{ID: item.id, Type: item.t.String()})
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	s.edges.Scan(func(item edgeItem) bool {
		werr = write(opEdge, edgeRecord{
			Out:       item.key.OutboundID,
			Type:      item.key.Type.String(),
			In:        item.key.InboundID,
			Timestamp: item.ts.UnixNano(),
		})
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	s.vertexProps.Scan(func(item vertexPropItem) bool {
		werr = write(opVertexProperty, vertexPropertyRecord{ID: item.id, Name: item.name, Value: item.value})
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	s.edgeProps.Scan(func(item edgePropItem) bool {
		werr = write(opEdgeProperty, edgePropertyRecord{
			Out:   item.key.OutboundID,
			Type:  item.key.Type.String(),
			In:    item.key.InboundID,
			Name:  item.name,
			Value: item.value,
		})
		return werr == nil
	})
	if werr != nil {
		return werr
	}

	return w.Commit()
}

// loadSnapshot rebuilds a state from the snapshot at path. Records go
// through the same code paths as live mutations, so indexes and reverse
// edges are rebuilt and every invariant is checked again.
func loadSnapshot(path string) (*state, error) {
	r, err := persistence.OpenSnapshot(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	s := newState()
	first := true
	for {
		op, payload, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if first {
			if op != opHeader {
				return nil, fmt.Errorf("snapshot %s: missing header", path)
			}
			var h snapshotHeader
			if err := msgpack.Unmarshal(payload, &h); err != nil {
				return nil, fmt.Errorf("snapshot header: %w", err)
			}
			if h.Version != snapshotVersion {
				return nil, fmt.Errorf("snapshot %s: unsupported version %d", path, h.Version)
			}
			first = false
			continue
		}

		if err := s.load(op, payload); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", path, err)
		}
	}
	return s, nil
}

func (s *state) load(op byte, payload []byte) error {
	switch op {
	case opVertex:
		var rec vertexRecord
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return err
		}
		t, err := graph.NewIdentifier(rec.Type)
		if err != nil {
			return err
		}
		return s.createVertex(graph.Vertex{ID: rec.ID, Type: t})

	case opEdge:
		var rec edgeRecord
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return err
		}
		t, err := graph.NewIdentifier(rec.Type)
		if err != nil {
			return err
		}
		return s.createEdge(graph.NewEdgeKey(rec.Out, t, rec.In), time.Unix(0, rec.Timestamp).UTC())

	case opVertexProperty:
		var rec vertexPropertyRecord
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return err
		}
		if err := graph.ValidateIdentifier(rec.Name); err != nil {
			return err
		}
		return s.setVertexProperty(rec.ID, rec.Name, graph.Value(rec.Value))

	case opEdgeProperty:
		var rec edgePropertyRecord
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return err
		}
		t, err := graph.NewIdentifier(rec.Type)
		if err != nil {
			return err
		}
		if err := graph.ValidateIdentifier(rec.Name); err != nil {
			return err
		}
		return s.setEdgeProperty(graph.NewEdgeKey(rec.Out, t, rec.In), rec.Name, graph.Value(rec.Value))

	default:
		return fmt.Errorf("unknown record opcode %#x", op)
	}
}
