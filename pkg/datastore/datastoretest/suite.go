// Package datastoretest is a conformance suite for datastore.Datastore
// implementations. Every backend runs it from its own tests:
//
//	func TestConformance(t *testing.T) {
//		datastoretest.Run(t, func(t *testing.T, cfg datastoretest.Config) datastore.Datastore {
//			return newBackend(t, cfg)
//		})
//	}
package datastoretest

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/require"
)

// Config carries the knobs a backend under test must honor.
type Config struct {
	// PageSize is deliberately small so scans cross page boundaries.
	PageSize int
	// Clock stamps edges.
	Clock func() time.Time
}

// Factory opens a fresh, empty datastore. The factory is responsible for
// cleanup (t.Cleanup).
type Factory func(t *testing.T, cfg Config) datastore.Datastore

// Run executes the whole suite.
func Run(t *testing.T, factory Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, h *harness)
	}{
		{"VertexRoundTrip", testVertexRoundTrip},
		{"VertexConflict", testVertexConflict},
		{"VertexFromType", testVertexFromType},
		{"InvalidIdentifiers", testInvalidIdentifiers},
		{"SpecificVerticesOrdering", testSpecificVerticesOrdering},
		{"VertexRange", testVertexRange},
		{"ScanAcrossPages", testScanAcrossPages},
		{"LikesScenario", testLikesScenario},
		{"DeleteVertexCascade", testDeleteVertexCascade},
		{"DeleteSelfLoop", testDeleteSelfLoop},
		{"DeleteVerticesByTraversal", testDeleteVerticesByTraversal},
		{"EdgeMissingEndpoint", testEdgeMissingEndpoint},
		{"EdgeUpsert", testEdgeUpsert},
		{"Traversal", testTraversal},
		{"TraversalTimestampWindow", testTraversalTimestampWindow},
		{"EdgeCount", testEdgeCount},
		{"VertexProperties", testVertexProperties},
		{"EdgeProperties", testEdgeProperties},
		{"PropertyFilters", testPropertyFilters},
		{"PropertyIndexStarts", testPropertyIndexStarts},
		{"EdgePropertyIndexStarts", testEdgePropertyIndexStarts},
		{"LargeValueIndex", testLargeValueIndex},
		{"MalformedValues", testMalformedValues},
		{"BulkProperties", testBulkProperties},
		{"LimitAndOffset", testLimitAndOffset},
		{"QueryErrors", testQueryErrors},
		{"BulkAtomicity", testBulkAtomicity},
		{"BulkOrdering", testBulkOrdering},
		{"DeleteEdgesCascade", testDeleteEdgesCascade},
		{"WriteWhileIterating", testWriteWhileIterating},
		{"ConcurrentCreates", testConcurrentCreates},
		{"ConcurrentReadersSeeAtomicDeletes", testConcurrentReadersSeeAtomicDeletes},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
			ds := factory(t, Config{PageSize: 3, Clock: clock.Now})
			tc.fn(t, &harness{ds: ds, clock: clock})
		})
	}
}

type harness struct {
	ds    datastore.Datastore
	clock *fakeClock
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

var (
	userType  = graph.MustIdentifier("user")
	movieType = graph.MustIdentifier("movie")
	likes     = graph.MustIdentifier("likes")
	follows   = graph.MustIdentifier("follows")
	nameProp  = graph.MustIdentifier("name")
	ageProp   = graph.MustIdentifier("age")
	weight    = graph.MustIdentifier("weight")
)

// ID returns a deterministic id whose big-endian value is n.
func ID(n uint64) uuid.UUID {
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], n)
	return id
}

func (h *harness) vertex(t *testing.T, n uint64, typ graph.Identifier) graph.Vertex {
	t.Helper()
	v := graph.Vertex{ID: ID(n), Type: typ}
	require.NoError(t, h.ds.CreateVertex(v))
	return v
}

func (h *harness) edge(t *testing.T, out uint64, typ graph.Identifier, in uint64) graph.EdgeKey {
	t.Helper()
	key := graph.NewEdgeKey(ID(out), typ, ID(in))
	require.NoError(t, h.ds.CreateEdge(key))
	return key
}

func (h *harness) vertices(t *testing.T, q query.Query) []graph.Vertex {
	t.Helper()
	seq, err := h.ds.GetVertices(q)
	require.NoError(t, err)
	out, err := datastore.Collect(seq)
	require.NoError(t, err)
	return out
}

func (h *harness) vertexIDs(t *testing.T, q query.Query) []uuid.UUID {
	t.Helper()
	var ids []uuid.UUID
	for _, v := range h.vertices(t, q) {
		ids = append(ids, v.ID)
	}
	return ids
}

func (h *harness) edges(t *testing.T, q query.Query) []graph.Edge {
	t.Helper()
	seq, err := h.ds.GetEdges(q)
	require.NoError(t, err)
	out, err := datastore.Collect(seq)
	require.NoError(t, err)
	return out
}

func (h *harness) edgeKeys(t *testing.T, q query.Query) []graph.EdgeKey {
	t.Helper()
	var keys []graph.EdgeKey
	for _, e := range h.edges(t, q) {
		keys = append(keys, e.Key)
	}
	return keys
}

func ids(ns ...uint64) []uuid.UUID {
	out := make([]uuid.UUID, len(ns))
	for i, n := range ns {
		out[i] = ID(n)
	}
	return out
}
