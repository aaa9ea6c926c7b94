package datastoretest

import (
	"testing"
	"time"

	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEdgeMissingEndpoint(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)

	for _, key := range []graph.EdgeKey{
		graph.NewEdgeKey(ID(1), likes, ID(2)),
		graph.NewEdgeKey(ID(2), likes, ID(1)),
		graph.NewEdgeKey(ID(3), likes, ID(4)),
	} {
		require.ErrorIs(t, h.ds.CreateEdge(key), graph.ErrConflict)
		assert.Empty(t, h.edges(t, query.Edges(key)), "no trace of %s", key)
	}
	assert.Empty(t, h.edges(t, query.Vertices(ID(1)).Outbound(nil)))
	assert.Empty(t, h.edges(t, query.Vertices(ID(1)).Inbound(nil)))
}

func testEdgeUpsert(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)
	h.vertex(t, 2, userType)

	key := h.edge(t, 1, likes, 2)
	first := h.edges(t, query.Edges(key))
	require.Len(t, first, 1)
	require.NoError(t, h.ds.SetEdgeProperty(key, weight, graph.MustValue(3)))

	later := h.clock.Advance(time.Minute)
	require.NoError(t, h.ds.CreateEdge(key))

	second := h.edges(t, query.Edges(key))
	require.Len(t, second, 1, "re-creating an edge must not duplicate it")
	assert.True(t, second[0].Timestamp.After(first[0].Timestamp))
	assert.True(t, later.Equal(second[0].Timestamp), "timestamp %v, want %v", second[0].Timestamp, later)

	inbound := h.edges(t, query.Vertices(ID(2)).Inbound(nil))
	require.Len(t, inbound, 1, "reverse index must not duplicate either")
	assert.True(t, later.Equal(inbound[0].Timestamp))
	assert.Len(t, h.edges(t, query.AllEdgesQuery()), 1)

	// Properties survive the upsert.
	val, err := h.ds.GetEdgeProperty(key, weight)
	require.NoError(t, err)
	assert.Equal(t, graph.MustValue(3), val)
}

func testTraversal(t *testing.T, h *harness) {
	for n := uint64(1); n <= 5; n++ {
		h.vertex(t, n, userType)
	}
	h.edge(t, 1, likes, 4)
	h.edge(t, 1, follows, 3)
	h.edge(t, 1, likes, 2)
	h.edge(t, 2, likes, 3)
	h.edge(t, 5, follows, 1)

	// Outbound adjacency is returned in (type, inbound id) order.
	assert.Equal(t, []graph.EdgeKey{
		graph.NewEdgeKey(ID(1), follows, ID(3)),
		graph.NewEdgeKey(ID(1), likes, ID(2)),
		graph.NewEdgeKey(ID(1), likes, ID(4)),
	}, h.edgeKeys(t, query.Vertices(ID(1)).Outbound(nil)))

	assert.Equal(t, []graph.EdgeKey{
		graph.NewEdgeKey(ID(1), likes, ID(2)),
		graph.NewEdgeKey(ID(1), likes, ID(4)),
	}, h.edgeKeys(t, query.Vertices(ID(1)).Outbound(&likes)))

	// Inbound traversal uses the reverse index and yields canonical keys.
	assert.Equal(t, []graph.EdgeKey{
		graph.NewEdgeKey(ID(1), follows, ID(3)),
		graph.NewEdgeKey(ID(2), likes, ID(3)),
	}, h.edgeKeys(t, query.Vertices(ID(3)).Inbound(nil)))

	// Upstream order first, then adjacency order; no re-sorting.
	assert.Equal(t, ids(3, 2, 4, 3), h.vertexIDs(t,
		query.Vertices(ID(1), ID(2)).Outbound(nil).Endpoint(graph.Inbound)))

	// Two hops, walking backwards.
	assert.Equal(t, ids(5), h.vertexIDs(t,
		query.Vertices(ID(3)).Inbound(&follows).Endpoint(graph.Outbound).
			Inbound(&follows).Endpoint(graph.Outbound)))

	all := h.edgeKeys(t, query.AllEdgesQuery())
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Equal(t, -1, all[i-1].Compare(all[i]), "all edges ascend by key")
	}
}

func testTraversalTimestampWindow(t *testing.T, h *harness) {
	for n := uint64(1); n <= 4; n++ {
		h.vertex(t, n, userType)
	}
	t0 := h.clock.Now()
	h.edge(t, 1, likes, 2)
	t1 := h.clock.Advance(time.Hour)
	h.edge(t, 1, likes, 3)
	h.clock.Advance(time.Hour)
	h.edge(t, 1, likes, 4)

	window := func(low, high *time.Time) []graph.EdgeKey {
		return h.edgeKeys(t, query.Vertices(ID(1)).Pipe(query.EdgesOf{
			Direction: graph.Outbound, Low: low, High: high,
		}))
	}

	assert.Len(t, window(nil, nil), 3)
	assert.Equal(t, []graph.EdgeKey{graph.NewEdgeKey(ID(1), likes, ID(2))}, window(nil, &t0))
	assert.Equal(t, []graph.EdgeKey{
		graph.NewEdgeKey(ID(1), likes, ID(3)),
		graph.NewEdgeKey(ID(1), likes, ID(4)),
	}, window(&t1, nil))
	assert.Equal(t, []graph.EdgeKey{graph.NewEdgeKey(ID(1), likes, ID(3))}, window(&t1, &t1))
	assert.Empty(t, window(nil, ptr(t0.Add(-time.Second))))
}

func testEdgeCount(t *testing.T, h *harness) {
	for n := uint64(1); n <= 4; n++ {
		h.vertex(t, n, userType)
	}
	h.edge(t, 1, likes, 2)
	h.edge(t, 1, likes, 3)
	h.edge(t, 1, follows, 4)
	h.edge(t, 4, follows, 1)

	count := func(n uint64, typ *graph.Identifier, dir graph.Direction) uint64 {
		c, err := h.ds.EdgeCount(ID(n), typ, dir)
		require.NoError(t, err)
		return c
	}
	assert.Equal(t, uint64(3), count(1, nil, graph.Outbound))
	assert.Equal(t, uint64(2), count(1, &likes, graph.Outbound))
	assert.Equal(t, uint64(1), count(1, nil, graph.Inbound))
	assert.Equal(t, uint64(0), count(2, nil, graph.Outbound))
	assert.Equal(t, uint64(1), count(2, &likes, graph.Inbound))
	assert.Equal(t, uint64(0), count(99, nil, graph.Inbound))
}

func testDeleteEdgesCascade(t *testing.T, h *harness) {
	for n := uint64(1); n <= 3; n++ {
		h.vertex(t, n, userType)
	}
	a := h.edge(t, 1, likes, 2)
	b := h.edge(t, 1, follows, 3)
	require.NoError(t, h.ds.SetEdgeProperty(a, weight, graph.MustValue(1)))
	require.NoError(t, h.ds.SetEdgeProperty(b, weight, graph.MustValue(1)))

	require.NoError(t, h.ds.DeleteEdges(query.Vertices(ID(1)).Outbound(&likes)))

	assert.Equal(t, []graph.EdgeKey{b}, h.edgeKeys(t, query.AllEdgesQuery()))
	_, err := h.ds.GetEdgeProperty(a, weight)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	assert.Empty(t, h.edges(t, query.Vertices(ID(2)).Inbound(nil)))
	assert.Equal(t, []graph.EdgeKey{b}, h.edgeKeys(t,
		query.From(query.EdgesWherePropertyEquals{Name: weight, Value: graph.MustValue(1)})))

	// Vertices are untouched by edge deletion.
	assert.Len(t, h.vertices(t, query.AllVerticesQuery()), 3)
}

func ptr[T any](v T) *T {
	return &v
}
