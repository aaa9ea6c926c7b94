package datastoretest

import (
	"testing"

	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVertexRoundTrip(t *testing.T, h *harness) {
	v := h.vertex(t, 1, userType)

	got := h.vertices(t, query.Vertices(v.ID))
	require.Equal(t, []graph.Vertex{v}, got)

	count, err := h.ds.VertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	assert.Empty(t, h.vertices(t, query.Vertices(ID(2))))
}

func testVertexConflict(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)

	err := h.ds.CreateVertex(graph.Vertex{ID: ID(1), Type: movieType})
	require.ErrorIs(t, err, graph.ErrConflict)

	got := h.vertices(t, query.Vertices(ID(1)))
	require.Len(t, got, 1)
	assert.Equal(t, userType, got[0].Type, "failed create must not overwrite")
}

func testVertexFromType(t *testing.T, h *harness) {
	a, err := h.ds.CreateVertexFromType(userType)
	require.NoError(t, err)
	b, err := h.ds.CreateVertexFromType(userType)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	got := h.vertices(t, query.AllVerticesQuery())
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0].ID, "generated ids sort in creation order")
	assert.Equal(t, b, got[1].ID)
}

func testInvalidIdentifiers(t *testing.T, h *harness) {
	var verr *graph.ValidationError

	err := h.ds.CreateVertex(graph.Vertex{ID: ID(1)})
	require.ErrorAs(t, err, &verr)

	h.vertex(t, 1, userType)
	h.vertex(t, 2, userType)
	require.ErrorAs(t, h.ds.CreateEdge(graph.EdgeKey{OutboundID: ID(1), InboundID: ID(2)}), &verr)
	require.ErrorAs(t, h.ds.SetVertexProperty(ID(1), graph.Identifier{}, graph.MustValue(1)), &verr)
	require.ErrorAs(t, h.ds.SetVertexProperty(ID(1), nameProp, nil), &verr)
	_, err = h.ds.GetVertexProperty(ID(1), graph.Identifier{})
	require.ErrorAs(t, err, &verr)

	assert.Empty(t, h.edges(t, query.AllEdgesQuery()))
}

func testSpecificVerticesOrdering(t *testing.T, h *harness) {
	for _, n := range []uint64{5, 3, 9, 1} {
		h.vertex(t, n, userType)
	}

	got := h.vertexIDs(t, query.Vertices(ID(9), ID(1), ID(4), ID(5), ID(1)))
	assert.Equal(t, ids(1, 5, 9), got, "ascending, de-duplicated, missing ids skipped")
}

func testVertexRange(t *testing.T, h *harness) {
	for n := uint64(1); n <= 10; n++ {
		h.vertex(t, n, userType)
	}

	assert.Equal(t, ids(3, 4, 5, 6), h.vertexIDs(t, query.VerticesBetween(ID(3), ID(6))))
	assert.Equal(t, ids(10), h.vertexIDs(t, query.VerticesBetween(ID(10), ID(100))))
	assert.Equal(t, ids(4), h.vertexIDs(t, query.VerticesBetween(ID(4), ID(4))))
	assert.Empty(t, h.vertexIDs(t, query.VerticesBetween(ID(11), ID(20))))
}

func testScanAcrossPages(t *testing.T, h *harness) {
	const n = 50
	var want []graph.Vertex
	for i := uint64(n); i >= 1; i-- {
		h.vertex(t, i, userType)
	}
	for i := uint64(1); i <= n; i++ {
		want = append(want, graph.Vertex{ID: ID(i), Type: userType})
	}

	assert.Equal(t, want, h.vertices(t, query.AllVerticesQuery()))

	count, err := h.ds.VertexCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(n), count)
}

// testLikesScenario is the reference scenario: two users, one "likes" edge,
// then deletion of the outbound user.
func testLikesScenario(t *testing.T, h *harness) {
	a := h.vertex(t, 1, userType)
	b := h.vertex(t, 2, userType)
	key := h.edge(t, 1, likes, 2)

	edges := h.edges(t, query.Edges(key))
	require.Len(t, edges, 1)
	assert.Equal(t, a.ID, edges[0].Key.OutboundID)
	assert.Equal(t, b.ID, edges[0].Key.InboundID)
	assert.Equal(t, likes, edges[0].Key.Type)

	require.NoError(t, h.ds.DeleteVertices(query.Vertices(a.ID)))

	assert.Empty(t, h.edges(t, query.Edges(key)))
	assert.Equal(t, []graph.Vertex{b}, h.vertices(t, query.Vertices(b.ID)))
}

func testDeleteVertexCascade(t *testing.T, h *harness) {
	for n := uint64(1); n <= 4; n++ {
		h.vertex(t, n, userType)
	}
	out := h.edge(t, 1, likes, 2)
	in := h.edge(t, 3, follows, 1)
	unrelated := h.edge(t, 3, likes, 4)

	require.NoError(t, h.ds.SetVertexProperty(ID(1), nameProp, graph.MustValue("alice")))
	require.NoError(t, h.ds.SetVertexProperty(ID(2), nameProp, graph.MustValue("bob")))
	require.NoError(t, h.ds.SetEdgeProperty(out, weight, graph.MustValue(0.5)))
	require.NoError(t, h.ds.SetEdgeProperty(in, weight, graph.MustValue(0.7)))

	require.NoError(t, h.ds.DeleteVertices(query.Vertices(ID(1))))

	assert.Empty(t, h.vertices(t, query.Vertices(ID(1))))
	assert.Empty(t, h.edges(t, query.Edges(out, in)))
	assert.Equal(t, []graph.EdgeKey{unrelated}, h.edgeKeys(t, query.AllEdgesQuery()))

	_, err := h.ds.GetVertexProperty(ID(1), nameProp)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	_, err = h.ds.GetEdgeProperty(out, weight)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	_, err = h.ds.GetEdgeProperty(in, weight)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	// Reverse adjacency and indexes must not remember the deleted rows.
	assert.Empty(t, h.edges(t, query.Vertices(ID(2)).Inbound(nil)))
	assert.Empty(t, h.edges(t, query.Vertices(ID(3)).Outbound(&follows)))
	assert.Equal(t, ids(2), h.vertexIDs(t, query.From(query.VerticesWithProperty{Name: nameProp})))
	assert.Empty(t, h.edges(t, query.From(query.EdgesWithProperty{Name: weight})))

	val, err := h.ds.GetVertexProperty(ID(2), nameProp)
	require.NoError(t, err)
	assert.Equal(t, graph.MustValue("bob"), val)
}

func testDeleteSelfLoop(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)
	loop := h.edge(t, 1, follows, 1)
	require.NoError(t, h.ds.SetEdgeProperty(loop, weight, graph.MustValue(1)))

	assert.Len(t, h.edges(t, query.Vertices(ID(1)).Inbound(nil)), 1)
	require.NoError(t, h.ds.DeleteVertices(query.AllVerticesQuery()))

	assert.Empty(t, h.edges(t, query.AllEdgesQuery()))
	assert.Empty(t, h.vertices(t, query.AllVerticesQuery()))
}

func testDeleteVerticesByTraversal(t *testing.T, h *harness) {
	for n := uint64(1); n <= 4; n++ {
		h.vertex(t, n, userType)
	}
	h.edge(t, 1, likes, 3)
	h.edge(t, 2, likes, 3)
	h.edge(t, 2, likes, 4)

	// Vertex 3 is reached twice.
	q := query.Vertices(ID(1), ID(2)).Outbound(&likes).Endpoint(graph.Inbound)
	require.NoError(t, h.ds.DeleteVertices(q))

	assert.Equal(t, ids(1, 2), h.vertexIDs(t, query.AllVerticesQuery()))
	assert.Empty(t, h.edges(t, query.AllEdgesQuery()))

	// Deleting nothing is not an error.
	require.NoError(t, h.ds.DeleteVertices(query.Vertices(ID(42))))
}

func testQueryErrors(t *testing.T, h *harness) {
	var qerr *graph.QueryError

	_, err := h.ds.GetVertices(query.AllEdgesQuery())
	require.ErrorAs(t, err, &qerr)
	_, err = h.ds.GetEdges(query.AllVerticesQuery())
	require.ErrorAs(t, err, &qerr)
	_, err = h.ds.GetEdges(query.AllEdgesQuery().Outbound(nil))
	require.ErrorAs(t, err, &qerr)
	_, err = h.ds.GetVertices(query.AllVerticesQuery().Endpoint(graph.Inbound))
	require.ErrorAs(t, err, &qerr)
	_, err = h.ds.GetVertices(query.AllVerticesQuery().Limit(1).Offset(1))
	require.ErrorAs(t, err, &qerr)
	_, err = h.ds.GetVertexProperties(query.AllEdgesQuery(), nameProp)
	require.ErrorAs(t, err, &qerr)
	require.ErrorAs(t, h.ds.DeleteVertices(query.AllEdgesQuery()), &qerr)
	require.ErrorAs(t, h.ds.DeleteEdges(query.AllVerticesQuery()), &qerr)
}

func testLimitAndOffset(t *testing.T, h *harness) {
	for n := uint64(1); n <= 10; n++ {
		h.vertex(t, n, userType)
	}
	all := query.AllVerticesQuery()

	assert.Equal(t, ids(1, 2, 3, 4), h.vertexIDs(t, all.Limit(4)))
	assert.Len(t, h.vertexIDs(t, all.Limit(100)), 10, "at most n")
	assert.Empty(t, h.vertexIDs(t, all.Limit(0)))
	assert.Equal(t, ids(3, 4, 5), h.vertexIDs(t, all.Offset(2).Limit(3)))
	assert.Empty(t, h.vertexIDs(t, all.Offset(10)))

	// Limit applies after filtering: exactly n once n matches exist.
	for n := uint64(1); n <= 10; n += 2 {
		require.NoError(t, h.ds.SetVertexProperty(ID(n), ageProp, graph.MustValue(n)))
	}
	assert.Equal(t, ids(1, 3, 5), h.vertexIDs(t, all.WithProperty(ageProp).Limit(3)))
	assert.Equal(t, ids(5, 7), h.vertexIDs(t, all.WithProperty(ageProp).Offset(2).Limit(2)))

	// Abandoning a sequence early is allowed.
	seq, err := h.ds.GetVertices(all)
	require.NoError(t, err)
	seen := 0
	for _, err := range seq {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func testWriteWhileIterating(t *testing.T, h *harness) {
	for n := uint64(1); n <= 10; n++ {
		h.vertex(t, n, userType)
	}

	seq, err := h.ds.GetVertices(query.AllVerticesQuery())
	require.NoError(t, err)
	visited := 0
	for v, err := range seq {
		require.NoError(t, err)
		visited++
		// Writes must not block on a reader that is between items.
		require.NoError(t, h.ds.SetVertexProperty(v.ID, nameProp, graph.MustValue(v.ID.String())))
	}
	assert.Equal(t, 10, visited)

	props, err := h.ds.GetVertexProperties(query.AllVerticesQuery(), nameProp)
	require.NoError(t, err)
	got, err := datastore.Collect(props)
	require.NoError(t, err)
	assert.Len(t, got, 10)
}
