package datastoretest

import (
	"slices"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVertexProperties(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)
	value := graph.MustValue(map[string]any{"first": "Ada", "tags": []any{1, "x", true}})

	require.NoError(t, h.ds.SetVertexProperty(ID(1), nameProp, value))
	got, err := h.ds.GetVertexProperty(ID(1), nameProp)
	require.NoError(t, err)
	assert.Equal(t, value, got)

	replaced := graph.MustValue("Grace")
	require.NoError(t, h.ds.SetVertexProperty(ID(1), nameProp, replaced))
	got, err = h.ds.GetVertexProperty(ID(1), nameProp)
	require.NoError(t, err)
	assert.Equal(t, replaced, got)

	_, err = h.ds.GetVertexProperty(ID(1), ageProp)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	_, err = h.ds.GetVertexProperty(ID(2), nameProp)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	assert.ErrorIs(t, h.ds.SetVertexProperty(ID(2), nameProp, replaced), graph.ErrNotFound)

	require.NoError(t, h.ds.DeleteVertexProperty(ID(1), nameProp))
	_, err = h.ds.GetVertexProperty(ID(1), nameProp)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	assert.ErrorIs(t, h.ds.DeleteVertexProperty(ID(1), nameProp), graph.ErrNotFound)

	// Deleting the owner makes the property unreachable.
	require.NoError(t, h.ds.SetVertexProperty(ID(1), ageProp, graph.MustValue(36)))
	require.NoError(t, h.ds.DeleteVertices(query.Vertices(ID(1))))
	_, err = h.ds.GetVertexProperty(ID(1), ageProp)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	// Re-creating the vertex does not resurrect old properties.
	h.vertex(t, 1, userType)
	_, err = h.ds.GetVertexProperty(ID(1), ageProp)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func testEdgeProperties(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)
	h.vertex(t, 2, movieType)
	key := h.edge(t, 1, likes, 2)
	missing := graph.NewEdgeKey(ID(2), likes, ID(1))

	require.NoError(t, h.ds.SetEdgeProperty(key, weight, graph.MustValue(0.25)))
	got, err := h.ds.GetEdgeProperty(key, weight)
	require.NoError(t, err)
	assert.Equal(t, graph.MustValue(0.25), got)

	assert.ErrorIs(t, h.ds.SetEdgeProperty(missing, weight, got), graph.ErrNotFound)
	_, err = h.ds.GetEdgeProperty(missing, weight)
	assert.ErrorIs(t, err, graph.ErrNotFound)

	require.NoError(t, h.ds.DeleteEdgeProperty(key, weight))
	_, err = h.ds.GetEdgeProperty(key, weight)
	assert.ErrorIs(t, err, graph.ErrNotFound)
	assert.ErrorIs(t, h.ds.DeleteEdgeProperty(key, weight), graph.ErrNotFound)

	require.NoError(t, h.ds.SetEdgeProperty(key, weight, graph.MustValue(1)))
	require.NoError(t, h.ds.DeleteVertices(query.Vertices(ID(2))))
	_, err = h.ds.GetEdgeProperty(key, weight)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func testPropertyFilters(t *testing.T, h *harness) {
	for n := uint64(1); n <= 6; n++ {
		h.vertex(t, n, userType)
	}
	for n := uint64(2); n <= 6; n++ {
		h.edge(t, 1, likes, n)
	}
	require.NoError(t, h.ds.SetVertexProperty(ID(5), ageProp, graph.MustValue(30)))
	require.NoError(t, h.ds.SetVertexProperty(ID(3), ageProp, graph.MustValue(30)))
	require.NoError(t, h.ds.SetVertexProperty(ID(4), ageProp, graph.MustValue(40)))
	require.NoError(t, h.ds.SetEdgeProperty(graph.NewEdgeKey(ID(1), likes, ID(6)), weight, graph.MustValue("heavy")))
	require.NoError(t, h.ds.SetEdgeProperty(graph.NewEdgeKey(ID(1), likes, ID(2)), weight, graph.MustValue("light")))

	friends := query.Vertices(ID(1)).Outbound(&likes).Endpoint(graph.Inbound)
	assert.Equal(t, ids(3, 4, 5), h.vertexIDs(t, friends.WithProperty(ageProp)))
	assert.Equal(t, ids(3, 5), h.vertexIDs(t, friends.WherePropertyEquals(ageProp, graph.MustValue(30))))
	assert.Empty(t, h.vertexIDs(t, friends.WherePropertyEquals(ageProp, graph.MustValue("30"))))

	edges := query.Vertices(ID(1)).Outbound(nil)
	assert.Equal(t, []graph.EdgeKey{
		graph.NewEdgeKey(ID(1), likes, ID(2)),
		graph.NewEdgeKey(ID(1), likes, ID(6)),
	}, h.edgeKeys(t, edges.WithProperty(weight)))
	assert.Equal(t, ids(6), h.vertexIDs(t,
		edges.WherePropertyEquals(weight, graph.MustValue("heavy")).Endpoint(graph.Inbound)))

	props, err := h.ds.GetVertexProperties(friends, ageProp)
	require.NoError(t, err)
	got, err := datastore.Collect(props)
	require.NoError(t, err)
	assert.Equal(t, []graph.VertexProperty{
		{ID: ID(3), Value: graph.MustValue(30)},
		{ID: ID(4), Value: graph.MustValue(40)},
		{ID: ID(5), Value: graph.MustValue(30)},
	}, got)

	eprops, err := h.ds.GetEdgeProperties(edges, weight)
	require.NoError(t, err)
	egot, err := datastore.Collect(eprops)
	require.NoError(t, err)
	require.Len(t, egot, 2)
	assert.Equal(t, graph.MustValue("light"), egot[0].Value)
	assert.Equal(t, graph.MustValue("heavy"), egot[1].Value)
}

func testPropertyIndexStarts(t *testing.T, h *harness) {
	for n := uint64(1); n <= 8; n++ {
		h.vertex(t, n, userType)
	}
	for _, n := range []uint64{7, 2, 5, 4} {
		require.NoError(t, h.ds.SetVertexProperty(ID(n), ageProp, graph.MustValue(n%2)))
	}
	require.NoError(t, h.ds.SetVertexProperty(ID(1), nameProp, graph.MustValue("x")))

	withAge := h.vertexIDs(t, query.From(query.VerticesWithProperty{Name: ageProp}))
	slices.SortFunc(withAge, graph.CompareIDs)
	assert.Equal(t, ids(2, 4, 5, 7), withAge)

	odd := query.From(query.VerticesWherePropertyEquals{Name: ageProp, Value: graph.MustValue(1)})
	assert.Equal(t, ids(5, 7), h.vertexIDs(t, odd), "equality starts ascend by id")
	even := query.From(query.VerticesWherePropertyEquals{Name: ageProp, Value: graph.MustValue(0)})
	assert.Equal(t, ids(2, 4), h.vertexIDs(t, even))

	// Overwriting moves the owner to the new value.
	require.NoError(t, h.ds.SetVertexProperty(ID(7), ageProp, graph.MustValue(0)))
	assert.Equal(t, ids(5), h.vertexIDs(t, odd))
	assert.Equal(t, ids(2, 4, 7), h.vertexIDs(t, even))

	require.NoError(t, h.ds.DeleteVertexProperty(ID(2), ageProp))
	assert.Equal(t, ids(4, 7), h.vertexIDs(t, even))

	assert.Empty(t, h.vertexIDs(t, query.From(query.VerticesWithProperty{Name: weight})))

	// Pipes compose on top of index starts.
	h.edge(t, 4, likes, 1)
	assert.Equal(t, ids(1), h.vertexIDs(t, even.Outbound(&likes).Endpoint(graph.Inbound)))
}

func testEdgePropertyIndexStarts(t *testing.T, h *harness) {
	for n := uint64(1); n <= 4; n++ {
		h.vertex(t, n, userType)
	}
	a := h.edge(t, 1, likes, 2)
	b := h.edge(t, 3, likes, 4)
	c := h.edge(t, 2, follows, 3)
	require.NoError(t, h.ds.SetEdgeProperty(b, weight, graph.MustValue(1)))
	require.NoError(t, h.ds.SetEdgeProperty(a, weight, graph.MustValue(1)))
	require.NoError(t, h.ds.SetEdgeProperty(c, weight, graph.MustValue(2)))

	heavy := query.From(query.EdgesWherePropertyEquals{Name: weight, Value: graph.MustValue(1)})
	assert.Equal(t, []graph.EdgeKey{a, b}, h.edgeKeys(t, heavy))

	all := h.edgeKeys(t, query.From(query.EdgesWithProperty{Name: weight}))
	slices.SortFunc(all, graph.EdgeKey.Compare)
	assert.Equal(t, []graph.EdgeKey{a, c, b}, all)

	assert.Equal(t, ids(1, 3), h.vertexIDs(t, heavy.Endpoint(graph.Outbound)))
}

func testLargeValueIndex(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)
	h.vertex(t, 2, userType)
	h.vertex(t, 3, userType)

	long := graph.MustValue(strings.Repeat("graph", 400))
	other := graph.MustValue(strings.Repeat("graph", 400) + "!")
	require.NoError(t, h.ds.SetVertexProperty(ID(2), nameProp, long))
	require.NoError(t, h.ds.SetVertexProperty(ID(1), nameProp, long))
	require.NoError(t, h.ds.SetVertexProperty(ID(3), nameProp, other))

	eq := func(v graph.Value) []uuid.UUID {
		return h.vertexIDs(t, query.From(query.VerticesWherePropertyEquals{Name: nameProp, Value: v}))
	}
	assert.Equal(t, ids(1, 2), eq(long))
	assert.Equal(t, ids(3), eq(other))

	require.NoError(t, h.ds.DeleteVertices(query.Vertices(ID(1))))
	assert.Equal(t, ids(2), eq(long))
}

func testMalformedValues(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)
	h.vertex(t, 2, userType)
	key := h.edge(t, 1, likes, 2)

	for _, raw := range []graph.Value{
		graph.Value("x\x00"),
		graph.Value("not json\x00x"),
		graph.Value(`{"b":1,"a":2}`),
	} {
		var verr *graph.ValidationError
		require.ErrorAs(t, h.ds.SetVertexProperty(ID(1), nameProp, raw), &verr, "%q", raw)
		require.ErrorAs(t, h.ds.SetEdgeProperty(key, weight, raw), &verr, "%q", raw)
		require.ErrorAs(t, h.ds.Bulk([]datastore.Mutation{
			datastore.SetVertexProperty{ID: ID(2), Name: nameProp, Value: raw},
		}), &verr, "%q", raw)
	}

	// Nothing reached the indexes, so presence scans stay readable.
	assert.Empty(t, h.vertexIDs(t, query.From(query.VerticesWithProperty{Name: nameProp})))
	assert.Empty(t, h.edgeKeys(t, query.From(query.EdgesWithProperty{Name: weight})))

	// The canonical spelling of the same object is accepted and matches.
	require.NoError(t, h.ds.SetVertexProperty(ID(1), nameProp, graph.MustValue(map[string]int{"b": 1, "a": 2})))
	assert.Equal(t, ids(1), h.vertexIDs(t,
		query.From(query.VerticesWherePropertyEquals{Name: nameProp, Value: graph.Value(`{"a":2,"b":1}`)})))
}
