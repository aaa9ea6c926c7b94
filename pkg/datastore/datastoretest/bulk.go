package datastoretest

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testBulkProperties(t *testing.T, h *harness) {
	v1 := graph.Vertex{ID: ID(1), Type: userType}
	v2 := graph.Vertex{ID: ID(2), Type: movieType}
	key := graph.NewEdgeKey(v1.ID, likes, v2.ID)

	require.NoError(t, h.ds.Bulk([]datastore.Mutation{
		datastore.CreateVertex{Vertex: v1},
		datastore.CreateVertex{Vertex: v2},
		datastore.CreateEdge{Key: key},
		datastore.SetVertexProperty{ID: v1.ID, Name: nameProp, Value: graph.MustValue("ada")},
		datastore.SetVertexProperty{ID: v2.ID, Name: nameProp, Value: graph.MustValue("metropolis")},
		datastore.SetEdgeProperty{Key: key, Name: weight, Value: graph.MustValue(5)},
	}))

	props, err := h.ds.GetVertexProperties(query.AllVerticesQuery(), nameProp)
	require.NoError(t, err)
	got, err := datastore.Collect(props)
	require.NoError(t, err)
	assert.Equal(t, []graph.VertexProperty{
		{ID: v1.ID, Value: graph.MustValue("ada")},
		{ID: v2.ID, Value: graph.MustValue("metropolis")},
	}, got)

	eprops, err := h.ds.GetEdgeProperties(query.AllEdgesQuery(), weight)
	require.NoError(t, err)
	egot, err := datastore.Collect(eprops)
	require.NoError(t, err)
	assert.Equal(t, []graph.EdgeProperty{{Key: key, Value: graph.MustValue(5)}}, egot)

	require.NoError(t, h.ds.Bulk([]datastore.Mutation{
		datastore.DeleteVertexProperty{ID: v2.ID, Name: nameProp},
		datastore.DeleteEdgeProperty{Key: key, Name: weight},
	}))
	props, err = h.ds.GetVertexProperties(query.AllVerticesQuery(), nameProp)
	require.NoError(t, err)
	got, err = datastore.Collect(props)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = h.ds.GetVertexProperties(query.AllEdgesQuery(), nameProp)
	var qerr *graph.QueryError
	assert.ErrorAs(t, err, &qerr, "vertex properties of an edge query")
}

func testBulkAtomicity(t *testing.T, h *harness) {
	h.vertex(t, 1, userType)

	cases := []struct {
		name  string
		items []datastore.Mutation
		is    error
	}{
		{
			name: "conflicting vertex",
			items: []datastore.Mutation{
				datastore.CreateVertex{Vertex: graph.Vertex{ID: ID(2), Type: userType}},
				datastore.CreateVertex{Vertex: graph.Vertex{ID: ID(1), Type: userType}},
			},
			is: graph.ErrConflict,
		},
		{
			name: "edge to missing vertex",
			items: []datastore.Mutation{
				datastore.CreateVertex{Vertex: graph.Vertex{ID: ID(2), Type: userType}},
				datastore.CreateEdge{Key: graph.NewEdgeKey(ID(1), likes, ID(9))},
			},
			is: graph.ErrConflict,
		},
		{
			name: "property on missing vertex",
			items: []datastore.Mutation{
				datastore.CreateVertex{Vertex: graph.Vertex{ID: ID(2), Type: userType}},
				datastore.SetVertexProperty{ID: ID(9), Name: nameProp, Value: graph.MustValue(1)},
			},
			is: graph.ErrNotFound,
		},
		{
			name: "delete missing edge",
			items: []datastore.Mutation{
				datastore.CreateVertex{Vertex: graph.Vertex{ID: ID(2), Type: userType}},
				datastore.DeleteEdge{Key: graph.NewEdgeKey(ID(1), likes, ID(2))},
			},
			is: graph.ErrNotFound,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := h.ds.Bulk(tc.items)
			require.ErrorIs(t, err, tc.is)
			assert.Equal(t, ids(1), h.vertexIDs(t, query.AllVerticesQuery()))
			assert.Empty(t, h.edges(t, query.AllEdgesQuery()))
		})
	}

	t.Run("invalid item", func(t *testing.T) {
		err := h.ds.Bulk([]datastore.Mutation{
			datastore.CreateVertex{Vertex: graph.Vertex{ID: ID(2), Type: userType}},
			datastore.SetVertexProperty{ID: ID(2), Name: nameProp},
		})
		var verr *graph.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, ids(1), h.vertexIDs(t, query.AllVerticesQuery()))
	})

	t.Run("empty", func(t *testing.T) {
		require.NoError(t, h.ds.Bulk(nil))
	})
}

func testBulkOrdering(t *testing.T, h *harness) {
	v := graph.Vertex{ID: ID(1), Type: userType}
	w := graph.Vertex{ID: ID(2), Type: userType}
	key := graph.NewEdgeKey(v.ID, follows, w.ID)

	// Later items observe earlier ones within the same batch.
	require.NoError(t, h.ds.Bulk([]datastore.Mutation{
		datastore.CreateVertex{Vertex: v},
		datastore.CreateVertex{Vertex: w},
		datastore.CreateEdge{Key: key},
		datastore.SetVertexProperty{ID: v.ID, Name: ageProp, Value: graph.MustValue(1)},
		datastore.SetVertexProperty{ID: v.ID, Name: ageProp, Value: graph.MustValue(2)},
		datastore.DeleteVertex{ID: w.ID},
		datastore.CreateVertex{Vertex: w},
	}))

	assert.Equal(t, ids(1, 2), h.vertexIDs(t, query.AllVerticesQuery()))
	assert.Empty(t, h.edges(t, query.AllEdgesQuery()), "edge died with its endpoint")
	age, err := h.ds.GetVertexProperty(v.ID, ageProp)
	require.NoError(t, err)
	assert.Equal(t, graph.MustValue(2), age)
	assert.Equal(t, ids(1), h.vertexIDs(t,
		query.From(query.VerticesWherePropertyEquals{Name: ageProp, Value: graph.MustValue(2)})))
	assert.Empty(t, h.vertexIDs(t,
		query.From(query.VerticesWherePropertyEquals{Name: ageProp, Value: graph.MustValue(1)})))
}

func testConcurrentCreates(t *testing.T, h *harness) {
	const workers, perWorker = 8, 25

	created := make([][]uuid.UUID, workers)
	var g errgroup.Group
	for w := range workers {
		g.Go(func() error {
			for range perWorker {
				id, err := h.ds.CreateVertexFromType(userType)
				if err != nil {
					return err
				}
				created[w] = append(created[w], id)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[uuid.UUID]bool)
	var all []uuid.UUID
	for _, batch := range created {
		for _, id := range batch {
			require.False(t, seen[id], "duplicate id %s", id)
			seen[id] = true
			all = append(all, id)
		}
	}

	count, err := h.ds.VertexCount()
	require.NoError(t, err)
	assert.EqualValues(t, workers*perWorker, count)
	assert.Len(t, h.vertices(t, query.Vertices(all...)), workers*perWorker)
}

// Pairs of vertices are created and deleted together, so no reader may ever
// observe an odd count.
func testConcurrentReadersSeeAtomicDeletes(t *testing.T, h *harness) {
	const rounds = 50

	var done atomic.Bool
	var g errgroup.Group
	g.Go(func() error {
		defer done.Store(true)
		for i := range uint64(rounds) {
			a, b := ID(2*i+1), ID(2*i+2)
			err := h.ds.Bulk([]datastore.Mutation{
				datastore.CreateVertex{Vertex: graph.Vertex{ID: a, Type: userType}},
				datastore.CreateVertex{Vertex: graph.Vertex{ID: b, Type: userType}},
				datastore.CreateEdge{Key: graph.NewEdgeKey(a, likes, b)},
			})
			if err != nil {
				return err
			}
			if err := h.ds.DeleteVertices(query.Vertices(a, b)); err != nil {
				return err
			}
		}
		return nil
	})
	for range 4 {
		g.Go(func() error {
			for !done.Load() {
				n, err := h.ds.VertexCount()
				if err != nil {
					return err
				}
				if n%2 != 0 {
					return fmt.Errorf("observed %d vertices mid-write", n)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	count, err := h.ds.VertexCount()
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, h.edges(t, query.AllEdgesQuery()))
}
