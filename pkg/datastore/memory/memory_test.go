package memory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/datastore/datastoretest"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	datastoretest.Run(t, func(t *testing.T, cfg datastoretest.Config) datastore.Datastore {
		ds, err := Open(Options{PageSize: cfg.PageSize, Clock: cfg.Clock})
		require.NoError(t, err)
		t.Cleanup(func() { ds.Close() })
		return ds
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")
	name := graph.MustIdentifier("name")
	likes := graph.MustIdentifier("likes")
	user := graph.MustIdentifier("user")

	ds, err := Open(Options{Path: path})
	require.NoError(t, err)

	a, err := ds.CreateVertexFromType(user)
	require.NoError(t, err)
	b, err := ds.CreateVertexFromType(user)
	require.NoError(t, err)
	key := graph.NewEdgeKey(a, likes, b)
	require.NoError(t, ds.CreateEdge(key))
	require.NoError(t, ds.SetVertexProperty(a, name, graph.MustValue("ada")))
	require.NoError(t, ds.SetEdgeProperty(key, name, graph.MustValue([]int{1, 2})))

	before, err := datastore.Collect(must(ds.GetEdges(query.Edges(key))))
	require.NoError(t, err)
	require.Len(t, before, 1)

	assert.EqualValues(t, 5, ds.Dirty())
	require.NoError(t, ds.Close())
	assert.Zero(t, ds.Dirty())

	reopened, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.VertexCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	after, err := datastore.Collect(must(reopened.GetEdges(query.Vertices(b).Inbound(&likes))))
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, key, after[0].Key)
	assert.True(t, before[0].Timestamp.Equal(after[0].Timestamp))

	val, err := reopened.GetEdgeProperty(key, name)
	require.NoError(t, err)
	assert.Equal(t, graph.MustValue([]int{1, 2}), val)

	// The value index is rebuilt from the property records.
	owners, err := datastore.Collect(must(reopened.GetVertices(
		query.From(query.VerticesWherePropertyEquals{Name: name, Value: graph.MustValue("ada")}))))
	require.NoError(t, err)
	require.Len(t, owners, 1)
	assert.Equal(t, a, owners[0].ID)
}

func TestSyncWithoutPathIsNoop(t *testing.T) {
	ds := New()
	_, err := ds.CreateVertexFromType(graph.MustIdentifier("user"))
	require.NoError(t, err)
	require.NoError(t, ds.Sync())
	assert.EqualValues(t, 1, ds.Dirty())
}

func TestFailedWritesAreNotDirty(t *testing.T) {
	ds := New()
	err := ds.SetVertexProperty(datastoretest.ID(1), graph.MustIdentifier("name"), graph.MustValue(1))
	require.ErrorIs(t, err, graph.ErrNotFound)
	require.NoError(t, ds.DeleteVertices(query.AllVerticesQuery()))
	assert.Zero(t, ds.Dirty())
}

func TestCorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")
	ds, err := Open(Options{Path: path})
	require.NoError(t, err)
	_, err = ds.CreateVertexFromType(graph.MustIdentifier("user"))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = Open(Options{Path: path})
	var serr *graph.StorageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "load snapshot", serr.Op)
}

func TestCloseIsIdempotent(t *testing.T) {
	ds, err := Open(Options{Path: filepath.Join(t.TempDir(), "graph.snap")})
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())
}

func TestClosedDatastore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")
	user := graph.MustIdentifier("user")
	ds, err := Open(Options{Path: path})
	require.NoError(t, err)
	kept, err := ds.CreateVertexFromType(user)
	require.NoError(t, err)
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())

	var serr *graph.StorageError
	err = ds.CreateVertex(graph.NewVertex(user))
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrClosed)

	_, err = ds.VertexCount()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, ds.DeleteVertices(query.AllVerticesQuery()), ErrClosed)
	assert.ErrorIs(t, ds.Sync(), ErrClosed)
	_, err = ds.GetVertexProperty(kept, graph.MustIdentifier("name"))
	assert.ErrorIs(t, err, ErrClosed)

	seq, err := ds.GetVertices(query.AllVerticesQuery())
	require.NoError(t, err)
	_, err = datastore.Collect(seq)
	assert.ErrorIs(t, err, ErrClosed)

	// The rejected write never reaches the snapshot.
	reopened, err := Open(Options{Path: path})
	require.NoError(t, err)
	defer reopened.Close()
	count, err := reopened.VertexCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
