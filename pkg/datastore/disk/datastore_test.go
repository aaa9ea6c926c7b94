package disk

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/datastore/datastoretest"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
)

func openTemp(t *testing.T, opts Options) *Datastore {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "graph.db")
	}
	ds, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })
	return ds
}

func TestConformance(t *testing.T) {
	datastoretest.Run(t, func(t *testing.T, cfg datastoretest.Config) datastore.Datastore {
		return openTemp(t, Options{PageSize: cfg.PageSize, Clock: cfg.Clock, NoSync: true})
	})
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	user := graph.MustIdentifier("user")
	follows := graph.MustIdentifier("follows")
	name := graph.MustIdentifier("name")

	ds, err := Open(Options{Path: path})
	require.NoError(t, err)
	a, err := ds.CreateVertexFromType(user)
	require.NoError(t, err)
	b, err := ds.CreateVertexFromType(user)
	require.NoError(t, err)
	key := graph.NewEdgeKey(a, follows, b)
	require.NoError(t, ds.CreateEdge(key))
	require.NoError(t, ds.SetVertexProperty(b, name, graph.MustValue("bob")))
	require.NoError(t, ds.Close())

	ds, err = Open(Options{Path: path})
	require.NoError(t, err)
	defer ds.Close()

	count, err := ds.VertexCount()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	n, err := ds.EdgeCount(b, &follows, graph.Inbound)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	seq, err := ds.GetVertices(query.From(query.VerticesWherePropertyEquals{Name: name, Value: graph.MustValue("bob")}))
	require.NoError(t, err)
	got, err := datastore.Collect(seq)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, b, got[0].ID)
}

func TestReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	ds, err := Open(Options{Path: path})
	require.NoError(t, err)
	id, err := ds.CreateVertexFromType(graph.MustIdentifier("user"))
	require.NoError(t, err)
	require.NoError(t, ds.Close())

	ro := openTemp(t, Options{Path: path, ReadOnly: true})
	v, ok, err := ro.Vertex(id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, v.ID)

	_, err = ro.CreateVertexFromType(graph.MustIdentifier("user"))
	var serr *graph.StorageError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, bolt.ErrDatabaseReadOnly)
}

func TestLockTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.db")
	openTemp(t, Options{Path: path})

	_, err := Open(Options{Path: path, Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, bolt.ErrTimeout)
}

func TestCorruptRowSurfacesAsStorageError(t *testing.T) {
	ds := openTemp(t, Options{})
	id, err := ds.CreateVertexFromType(graph.MustIdentifier("user"))
	require.NoError(t, err)

	require.NoError(t, ds.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(vertexKey(id), []byte("not a type!"))
	}))

	seq, err := ds.GetVertices(query.AllVerticesQuery())
	require.NoError(t, err)
	_, err = datastore.Collect(seq)
	var serr *graph.StorageError
	require.ErrorAs(t, err, &serr)
	assert.True(t, errors.Is(err, errCorruptRow))
}

func TestClosedDatastore(t *testing.T) {
	ds := openTemp(t, Options{})
	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())

	_, err := ds.VertexCount()
	var serr *graph.StorageError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, bolt.ErrDatabaseNotOpen)
}
