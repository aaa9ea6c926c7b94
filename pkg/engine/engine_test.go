package engine

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sanonone/kektorgraph/pkg/datastore"
	"github.com/sanonone/kektorgraph/pkg/graph"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/query"
)

var (
	person = graph.MustIdentifier("person")
	knows  = graph.MustIdentifier("knows")
	name   = graph.MustIdentifier("name")
)

// seed creates alice -knows-> bob with a name on alice.
func seed(t *testing.T, eng *Engine) graph.EdgeKey {
	t.Helper()
	alice, err := eng.CreateVertexFromType(person)
	if err != nil {
		t.Fatalf("CreateVertexFromType failed: %v", err)
	}
	bob, err := eng.CreateVertexFromType(person)
	if err != nil {
		t.Fatalf("CreateVertexFromType failed: %v", err)
	}
	key := graph.NewEdgeKey(alice, knows, bob)
	err = eng.Bulk([]datastore.Mutation{
		datastore.CreateEdge{Key: key},
		datastore.SetVertexProperty{ID: alice, Name: name, Value: graph.MustValue("alice")},
	})
	if err != nil {
		t.Fatalf("Bulk failed: %v", err)
	}
	return key
}

func verify(t *testing.T, eng *Engine, key graph.EdgeKey) {
	t.Helper()
	count, err := eng.VertexCount()
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("Expected 2 vertices, got %d", count)
	}

	seq, err := eng.GetVertices(query.Vertices(key.OutboundID).Outbound(&knows).Endpoint(graph.Inbound))
	if err != nil {
		t.Fatal(err)
	}
	friends, err := datastore.Collect(seq)
	if err != nil {
		t.Fatal(err)
	}
	if len(friends) != 1 || friends[0].ID != key.InboundID {
		t.Errorf("Expected bob as the only friend, got %v", friends)
	}

	val, err := eng.GetVertexProperty(key.OutboundID, name)
	if err != nil {
		t.Fatalf("GetVertexProperty failed: %v", err)
	}
	if !val.Equal(graph.MustValue("alice")) {
		t.Errorf("Expected name alice, got %s", val)
	}
}

func TestEngineReopen(t *testing.T) {
	for _, backend := range []string{BackendMemory, BackendDisk} {
		t.Run(backend, func(t *testing.T) {
			opts := DefaultOptions(t.TempDir())
			opts.Backend = backend
			opts.SnapshotThreshold = 0

			eng, err := Open(opts)
			if err != nil {
				t.Fatal(err)
			}
			key := seed(t, eng)
			verify(t, eng, key)
			if err := eng.Close(); err != nil {
				t.Fatalf("Close failed: %v", err)
			}
			// Close is idempotent.
			if err := eng.Close(); err != nil {
				t.Fatalf("second Close failed: %v", err)
			}

			eng, err = Open(opts)
			if err != nil {
				t.Fatalf("reopen failed: %v", err)
			}
			defer eng.Close()
			verify(t, eng, key)
		})
	}
}

func TestEngineWithoutDataDir(t *testing.T) {
	eng, err := Open(DefaultOptions(""))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	key := seed(t, eng)
	verify(t, eng, key)
	if err := eng.SaveSnapshot(); err != nil {
		t.Errorf("SaveSnapshot on a volatile engine should be a no-op, got %v", err)
	}
}

func TestAutoSnapshot(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	opts.SnapshotThreshold = 1
	opts.SnapshotInterval = time.Nanosecond
	opts.MaintenanceInterval = 10 * time.Millisecond

	eng, err := Open(opts)
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	before := testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("ok"))
	if _, err := eng.CreateVertexFromType(person); err != nil {
		t.Fatal(err)
	}

	snap := filepath.Join(dir, "kektorgraph.snap")
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(snap); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background snapshot was not written")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("ok")); got <= before {
		t.Errorf("Expected snapshots_total to grow past %v, got %v", before, got)
	}
}

func TestOperationMetrics(t *testing.T) {
	eng, err := Open(DefaultOptions(""))
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	ops := metrics.OperationsTotal.WithLabelValues(BackendMemory, "create_vertex")
	errs := metrics.OperationErrorsTotal.WithLabelValues(BackendMemory, "create_vertex")
	opsBefore, errsBefore := testutil.ToFloat64(ops), testutil.ToFloat64(errs)

	v := graph.NewVertex(person)
	if err := eng.CreateVertex(v); err != nil {
		t.Fatal(err)
	}
	if err := eng.CreateVertex(v); !errors.Is(err, graph.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}

	if got := testutil.ToFloat64(ops) - opsBefore; got != 2 {
		t.Errorf("Expected 2 create_vertex operations, got %v", got)
	}
	if got := testutil.ToFloat64(errs) - errsBefore; got != 1 {
		t.Errorf("Expected 1 create_vertex error, got %v", got)
	}
}

func TestOpenRejectsBadOptions(t *testing.T) {
	opts := DefaultOptions(t.TempDir())
	opts.Backend = "cassandra"
	if _, err := Open(opts); err == nil {
		t.Error("Expected an error for an unknown backend")
	}

	opts = DefaultOptions("")
	opts.Backend = BackendDisk
	if _, err := Open(opts); err == nil {
		t.Error("Expected an error for a disk backend without data_dir")
	}
}

func TestLoadOptions(t *testing.T) {
	dir := t.TempDir()

	t.Run("Defaults", func(t *testing.T) {
		opts, err := LoadOptions("")
		if err != nil {
			t.Fatal(err)
		}
		if opts.Backend != BackendMemory || opts.SnapshotThreshold != 1000 {
			t.Errorf("unexpected defaults: %+v", opts)
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		path := filepath.Join(dir, "engine.yaml")
		yml := "backend: disk\ndata_dir: " + dir + "\npage_size: 64\ntimeout: 250ms\nno_sync: true\n"
		if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
			t.Fatal(err)
		}
		opts, err := LoadOptions(path)
		if err != nil {
			t.Fatal(err)
		}
		if opts.Backend != BackendDisk || opts.DataDir != dir || opts.PageSize != 64 || !opts.NoSync {
			t.Errorf("overrides not applied: %+v", opts)
		}
		if opts.Timeout != 250*time.Millisecond {
			t.Errorf("Expected timeout 250ms, got %v", opts.Timeout)
		}
		// Untouched fields keep their defaults.
		if opts.SnapshotInterval != 60*time.Second {
			t.Errorf("Expected default snapshot interval, got %v", opts.SnapshotInterval)
		}
	})

	t.Run("UnknownField", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte("backend: memory\nreplicas: 3\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadOptions(path); err == nil {
			t.Error("Expected strict parsing to reject unknown fields")
		}
	})

	t.Run("Missing", func(t *testing.T) {
		if _, err := LoadOptions(filepath.Join(dir, "nope.yaml")); err == nil {
			t.Error("Expected an error for a missing file")
		}
	})
}
