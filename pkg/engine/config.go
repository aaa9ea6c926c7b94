package engine

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in Options.Backend.
const (
	BackendMemory = "memory"
	BackendDisk   = "disk"
)

// Options configures the Engine: which backend to open, where its files live
// and the automatic snapshot policy of the memory backend.
type Options struct {
	// Backend is "memory" or "disk".
	Backend string `yaml:"backend"`

	// DataDir is where the snapshot or database file is stored. It is
	// created automatically if it does not exist. With the memory backend
	// an empty DataDir means nothing is persisted.
	DataDir string `yaml:"data_dir"`

	// Filename is the file inside DataDir. Defaults to "kektorgraph.snap"
	// for memory and "kektorgraph.db" for disk.
	Filename string `yaml:"filename"`

	// PageSize is the number of items a scan reads per lock or transaction.
	PageSize int `yaml:"page_size"`

	// SnapshotInterval defines how much time must pass since the last save
	// before a new snapshot is triggered (if SnapshotThreshold is also met).
	SnapshotInterval time.Duration `yaml:"snapshot_interval"`

	// SnapshotThreshold defines how many write operations must occur before
	// a new snapshot is triggered (if SnapshotInterval is also met).
	// Set to 0 to disable auto-saving.
	SnapshotThreshold int64 `yaml:"snapshot_threshold"`

	// MaintenanceInterval is how often the snapshot policy is checked.
	MaintenanceInterval time.Duration `yaml:"maintenance_interval"`

	// NoSync disables fsync on commit (disk backend only).
	NoSync bool `yaml:"no_sync"`

	// Timeout bounds the wait for the database file lock (disk backend only).
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultOptions returns a standard configuration suitable for most use cases.
//
// Defaults:
//   - Backend: memory
//   - DataDir: provided path
//   - AutoSave: Every 60s if at least 1000 changes occurred
func DefaultOptions(dataDir string) Options {
	return Options{
		Backend:             BackendMemory,
		DataDir:             dataDir,
		PageSize:            256,
		SnapshotInterval:    60 * time.Second,
		SnapshotThreshold:   1000,
		MaintenanceInterval: 1 * time.Second,
		Timeout:             5 * time.Second,
	}
}

// LoadOptions reads a YAML file over DefaultOptions using strict parsing:
// unknown keys are an error.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions("")

	if path == "" {
		return opts, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return opts, fmt.Errorf("failed to open engine config: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	// An empty file keeps the defaults.
	if err := decoder.Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
		return opts, fmt.Errorf("YAML syntax error in engine config: %w", err)
	}

	return opts, opts.Validate()
}

// Validate checks that the options describe an openable engine.
func (o Options) Validate() error {
	switch o.Backend {
	case BackendMemory:
	case BackendDisk:
		if o.DataDir == "" {
			return fmt.Errorf("invalid engine options: disk backend requires data_dir")
		}
	default:
		return fmt.Errorf("invalid engine options: unknown backend %q", o.Backend)
	}
	if o.PageSize < 0 {
		return fmt.Errorf("invalid engine options: negative page_size %d", o.PageSize)
	}
	return nil
}

func (o Options) filename() string {
	if o.Filename != "" {
		return o.Filename
	}
	if o.Backend == BackendDisk {
		return "kektorgraph.db"
	}
	return "kektorgraph.snap"
}
