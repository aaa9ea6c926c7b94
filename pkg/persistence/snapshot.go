package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SnapshotWriter writes a snapshot to a temporary file next to its final
// path. Commit syncs it and renames it over the previous snapshot, so a
// crash while writing never damages the last good snapshot.
type SnapshotWriter struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	frames *FrameWriter
	done   bool
}

// CreateSnapshot starts a new snapshot for path.
func CreateSnapshot(path string) (*SnapshotWriter, error) {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file: %w", err)
	}
	buf := bufio.NewWriterSize(file, 64<<10)
	return &SnapshotWriter{
		path:   path,
		file:   file,
		buf:    buf,
		frames: NewFrameWriter(buf),
	}, nil
}

// WriteFrame appends one frame to the snapshot.
func (s *SnapshotWriter) WriteFrame(op byte, payload []byte) error {
	return s.frames.WriteFrame(op, payload)
}

// Commit flushes, fsyncs and atomically replaces the snapshot at path.
func (s *SnapshotWriter) Commit() error {
	if s.done {
		return errors.New("snapshot already finished")
	}
	s.done = true

	if err := s.buf.Flush(); err != nil {
		s.discard()
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		s.discard()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := s.file.Close(); err != nil {
		_ = os.Remove(s.file.Name())
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err := os.Rename(s.file.Name(), s.path); err != nil {
		_ = os.Remove(s.file.Name())
		return fmt.Errorf("failed to replace snapshot file: %w", err)
	}
	return nil
}

// Abort removes the temporary file. It is a no-op after Commit.
func (s *SnapshotWriter) Abort() {
	if s.done {
		return
	}
	s.done = true
	s.discard()
}

func (s *SnapshotWriter) discard() {
	_ = s.file.Close()
	_ = os.Remove(s.file.Name())
}

// SnapshotReader reads the frames of a snapshot file in order.
type SnapshotReader struct {
	file *os.File
	r    *bufio.Reader
}

// OpenSnapshot opens the snapshot at path. It returns an error satisfying
// errors.Is(err, os.ErrNotExist) if there is none.
func OpenSnapshot(path string) (*SnapshotReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &SnapshotReader{file: file, r: bufio.NewReaderSize(file, 64<<10)}, nil
}

// Next returns the next frame, or io.EOF after the last one.
func (s *SnapshotReader) Next() (byte, []byte, error) {
	op, payload, err := ReadFrame(s.r)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, nil, fmt.Errorf("snapshot %s: %w", s.file.Name(), err)
	}
	return op, payload, err
}

// Close closes the underlying file.
func (s *SnapshotReader) Close() error {
	return s.file.Close()
}
