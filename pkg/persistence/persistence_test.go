package persistence

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	payloads := [][]byte{[]byte("vertex"), {}, bytes.Repeat([]byte{0x42}, 4096)}
	for i, p := range payloads {
		if err := fw.WriteFrame(byte(i+1), p); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	for i, want := range payloads {
		op, got, err := ReadFrame(&buf)
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if op != byte(i+1) {
			t.Errorf("frame %d: op = %d, want %d", i, op, i+1)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d: payload mismatch", i)
		}
	}

	if _, _, err := ReadFrame(&buf); err != io.EOF {
		t.Fatalf("expected io.EOF at frame boundary, got %v", err)
	}
}

func TestFrameCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFrameWriter(&buf).WriteFrame(1, []byte("payload")); err != nil {
		t.Fatal(err)
	}
	raw := buf.Bytes()

	flipped := bytes.Clone(raw)
	flipped[len(flipped)-1] ^= 0xff
	if _, _, err := ReadFrame(bytes.NewReader(flipped)); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected checksum mismatch, got %v", err)
	}

	badMagic := bytes.Clone(raw)
	badMagic[0] = 0x00
	if _, _, err := ReadFrame(bytes.NewReader(badMagic)); !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("expected invalid magic, got %v", err)
	}

	if _, _, err := ReadFrame(bytes.NewReader(raw[:len(raw)-2])); !errors.Is(err, ErrIncompleteFrame) {
		t.Errorf("expected incomplete frame, got %v", err)
	}
	if _, _, err := ReadFrame(bytes.NewReader(raw[:4])); !errors.Is(err, ErrIncompleteFrame) {
		t.Errorf("expected incomplete header, got %v", err)
	}
}

func TestSnapshotCommitReplacesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "graph.snap")

	for round := byte(1); round <= 2; round++ {
		w, err := CreateSnapshot(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := w.WriteFrame(round, []byte{round}); err != nil {
			t.Fatal(err)
		}
		if err := w.Commit(); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}

	r, err := OpenSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	op, payload, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if op != 2 || !bytes.Equal(payload, []byte{2}) {
		t.Errorf("expected the second snapshot, got op=%d payload=%v", op, payload)
	}
	if _, _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestSnapshotAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.snap")

	w, err := CreateSnapshot(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = w.WriteFrame(1, []byte("partial"))
	w.Abort()

	if _, err := OpenSnapshot(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("aborted snapshot must not exist, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}
