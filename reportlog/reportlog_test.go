package reportlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NVIDIA/aiscompact/api"
	"github.com/NVIDIA/aiscompact/core"
)

func TestAppendWritesARotatableFile(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, 1<<20)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	reports := api.Reports{{
		Container:   core.ContainerID("c1"),
		StartTime:   time.Now(),
		Duration:    time.Second,
		ObjsVisited: 10,
	}}
	if err := w.Append(reports); err != nil {
		t.Fatalf("Append: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".lz4" {
		t.Fatalf("unexpected log file name %q", entries[0].Name())
	}
}

func TestAppendRotatesPastMaxSize(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, 1) // rotate on every Append after the first write
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	reports := api.Reports{{Container: core.ContainerID("c1"), StartTime: time.Now()}}
	if err := w.Append(reports); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if err := w.Append(reports); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected rotation to produce >=2 files, got %d", len(entries))
	}
}
