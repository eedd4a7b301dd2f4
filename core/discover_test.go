package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDiscoverBuildsSortedDirectory(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"c3.container", "c1.container", "c2.container"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "ignored.txt"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	isContainer := func(path string) bool { return strings.HasSuffix(path, ".container") }
	dir, err := Discover(root, isContainer, func(id ContainerID, path string) WorkerHandle {
		return stubHandle{id: id}
	})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	ids := dir.AllIDs()
	want := []ContainerID{"c1.container", "c2.container", "c3.container"}
	if len(ids) != len(want) {
		t.Fatalf("got %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v, want %v", ids, want)
		}
	}
}
