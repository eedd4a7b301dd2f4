package core

import (
	"path/filepath"

	"github.com/NVIDIA/aiscompact/cmn/nlog"
	"github.com/karrick/godirwalk"
)

// HandleFactory constructs a WorkerHandle for a container discovered on
// disk at the given path. Supplied by the process wiring the controller up
// (cmd/compactctl), since the worker/object-server implementation is an
// external collaborator (spec.md §1, §6).
type HandleFactory func(id ContainerID, path string) WorkerHandle

// Discover walks root with github.com/karrick/godirwalk (the same library
// the teacher's fs/walkbck.go uses to enumerate bucket content trees) to
// find container files, builds an ordered, deterministic id list from the
// walk (sorted by container id, i.e. the file's base name, since
// godirwalk's raw directory order is
// filesystem-dependent and the Directory requires stable iteration order
// per spec.md §4.A), and constructs the Directory's handles via factory.
//
// Discover is the Container Bootstrap component (F) added in SPEC_FULL.md;
// it runs once at process start, never mid-run.
func Discover(root string, isContainer func(path string) bool, factory HandleFactory) (*Directory, error) {
	var ids []ContainerID
	paths := map[ContainerID]string{}

	err := godirwalk.Walk(root, &godirwalk.Options{
		Unsorted: true, // we sort ourselves below for a stable, documented order
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() || !isContainer(path) {
				return nil
			}
			id := ContainerID(filepath.Base(path))
			ids = append(ids, id)
			paths[id] = path
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	ids = sortedIDs(ids)
	handles := make([]WorkerHandle, 0, len(ids))
	for _, id := range ids {
		handles = append(handles, factory(id, paths[id]))
	}
	nlog.Infof("discovered %d container(s) under %q", len(handles), root)
	return NewDirectory(handles), nil
}
