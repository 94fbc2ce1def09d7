package mapsource

import (
	"cmp"
	"fmt"
	"iter"
	"maps"
	"slices"
	"strings"
)

// Registry is the immutable set of map sources known to the service.
type Registry struct {
	byID   map[string]*MapSource
	sorted []*MapSource
}

func NewRegistry(sources ...*MapSource) (*Registry, error) {
	r := &Registry{byID: make(map[string]*MapSource, len(sources))}
	for _, ms := range sources {
		if _, dup := r.byID[ms.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMapSource, ms.ID)
		}
		r.byID[ms.ID] = ms
		r.sorted = append(r.sorted, ms)
	}
	slices.SortFunc(r.sorted, byID)
	return r, nil
}

func (r *Registry) Resolve(id string) (*MapSource, error) {
	if ms, ok := r.byID[id]; ok {
		return ms, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMapSource, id)
}

// All returns the map sources ordered by id.
func (r *Registry) All() []*MapSource { return slices.Clone(r.sorted) }

func (r *Registry) Len() int { return len(r.sorted) }

func (r *Registry) Walk() iter.Seq[Folder] { return Walk(r.sorted) }

// Folder is one step of Walk: the maps placed directly at Path and the names
// of its immediate sub folders.
type Folder struct {
	Path    string
	Folders []string
	Maps    []*MapSource
}

// Walk traverses the folder tree of sources depth first, like a directory
// walk. The root has Path "", nested folders "/europe", "/europe/france".
// Folder names are sorted, maps within a folder are sorted by id. The
// sequence can be ranged over any number of times.
func Walk(sources []*MapSource) iter.Seq[Folder] {
	entries := make([]walkEntry, 0, len(sources))
	for _, ms := range sources {
		entries = append(entries, walkEntry{ms: ms, rest: folderSegments(ms.Folder)})
	}
	return func(yield func(Folder) bool) {
		walk(entries, "", yield)
	}
}

type walkEntry struct {
	ms   *MapSource
	rest []string
}

func walk(entries []walkEntry, root string, yield func(Folder) bool) bool {
	groups := map[string][]walkEntry{}
	var here []*MapSource
	for _, e := range entries {
		if len(e.rest) == 0 {
			here = append(here, e.ms)
			continue
		}
		groups[e.rest[0]] = append(groups[e.rest[0]], walkEntry{ms: e.ms, rest: e.rest[1:]})
	}
	folders := slices.Sorted(maps.Keys(groups))
	slices.SortFunc(here, byID)

	if !yield(Folder{Path: root, Folders: folders, Maps: here}) {
		return false
	}
	for _, f := range folders {
		if !walk(groups[f], root+FolderSep+f, yield) {
			return false
		}
	}
	return true
}

func folderSegments(folder string) []string {
	var out []string
	for seg := range strings.SplitSeq(folder, FolderSep) {
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func byID(a, b *MapSource) int { return cmp.Compare(a.ID, b.ID) }
