package manifest

import (
	"path"

	"github.com/disiqueira/gotree/v3"
	"github.com/ppiankov/sito/internal/resource"
)

// visualTree lays out slash-separated keys as nested gotree nodes
type visualTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func newVisualTree(rootLabel string) visualTree {
	return visualTree{tree: gotree.New(rootLabel), dirs: make(map[string]gotree.Tree)}
}

func (v visualTree) dir(dirPath string) gotree.Tree {
	if dirPath == "." {
		return v.tree
	}
	d, ok := v.dirs[dirPath]
	if !ok {
		parent := v.dir(path.Dir(dirPath))
		d = parent.Add(path.Base(dirPath) + "/")
		v.dirs[dirPath] = d
	}
	return d
}

// Render draws the tree keys below the base, one node per path segment.
// Non-localized entries are suffixed with their location kind.
func Render(t *Tree) string {
	v := newVisualTree(t.Base().URI())

	for key, r := range t.All() {
		if r.Artifact() == resource.ArtifactDirectory {
			v.dir(key)
			continue
		}
		label := path.Base(key)
		if !r.IsLocalized() {
			label += " (" + r.LocationKind().String() + ")"
		}
		v.dir(path.Dir(key)).Add(label)
	}

	return v.tree.Print()
}
