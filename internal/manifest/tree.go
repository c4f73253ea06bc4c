// Package manifest tracks collections of resources rooted at a common base
// and addressed by relative paths.
package manifest

import (
	"fmt"
	"iter"
	"maps"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
)

// Tree is a keyed collection of resources rooted at a base location.
//
// Keys are clean, slash-separated relative paths. Inserted resources are not
// checked against the base; a tree may index resources living anywhere.
//
// A Tree has no internal locking. Concurrent use needs one external mutex
// around the whole tree.
type Tree struct {
	base    resource.Resource
	entries map[string]resource.Resource
}

// New creates an empty tree rooted at the given URI or path
func New(base string) *Tree {
	return NewWithBase(resource.New(base))
}

// NewWithBase creates an empty tree rooted at an existing resource
func NewWithBase(base resource.Resource) *Tree {
	return &Tree{
		base:    base,
		entries: make(map[string]resource.Resource),
	}
}

// Base returns the root resource
func (t *Tree) Base() resource.Resource {
	return t.base
}

// RootKind returns how the base itself is rooted
func (t *Tree) RootKind() resource.StructuralKind {
	return t.base.StructuralKind()
}

// Get returns the resource stored under key
func (t *Tree) Get(key string) (resource.Resource, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return resource.Resource{}, &KeyNotFoundError{Key: key, Err: err}
	}
	r, ok := t.entries[k]
	if !ok {
		return resource.Resource{}, &KeyNotFoundError{Key: key}
	}
	return r, nil
}

// Has reports whether key is present
func (t *Tree) Has(key string) bool {
	k, err := normalizeKey(key)
	if err != nil {
		return false
	}
	_, ok := t.entries[k]
	return ok
}

// Set inserts or replaces the resource under key
func (t *Tree) Set(key string, r resource.Resource) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	t.entries[k] = r
	return nil
}

// Delete removes the resource under key
func (t *Tree) Delete(key string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return &KeyNotFoundError{Key: key, Err: err}
	}
	if _, ok := t.entries[k]; !ok {
		return &KeyNotFoundError{Key: key}
	}
	delete(t.entries, k)
	return nil
}

// Len returns the number of entries, directories included
func (t *Tree) Len() int {
	return len(t.entries)
}

// CountFiles returns the number of entries that are not directories
func (t *Tree) CountFiles() int {
	n := 0
	for _, r := range t.entries {
		if r.Artifact() != resource.ArtifactDirectory {
			n++
		}
	}
	return n
}

// Locate joins an entry key with the base and returns the local path.
// It fails with *resource.UnrootedResourceError when the base is not localized.
func (t *Tree) Locate(key string) (string, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return "", &KeyNotFoundError{Key: key, Err: err}
	}
	if _, ok := t.entries[k]; !ok {
		return "", &KeyNotFoundError{Key: key}
	}
	root, err := t.base.LocalPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, filepath.FromSlash(k)), nil
}

// Keys iterates over the keys in lexical order.
//
// Each iteration captures the key set when it starts. Keys deleted while
// iterating are skipped and keys added while iterating are not visited.
func (t *Tree) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for k := range t.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Values iterates over the resources in key order, with the same
// semantics as Keys
func (t *Tree) Values() iter.Seq[resource.Resource] {
	return func(yield func(resource.Resource) bool) {
		for _, r := range t.All() {
			if !yield(r) {
				return
			}
		}
	}
}

// All iterates over key/resource pairs in key order. Values are read when
// they are reached, so a replacement made during iteration is observed.
func (t *Tree) All() iter.Seq2[string, resource.Resource] {
	return func(yield func(string, resource.Resource) bool) {
		keys := slices.Sorted(maps.Keys(t.entries))
		for _, k := range keys {
			r, ok := t.entries[k]
			if !ok {
				continue
			}
			if !yield(k, r) {
				return
			}
		}
	}
}

// normalizeKey cleans a key and rejects anything that is not a relative
// path staying below the root
func normalizeKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || filepath.IsAbs(key) {
		return "", fmt.Errorf("%w: absolute path %s", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s escapes the root", ErrInvalidKey, key)
	}
	return clean, nil
}
