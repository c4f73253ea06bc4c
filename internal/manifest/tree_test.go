package manifest

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/ppiankov/sito/internal/resource"
)

func TestTree_SetGetDelete(t *testing.T) {
	tree := New("/srv/data")
	r := resource.New("https://example.com/a.txt", resource.WithID("a"))

	if err := tree.Set("docs/a.txt", r); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	// Repeated identical calls are idempotent
	if err := tree.Set("docs/a.txt", r); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if tree.Len() != 1 {
		t.Errorf("Len() = %d, want 1", tree.Len())
	}

	got, err := tree.Get("docs/a.txt")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Equal(r) {
		t.Errorf("Get() = %v, want %v", got, r)
	}

	if err := tree.Delete("docs/a.txt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err = tree.Get("docs/a.txt")
	var notFound *KeyNotFoundError
	if !errors.As(err, &notFound) || notFound.Key != "docs/a.txt" {
		t.Fatalf("Get() after Delete error = %v, want KeyNotFoundError", err)
	}
	if !errors.Is(tree.Delete("docs/a.txt"), ErrKeyNotFound) {
		t.Error("expected Delete of missing key to fail with ErrKeyNotFound")
	}
}

func TestTree_Replace(t *testing.T) {
	tree := New("base")
	_ = tree.Set("a", resource.New("one"))
	_ = tree.Set("a", resource.New("two"))

	got, _ := tree.Get("a")
	if got.URI() != "two" {
		t.Errorf("Get() = %q, want two", got.URI())
	}
}

func TestTree_KeyValidation(t *testing.T) {
	tree := New("/srv")
	r := resource.New("x")

	for _, key := range []string{"", "/abs/a.txt", ".", "..", "../up", "a/../../up"} {
		t.Run(key, func(t *testing.T) {
			if err := tree.Set(key, r); !errors.Is(err, ErrInvalidKey) {
				t.Errorf("Set(%q) error = %v, want ErrInvalidKey", key, err)
			}
		})
	}

	if err := tree.Set("a/./b/", r); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !tree.Has("a/b") {
		t.Error("expected key to be stored in clean form")
	}
	if _, err := tree.Get("a/b/."); err != nil {
		t.Errorf("Get() with unclean key error = %v", err)
	}
	if tree.Has("/a/b") {
		t.Error("expected absolute key lookup to miss")
	}

	for _, key := range []string{"/etc/passwd", "../up", ""} {
		_, getErr := tree.Get(key)
		delErr := tree.Delete(key)
		_, locErr := tree.Locate(key)
		for name, err := range map[string]error{"Get": getErr, "Delete": delErr, "Locate": locErr} {
			if !errors.Is(err, ErrKeyNotFound) || !errors.Is(err, ErrInvalidKey) {
				t.Errorf("%s(%q) error = %v, want ErrKeyNotFound and ErrInvalidKey", name, key, err)
			}
		}
	}
}

func TestTree_DecoupledFromBase(t *testing.T) {
	tree := New("https://example.com/root/")
	unrelated := resource.New("/somewhere/else.txt")

	if err := tree.Set("x.txt", unrelated); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, _ := tree.Get("x.txt")
	if got.URI() != "/somewhere/else.txt" {
		t.Errorf("inserted resource was rewritten: %q", got.URI())
	}
}

func TestTree_CountFiles(t *testing.T) {
	tree := New("/srv")
	files := []string{"a.txt", "docs/b.txt", "docs/c.txt"}
	dirs := []string{"docs", "empty"}

	for _, k := range files {
		_ = tree.Set(k, resource.New(k, resource.WithArtifact(resource.ArtifactFile)))
	}
	for _, k := range dirs {
		_ = tree.Set(k, resource.New(k, resource.WithArtifact(resource.ArtifactDirectory)))
	}

	if got := tree.CountFiles(); got != len(files) {
		t.Errorf("CountFiles() = %d, want %d", got, len(files))
	}
	if got := tree.Len(); got != len(files)+len(dirs) {
		t.Errorf("Len() = %d, want %d", got, len(files)+len(dirs))
	}
}

func TestTree_RootKind(t *testing.T) {
	tests := []struct {
		base string
		want resource.StructuralKind
	}{
		{"/srv", resource.StructAbsolute},
		{"srv", resource.StructRelative},
		{"https://example.com/", resource.StructFullyQualified},
	}
	for _, tt := range tests {
		if got := New(tt.base).RootKind(); got != tt.want {
			t.Errorf("RootKind(%q) = %s, want %s", tt.base, got, tt.want)
		}
	}
}

func TestTree_Locate(t *testing.T) {
	tree := New("file:///srv/data")
	_ = tree.Set("docs/a.txt", resource.New("a"))

	got, err := tree.Locate("docs/a.txt")
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if want := filepath.Join("/srv/data", "docs", "a.txt"); got != want {
		t.Errorf("Locate() = %q, want %q", got, want)
	}

	if _, err := tree.Locate("missing"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Locate(missing) error = %v", err)
	}

	remote := New("https://example.com/root/")
	_ = remote.Set("a", resource.New("a"))
	if _, err := remote.Locate("a"); !errors.Is(err, resource.ErrUnrooted) {
		t.Errorf("Locate() on remote base error = %v, want ErrUnrooted", err)
	}
}

func TestTree_Iteration(t *testing.T) {
	tree := New("/srv")
	for _, k := range []string{"c", "a", "b"} {
		_ = tree.Set(k, resource.New("/srv/"+k))
	}

	keys := slices.Collect(tree.Keys())
	if !slices.Equal(keys, []string{"a", "b", "c"}) {
		t.Errorf("Keys() = %v", keys)
	}

	var uris []string
	for r := range tree.Values() {
		uris = append(uris, r.URI())
	}
	if !slices.Equal(uris, []string{"/srv/a", "/srv/b", "/srv/c"}) {
		t.Errorf("Values() = %v", uris)
	}

	// Restartable: a second pass sees the same state
	if again := slices.Collect(tree.Keys()); !slices.Equal(again, keys) {
		t.Errorf("second Keys() pass = %v", again)
	}

	// Early break
	n := 0
	for range tree.All() {
		n++
		break
	}
	if n != 1 {
		t.Errorf("expected early break after 1 item, got %d", n)
	}
}

func TestTree_IterationDuringMutation(t *testing.T) {
	tree := New("/srv")
	for _, k := range []string{"a", "b", "c"} {
		_ = tree.Set(k, resource.New(k))
	}

	var seen []string
	for k, r := range tree.All() {
		seen = append(seen, k+"="+r.URI())
		if k == "a" {
			_ = tree.Delete("b")                  // skipped
			_ = tree.Set("aa", resource.New("aa")) // not visited
			_ = tree.Set("c", resource.New("c2"))  // observed
		}
	}

	want := []string{"a=a", "c=c2"}
	if !slices.Equal(seen, want) {
		t.Errorf("iteration during mutation = %v, want %v", seen, want)
	}

	// Restarting reflects the new state
	if keys := slices.Collect(tree.Keys()); !slices.Equal(keys, []string{"a", "aa", "c"}) {
		t.Errorf("Keys() after mutation = %v", keys)
	}
}
