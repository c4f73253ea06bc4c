package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/sito/internal/resource"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk YAML form of a Tree
type Document struct {
	Base    string                   `yaml:"base"`
	Kind    resource.StructuralKind  `yaml:"kind,omitempty"` // Informational, derived from base on load
	Entries map[string]EntryDocument `yaml:"entries"`
}

// EntryDocument is the YAML form of a single resource
type EntryDocument struct {
	URI        string                  `yaml:"uri"`
	ID         string                  `yaml:"id,omitempty"`
	Type       string                  `yaml:"type,omitempty"` // Mimetype
	Artifact   resource.ArtifactKind   `yaml:"artifact,omitempty"`
	Attrs      map[string]string       `yaml:"attrs,omitempty"`
	Meta       string                  `yaml:"meta,omitempty"`
	Structural resource.StructuralKind `yaml:"structural,omitempty"` // Informational
	Location   resource.LocationKind   `yaml:"location,omitempty"`   // Only archive and abstract are honored on load
}

// ToDocument converts a tree into its serializable form
func ToDocument(t *Tree) Document {
	doc := Document{
		Base:    t.Base().URI(),
		Kind:    t.RootKind(),
		Entries: make(map[string]EntryDocument, t.Len()),
	}
	for key, r := range t.All() {
		doc.Entries[key] = EntryDocument{
			URI:        r.URI(),
			ID:         r.ID(),
			Type:       r.Mimetype(),
			Artifact:   r.Artifact(),
			Attrs:      r.Attributes(),
			Meta:       r.Meta(),
			Structural: r.StructuralKind(),
			Location:   r.LocationKind(),
		}
	}
	return doc
}

// FromDocument builds a tree from its serialized form
func FromDocument(doc Document) (*Tree, error) {
	if doc.Base == "" {
		return nil, errors.New("manifest document has no base")
	}

	t := New(doc.Base)
	for key, e := range doc.Entries {
		opts := []resource.Option{
			resource.WithID(e.ID),
			resource.WithMimetype(e.Type),
			resource.WithArtifact(e.Artifact),
			resource.WithAttributes(e.Attrs),
			resource.WithMeta(e.Meta),
		}

		var r resource.Resource
		switch e.Location {
		case resource.LocArchive:
			r = resource.NewArchiveMember(e.URI, opts...)
		case resource.LocAbstract:
			r = resource.NewAbstract(e.URI, opts...)
		default:
			r = resource.New(e.URI, opts...)
		}

		if err := t.Set(key, r); err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
	}
	return t, nil
}

// Load decodes a YAML manifest
func Load(r io.Reader) (*Tree, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return FromDocument(doc)
}

// Save encodes a tree as YAML
func Save(w io.Writer, t *Tree) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToDocument(t)); err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return enc.Close()
}

// LoadFile reads a YAML manifest from disk
func LoadFile(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// SaveFile writes a tree to disk as YAML
func SaveFile(path string, t *Tree) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close manifest: %w", closeErr)
		}
	}()

	return Save(f, t)
}
