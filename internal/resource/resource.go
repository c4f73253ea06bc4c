package resource

import (
	"maps"
)

// Resource describes some local or remote resource identified by a URI.
// It is immutable: the kinds are derived from the URI when the value is built,
// and a different URI requires a new Resource.
type Resource struct {
	uri      string
	id       string
	mimetype string
	attrs    map[string]string
	meta     string
	artifact ArtifactKind

	parts      Parts
	structural StructuralKind
	location   LocationKind
}

// Option sets caller-owned metadata on a Resource under construction
type Option func(*Resource)

// WithID sets the abstract identifier. Uniqueness is not enforced.
func WithID(id string) Option {
	return func(r *Resource) { r.id = id }
}

// WithMimetype sets the media type
func WithMimetype(mimetype string) Option {
	return func(r *Resource) { r.mimetype = mimetype }
}

// WithAttributes sets free-form metadata. The map is copied.
func WithAttributes(attrs map[string]string) Option {
	return func(r *Resource) { r.attrs = maps.Clone(attrs) }
}

// WithMeta sets the opaque note field
func WithMeta(meta string) Option {
	return func(r *Resource) { r.meta = meta }
}

// WithArtifact sets what the resource is (file, directory, ...)
func WithArtifact(kind ArtifactKind) Option {
	return func(r *Resource) { r.artifact = kind }
}

// New builds a Resource from a raw URI and classifies it
func New(uri string, opts ...Option) Resource {
	r := Resource{uri: uri}
	for _, opt := range opts {
		opt(&r)
	}
	r.parts = SplitURI(uri)
	r.structural = ClassifyStructure(r.parts)
	r.location = ClassifyLocation(r.parts)
	return r
}

// From builds a new Resource reusing the URI and metadata of an existing one.
// The kinds are derived again from the URI; opts override the copied metadata.
func From(src Resource, opts ...Option) Resource {
	base := []Option{
		WithID(src.id),
		WithMimetype(src.mimetype),
		WithAttributes(src.attrs),
		WithMeta(src.meta),
		WithArtifact(src.artifact),
	}
	return New(src.uri, append(base, opts...)...)
}

// NewArchiveMember builds a Resource that lives inside a packed container
func NewArchiveMember(uri string, opts ...Option) Resource {
	r := New(uri, opts...)
	r.location = LocArchive
	return r
}

// NewAbstract builds a Resource that is a concept rather than a byte stream
func NewAbstract(uri string, opts ...Option) Resource {
	r := New(uri, opts...)
	r.location = LocAbstract
	return r
}

func (r Resource) URI() string      { return r.uri }
func (r Resource) ID() string       { return r.id }
func (r Resource) Mimetype() string { return r.mimetype }
func (r Resource) Meta() string     { return r.meta }

// Artifact returns what the resource is, if known
func (r Resource) Artifact() ArtifactKind { return r.artifact }

// Parts returns the split components of the URI
func (r Resource) Parts() Parts { return r.parts }

// StructuralKind returns how the URI is rooted
func (r Resource) StructuralKind() StructuralKind { return r.structural }

// LocationKind returns where the resource is stored
func (r Resource) LocationKind() LocationKind { return r.location }

// Attributes returns a copy of the free-form metadata
func (r Resource) Attributes() map[string]string {
	if r.attrs == nil {
		return map[string]string{}
	}
	return maps.Clone(r.attrs)
}

// Attribute returns a single metadata value
func (r Resource) Attribute(key string) (string, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

func (r Resource) String() string {
	return r.uri
}

// IsLocalized reports whether the URI can be turned into a local path.
// It says nothing about whether anything exists at that path.
func (r Resource) IsLocalized() bool {
	switch r.structural {
	case StructAbsolute, StructRelative:
		return true
	case StructFullyQualified:
		return r.location == LocLocal || r.location == LocArchive
	default:
		return false
	}
}

// LocalPath returns the path component of the URI, or an
// *UnrootedResourceError when the resource is not localized.
// File URIs are percent-decoded; plain paths are returned as written.
func (r Resource) LocalPath() (string, error) {
	if !r.IsLocalized() {
		return "", &UnrootedResourceError{URI: r.uri}
	}
	return r.parts.filePath(), nil
}

// Equal reports whether two resources carry the same URI, metadata and kinds
func (r Resource) Equal(other Resource) bool {
	return r.uri == other.uri &&
		r.id == other.id &&
		r.mimetype == other.mimetype &&
		r.meta == other.meta &&
		r.artifact == other.artifact &&
		r.structural == other.structural &&
		r.location == other.location &&
		maps.Equal(r.attrs, other.attrs)
}
