package manifest

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
)

// Resolve returns the entry under key in fetchable form. Relative entries
// are joined with the base: URL resolution for network bases, path joining
// for localized ones, which yields a file URI. Other entries are returned unchanged.
func (t *Tree) Resolve(key string) (resource.Resource, error) {
	r, err := t.Get(key)
	if err != nil {
		return resource.Resource{}, err
	}
	if r.StructuralKind() != resource.StructRelative {
		return r, nil
	}

	var uri string
	switch {
	case t.base.LocationKind() == resource.LocNetwork:
		baseURL, err := url.Parse(t.base.URI())
		if err != nil {
			return resource.Resource{}, fmt.Errorf("parse base %s: %w", t.base.URI(), err)
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
		ref, err := url.Parse(r.URI())
		if err != nil {
			return resource.Resource{}, fmt.Errorf("parse entry %s: %w", r.URI(), err)
		}
		uri = baseURL.ResolveReference(ref).String()
	case t.base.IsLocalized():
		root, err := t.base.LocalPath()
		if err != nil {
			return resource.Resource{}, err
		}
		rel := r.Parts().Path
		if decoded, err := url.PathUnescape(rel); err == nil {
			rel = decoded
		}
		uri = resource.FileURI(filepath.Join(root, filepath.FromSlash(rel)))
	default:
		return resource.Resource{}, &resource.UnrootedResourceError{URI: r.URI()}
	}

	return resource.New(uri,
		resource.WithID(r.ID()),
		resource.WithMimetype(r.Mimetype()),
		resource.WithMeta(r.Meta()),
		resource.WithAttributes(r.Attributes()),
		resource.WithArtifact(r.Artifact()),
	), nil
}
