package manifest

import (
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
	"golang.org/x/net/html"
)

// ScanDir mirrors a local directory tree into a Tree rooted at the directory.
// Entries and base are file URIs.
func ScanDir(root string) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	t := New(resource.FileURI(abs))
	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == abs {
			if !d.IsDir() {
				return fmt.Errorf("not a directory: %s", abs)
			}
			return nil
		}

		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}

		kind := resource.ArtifactFile
		if d.IsDir() {
			kind = resource.ArtifactDirectory
		}

		return t.Set(filepath.ToSlash(rel), resource.New(resource.FileURI(p),
			resource.WithArtifact(kind),
			resource.WithMimetype(mime.TypeByExtension(filepath.Ext(p))),
		))
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return t, nil
}

// ScanIndex builds a Tree from an HTML directory index served at base.
// Links leaving the base are ignored; links ending in a slash are directories.
func ScanIndex(base string, r io.Reader) (*Tree, error) {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base: %w", err)
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	t := New(base)
	var walk func(*html.Node) error

	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				key, uri, isDir, ok := indexEntry(baseURL, strings.TrimSpace(attr.Val))
				if !ok {
					continue
				}
				kind := resource.ArtifactFile
				if isDir {
					kind = resource.ArtifactDirectory
				}
				opts := []resource.Option{resource.WithArtifact(kind)}
				if !isDir {
					opts = append(opts, resource.WithMimetype(mime.TypeByExtension(path.Ext(key))))
				}
				if err := t.Set(key, resource.New(uri, opts...)); err != nil {
					return err
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(doc); err != nil {
		return nil, err
	}
	return t, nil
}

// indexEntry resolves an href against the index base and returns the
// manifest key for it
func indexEntry(base *url.URL, href string) (key, uri string, isDir, ok bool) {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "?") {
		return "", "", false, false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", "", false, false
	}
	resolved := base.ResolveReference(ref)
	resolved.RawQuery = ""
	resolved.Fragment = ""

	if resolved.Scheme != base.Scheme || resolved.Host != base.Host {
		return "", "", false, false
	}
	rel, found := strings.CutPrefix(resolved.Path, base.Path)
	if !found || rel == "" {
		return "", "", false, false
	}

	isDir = strings.HasSuffix(rel, "/")
	key = strings.TrimSuffix(rel, "/")
	if _, err := normalizeKey(key); err != nil {
		return "", "", false, false
	}
	return key, resolved.String(), isDir, true
}
