package resource

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Parts holds the components of a split URI. Every string splits into Parts,
// at worst into a path-only form.
type Parts struct {
	Scheme    string // Lower-cased, empty when absent
	Authority string
	Path      string
	Query     string
	Fragment  string
}

// IsURN reports whether the parts carry the urn scheme
func (p Parts) IsURN() bool {
	return p.Scheme == "urn"
}

// SplitURI splits a raw URI into its components following RFC 3986 appendix B.
// It never fails: text without a valid scheme is treated as a reference.
func SplitURI(raw string) Parts {
	var p Parts
	rest := raw

	if i := strings.IndexAny(rest, ":/?#"); i > 0 && rest[i] == ':' && validScheme(rest[:i]) {
		p.Scheme = strings.ToLower(rest[:i])
		rest = rest[i+1:]
	}

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		p.Fragment = rest[i+1:]
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		p.Query = rest[i+1:]
		rest = rest[:i]
	}

	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		end := strings.IndexByte(rest, '/')
		if end < 0 {
			end = len(rest)
		}
		p.Authority = rest[:end]
		rest = rest[end:]
	}

	p.Path = rest
	return p
}

// validScheme checks scheme = ALPHA *( ALPHA / DIGIT / "+" / "-" / "." )
func validScheme(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return s != ""
}

// ClassifyStructure derives the structural kind of a split URI.
// A urn scheme is reported as fully qualified like any other scheme.
func ClassifyStructure(p Parts) StructuralKind {
	switch {
	case p.Scheme != "":
		return StructFullyQualified
	case isAbsPath(p.Path):
		return StructAbsolute
	default:
		return StructRelative
	}
}

// ClassifyLocation derives the storage location of a split URI.
// Archive and Abstract are never derived here; callers set them explicitly.
func ClassifyLocation(p Parts) LocationKind {
	switch p.Scheme {
	case "":
		return LocLocal
	case "file":
		if p.Authority == "" || strings.EqualFold(p.Authority, "localhost") {
			return LocLocal
		}
		return LocNoProtoFile
	default:
		return LocNetwork
	}
}

func isAbsPath(path string) bool {
	return strings.HasPrefix(path, "/") || filepath.IsAbs(path)
}

// PathFromFileURI converts a file URI to a local path. Plain paths are returned
// unchanged; any other scheme:// form, and file URIs naming a remote host, are rejected.
func PathFromFileURI(uri string) (string, error) {
	if strings.HasPrefix(uri, "file://") {
		parts := SplitURI(uri)
		if ClassifyLocation(parts) != LocLocal {
			return "", &UnrootedResourceError{URI: uri}
		}
		return parts.filePath(), nil
	}
	if strings.Contains(uri, "://") {
		return "", &UnrootedResourceError{URI: uri}
	}
	return uri, nil
}

// FileURI builds a file URI for an absolute path, percent-encoding the
// characters a URI would otherwise read as delimiters
func FileURI(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}

// filePath returns the path component, percent-decoded for file URIs.
// Malformed escapes leave the path as written.
func (p Parts) filePath() string {
	if p.Scheme != "file" {
		return p.Path
	}
	if decoded, err := url.PathUnescape(p.Path); err == nil {
		return decoded
	}
	return p.Path
}
