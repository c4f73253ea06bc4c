package worker

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
)

// indexName names resources whose path ends in a directory
const indexName = "index"

// DestinationFor maps a resource onto a file below dir, mirroring its host
// and path. The result never escapes dir.
func DestinationFor(dir string, r resource.Resource) string {
	parts := r.Parts()

	p := parts.Path
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}

	cleaned := path.Clean("/" + p)
	if strings.HasSuffix(p, "/") || cleaned == "/" {
		cleaned = path.Join(cleaned, indexName)
	}

	elems := []string{dir}
	if host := hostOf(r.URI()); host != "" {
		elems = append(elems, hostDir(host))
	}
	elems = append(elems, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))

	dest := filepath.Join(elems...)
	if rel, err := filepath.Rel(dir, dest); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Join(dir, indexName)
	}
	return dest
}

// hostDir turns a host into a single path element
func hostDir(host string) string {
	host = strings.NewReplacer(":", "_", "/", "_", `\`, "_").Replace(host)
	if host == "." || host == ".." {
		return "_" + host
	}
	return host
}
