package fetch

import (
	"fmt"
	"strings"

	"github.com/ppiankov/sito/internal/resource"
)

// splitObjectURI splits scheme://bucket/key into bucket and key
func splitObjectURI(uri string) (bucket, key string, err error) {
	parts := resource.SplitURI(uri)
	bucket = parts.Authority
	key = strings.TrimPrefix(parts.Path, "/")
	if bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return "", "", fmt.Errorf("invalid object URI %q: want %s://bucket/key", uri, parts.Scheme)
	}
	return bucket, key, nil
}
