package model

import (
	"os"
	"path/filepath"
)

// defaultCacheDir returns the per-user cache location, falling back to the
// system temp directory when no user cache directory is known
func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "sito")
	}
	return filepath.Join(os.TempDir(), "sito-cache")
}
