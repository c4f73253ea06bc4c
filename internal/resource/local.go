package resource

// LocalResource is a Resource already materialized on the local filesystem.
// It is only produced by Retrieve.
type LocalResource struct {
	Resource
	path string
}

// IsLocalized is always true for a local resource
func (l LocalResource) IsLocalized() bool {
	return true
}

// LocalPath returns the filesystem path; it never fails
func (l LocalResource) LocalPath() (string, error) {
	return l.Path(), nil
}

// Path returns the filesystem path reported by the fetcher
func (l LocalResource) Path() string {
	if l.path != "" {
		return l.path
	}
	return l.parts.filePath()
}
