package resource

import "fmt"

// StructuralKind describes how a URI is rooted, ordered from least to most qualified
type StructuralKind int

const (
	StructNaive          StructuralKind = iota // No determinable structure
	StructUrn                                  // Uniform resource name, no locator semantics
	StructRelative                             // Relative reference, needs a base to resolve
	StructAbsolute                             // Absolute path, implied locality
	StructFullyQualified                       // Carries an explicit scheme
)

var structuralNames = map[StructuralKind]string{
	StructNaive:          "naive",
	StructUrn:            "urn",
	StructRelative:       "relative",
	StructAbsolute:       "absolute",
	StructFullyQualified: "fully_qualified",
}

func (k StructuralKind) String() string {
	if name, ok := structuralNames[k]; ok {
		return name
	}
	return "naive"
}

// MarshalText implements encoding.TextMarshaler
func (k StructuralKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *StructuralKind) UnmarshalText(text []byte) error {
	for kind, name := range structuralNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown structural kind: %q", text)
}

// LocationKind describes the storage substrate behind a URI
type LocationKind int

const (
	LocNaive       LocationKind = iota // Unknown storage
	LocAbstract                        // Not a tangible byte stream, e.g. a graph
	LocLocal                           // Openable directly on the local filesystem
	LocArchive                         // Member of a packed container (tar/zip/etc)
	LocNetwork                         // Must be fetched over a network protocol
	LocNoProtoFile                     // file scheme with a foreign authority
)

var locationNames = map[LocationKind]string{
	LocNaive:       "naive",
	LocAbstract:    "abstract",
	LocLocal:       "local",
	LocArchive:     "archive",
	LocNetwork:     "network",
	LocNoProtoFile: "no_proto_file",
}

func (k LocationKind) String() string {
	if name, ok := locationNames[k]; ok {
		return name
	}
	return "naive"
}

// MarshalText implements encoding.TextMarshaler
func (k LocationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *LocationKind) UnmarshalText(text []byte) error {
	for kind, name := range locationNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown location kind: %q", text)
}

// ArtifactKind describes what a resource actually is
type ArtifactKind int

const (
	ArtifactNaive     ArtifactKind = iota // Not known yet
	ArtifactGeneric                       // Some file or directory, anything you could rsync
	ArtifactFile                          // A regular file
	ArtifactDirectory                     // A directory
)

var artifactNames = map[ArtifactKind]string{
	ArtifactNaive:     "naive",
	ArtifactGeneric:   "artifact",
	ArtifactFile:      "file",
	ArtifactDirectory: "directory",
}

func (k ArtifactKind) String() string {
	if name, ok := artifactNames[k]; ok {
		return name
	}
	return "naive"
}

// MarshalText implements encoding.TextMarshaler
func (k ArtifactKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ArtifactKind) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*k = ArtifactNaive
		return nil
	}
	for kind, name := range artifactNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown artifact kind: %q", text)
}
