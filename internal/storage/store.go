package storage

import "io"

// ArtifactStore is a read-only set of named model artifacts.
type ArtifactStore interface {
	List(suffix string) ([]string, error) // sorted names ending with suffix
	Get(name string) (io.ReadCloser, error)
	Path(name string) string // location for logs; fs returns the file path
}

var _ ArtifactStore = (*FSStore)(nil)
