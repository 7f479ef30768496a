package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore serves model artifacts from a single directory. It never writes.
type FSStore struct{ base string }

func NewFSStore(base string) (*FSStore, error) {
	if base == "" {
		return nil, errors.New("storage: empty base directory")
	}
	fi, err := os.Stat(base)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("storage: %s is not a directory", base)
	}
	return &FSStore{base: base}, nil
}

func (s *FSStore) Base() string { return s.base }

// List returns the names of regular files directly under the base whose
// name ends with suffix, sorted. Subdirectories are not descended into.
func (s *FSStore) List(suffix string) ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (s *FSStore) Get(name string) (io.ReadCloser, error) {
	if name == "" || filepath.Base(name) != name {
		return nil, fmt.Errorf("storage: invalid artifact name %q", name)
	}
	return os.Open(filepath.Join(s.base, name))
}

// Path returns the on-disk location of name.
func (s *FSStore) Path(name string) string {
	return filepath.Join(s.base, name)
}
