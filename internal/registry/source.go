package registry

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/mind-engage/mindengage-motivation/internal/storage"
)

// Artifact is one serialized bundle discovered by a Source.
type Artifact struct {
	Name   string // file or row name, including the suffix
	Origin string // human-readable location for errors and logs
	Open   func() (io.ReadCloser, error)
}

// Source enumerates artifacts whose name ends with suffix.
type Source interface {
	Artifacts(ctx context.Context, suffix string) ([]Artifact, error)
	String() string
}

// DirSource reads artifacts from one directory, non-recursively.
type DirSource struct {
	Dir string
}

func (d DirSource) String() string { return "dir:" + d.Dir }

func (d DirSource) Artifacts(ctx context.Context, suffix string) ([]Artifact, error) {
	fs, err := storage.NewFSStore(d.Dir)
	if err != nil {
		return nil, err
	}
	return StoreSource{Store: fs, Label: d.String()}.Artifacts(ctx, suffix)
}

// StoreSource reads artifacts from any storage.ArtifactStore.
type StoreSource struct {
	Store storage.ArtifactStore
	Label string
}

func (s StoreSource) String() string { return s.Label }

func (s StoreSource) Artifacts(_ context.Context, suffix string) ([]Artifact, error) {
	names, err := s.Store.List(suffix)
	if err != nil {
		return nil, err
	}
	out := make([]Artifact, 0, len(names))
	for _, n := range names {
		name := n
		out = append(out, Artifact{
			Name:   name,
			Origin: s.Store.Path(name),
			Open:   func() (io.ReadCloser, error) { return s.Store.Get(name) },
		})
	}
	return out, nil
}

// SQLSource reads artifacts from the model_artifacts table.
type SQLSource struct {
	DB    *sql.DB
	Label string // e.g. driver name, used in String
}

func (s SQLSource) String() string {
	if s.Label == "" {
		return "sql:model_artifacts"
	}
	return "sql:" + s.Label + ":model_artifacts"
}

func (s SQLSource) Artifacts(ctx context.Context, suffix string) ([]Artifact, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT name, payload FROM model_artifacts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query model_artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var name, payload string
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan model_artifacts: %w", err)
		}
		// suffix filtering stays in Go: '_' is a LIKE wildcard.
		if !strings.HasSuffix(name, suffix) {
			continue
		}
		body := []byte(payload)
		out = append(out, Artifact{
			Name:   name,
			Origin: s.String() + "/" + name,
			Open:   func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil },
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read model_artifacts: %w", err)
	}
	return out, nil
}
