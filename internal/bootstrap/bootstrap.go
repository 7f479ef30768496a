// Package bootstrap wires configuration into the logger and model registry
// shared by the server and the CLI.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mind-engage/mindengage-motivation/internal/config"
	"github.com/mind-engage/mindengage-motivation/internal/db"
	"github.com/mind-engage/mindengage-motivation/internal/model"
	"github.com/mind-engage/mindengage-motivation/internal/registry"
)

// NewLogger returns a JSON logger in online mode and a text logger offline.
func NewLogger(cfg config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.Mode == config.ModeOnline {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Sources lists the artifact sources cfg asks for, directories first. The
// returned closer releases the database handle, if one was opened.
func Sources(ctx context.Context, cfg config.Config) ([]registry.Source, func() error, error) {
	var srcs []registry.Source
	closer := func() error { return nil }

	if cfg.UsesFS() {
		if len(cfg.ModelsDirs) == 0 {
			return nil, closer, errors.New("MODELS_DIRS is empty")
		}
		for _, d := range cfg.ModelsDirs {
			srcs = append(srcs, registry.DirSource{Dir: d})
		}
	}
	if cfg.UsesSQL() {
		dbh, err := db.OpenReadOnly(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
		if err != nil {
			return nil, closer, &model.Error{Kind: model.KindRegistryLoad, Origin: "sql:" + cfg.DBDriver, Err: fmt.Errorf("db open: %w", err)}
		}
		closer = dbh.Close
		srcs = append(srcs, registry.SQLSource{DB: dbh, Label: cfg.DBDriver})
	}
	if len(srcs) == 0 {
		return nil, closer, fmt.Errorf("unknown MODELS_SOURCE %q (want fs|sql|both)", cfg.ModelsSource)
	}
	return srcs, closer, nil
}

// LoadRegistry builds the registry described by cfg. The database, when
// used, is only needed during the load and is closed before returning.
func LoadRegistry(ctx context.Context, cfg config.Config, logger *slog.Logger) (*registry.Registry, error) {
	policy, err := registry.ParseDuplicatePolicy(cfg.DuplicatePolicy)
	if err != nil {
		return nil, err
	}
	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	srcs, closeSources, err := Sources(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeSources()

	return registry.Load(ctx, srcs,
		registry.WithSuffix(cfg.ModelSuffix),
		registry.WithDuplicatePolicy(policy),
		registry.WithLogger(logger),
	)
}
