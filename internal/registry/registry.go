package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/mind-engage/mindengage-motivation/internal/model"
)

// DefaultSuffix is appended to the model key in exported artifact names.
const DefaultSuffix = "_gmm_v1.json"

// DuplicatePolicy decides what happens when two artifacts yield the same key.
type DuplicatePolicy string

const (
	// Strict fails the load.
	Strict DuplicatePolicy = "strict"
	// Permissive keeps the artifact scanned last and logs a warning.
	Permissive DuplicatePolicy = "permissive"
)

func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", Strict:
		return Strict, nil
	case Permissive:
		return Permissive, nil
	}
	return "", fmt.Errorf("unknown duplicate policy %q (want strict|permissive)", s)
}

type options struct {
	suffix string
	policy DuplicatePolicy
	logger *slog.Logger
}

type Option func(*options)

func WithSuffix(s string) Option                   { return func(o *options) { o.suffix = s } }
func WithDuplicatePolicy(p DuplicatePolicy) Option { return func(o *options) { o.policy = p } }
func WithLogger(l *slog.Logger) Option             { return func(o *options) { o.logger = l } }

// Registry maps model keys to bundles. It is built once and never mutated,
// so it can be shared between goroutines without locking.
type Registry struct {
	bundles map[string]*model.Bundle
	origins map[string]string
	keys    []string
}

// LoadDir loads every artifact directly under dir.
func LoadDir(dir string, opts ...Option) (*Registry, error) {
	return Load(context.Background(), []Source{DirSource{Dir: dir}}, opts...)
}

// Load reads sources in order. Any unreadable source or artifact fails the
// whole load with a model.KindRegistryLoad error.
func Load(ctx context.Context, sources []Source, opts ...Option) (*Registry, error) {
	o := options{suffix: DefaultSuffix, policy: Strict, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.suffix == "" {
		return nil, &model.Error{Kind: model.KindRegistryLoad, Err: errors.New("empty artifact suffix")}
	}

	r := &Registry{bundles: map[string]*model.Bundle{}, origins: map[string]string{}}
	for _, src := range sources {
		arts, err := src.Artifacts(ctx, o.suffix)
		if err != nil {
			return nil, &model.Error{Kind: model.KindRegistryLoad, Origin: src.String(), Err: err}
		}
		for _, a := range arts {
			if err := ctx.Err(); err != nil {
				return nil, &model.Error{Kind: model.KindRegistryLoad, Origin: src.String(), Err: err}
			}
			key := strings.TrimSuffix(a.Name, o.suffix)
			if key == "" {
				return nil, &model.Error{Kind: model.KindRegistryLoad, Origin: a.Origin, Err: errors.New("artifact name has no key")}
			}
			b, err := decode(key, a)
			if err != nil {
				return nil, &model.Error{Kind: model.KindRegistryLoad, Key: key, Origin: a.Origin, Err: err}
			}
			if prev, dup := r.origins[key]; dup {
				if o.policy != Permissive {
					return nil, &model.Error{
						Kind: model.KindRegistryLoad, Key: key, Origin: a.Origin,
						Err: fmt.Errorf("duplicate key, already loaded from %s", prev),
					}
				}
				o.logger.Warn("duplicate model key, replacing", "key", key, "previous", prev, "origin", a.Origin)
			}
			r.bundles[key] = b
			r.origins[key] = a.Origin
		}
	}
	r.index()
	o.logger.Info("model registry loaded", "models", len(r.keys), "sources", len(sources))
	return r, nil
}

func decode(key string, a Artifact) (*model.Bundle, error) {
	rc, err := a.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return model.DecodeBundle(key, io.LimitReader(rc, maxArtifactBytes))
}

const maxArtifactBytes = 64 << 20

// New builds a registry from already constructed bundles. Duplicate keys
// are an error.
func New(bundles ...*model.Bundle) (*Registry, error) {
	r := &Registry{bundles: map[string]*model.Bundle{}, origins: map[string]string{}}
	for _, b := range bundles {
		if b == nil || b.Key == "" {
			return nil, errors.New("registry: bundle without key")
		}
		if _, dup := r.bundles[b.Key]; dup {
			return nil, fmt.Errorf("registry: duplicate key %q", b.Key)
		}
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("registry: bundle %q: %w", b.Key, err)
		}
		r.bundles[b.Key] = b
		r.origins[b.Key] = "memory"
	}
	r.index()
	return r, nil
}

func (r *Registry) index() {
	r.keys = make([]string, 0, len(r.bundles))
	for k := range r.bundles {
		r.keys = append(r.keys, k)
	}
	sort.Strings(r.keys)
}

func (r *Registry) Get(key string) (*model.Bundle, bool) {
	b, ok := r.bundles[key]
	return b, ok
}

// Origin reports where the bundle for key was loaded from.
func (r *Registry) Origin(key string) string { return r.origins[key] }

// Keys returns all keys, sorted. The slice is a copy.
func (r *Registry) Keys() []string { return append([]string(nil), r.keys...) }

func (r *Registry) Len() int { return len(r.keys) }
