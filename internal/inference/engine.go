// Package inference scores a player's session against the model bundle for
// their game context.
package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/mind-engage/mindengage-motivation/internal/gmm"
	"github.com/mind-engage/mindengage-motivation/internal/model"
)

// Models looks up bundles by key. *registry.Registry satisfies it.
type Models interface {
	Get(key string) (*model.Bundle, bool)
}

type Request struct {
	GameMode        string             `json:"game_mode"`
	Difficulty      int                `json:"difficulty"`
	DurationMinutes float64            `json:"duration_minutes"`
	PlayerData      map[string]float64 `json:"player_data"`
}

// Key is the registry key the request resolves to.
func (r Request) Key() string {
	return model.ResolveKey(r.GameMode, r.Difficulty, r.DurationMinutes)
}

type Result struct {
	Cluster      int                `json:"cluster"`
	Confidence   float64            `json:"confidence"`
	Percentiles  map[string]float64 `json:"percentiles"`
	ClusterStats map[string]float64 `json:"cluster_stats"`
}

type Engine struct {
	models Models
	logger *slog.Logger
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func New(models Models, opts ...Option) *Engine {
	e := &Engine{models: models, logger: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// confidenceSlack absorbs floating error in responsibilities that should
// already lie in [0, 1].
const confidenceSlack = 1e-9

// Predict resolves the bundle for req and scores req.PlayerData against it.
// It holds no state between calls: identical requests give identical results.
func (e *Engine) Predict(req Request) (Result, error) {
	key := req.Key()
	b, ok := e.models.Get(key)
	if !ok {
		return Result{}, &model.Error{Kind: model.KindModelNotFound, Key: key}
	}
	res, err := score(b, req.PlayerData)
	if err != nil {
		var me *model.Error
		if errors.As(err, &me) && !me.Recoverable() {
			e.logger.Error("model integrity failure", "key", key, "kind", me.Kind, "err", err)
		}
		return Result{}, err
	}
	return res, nil
}

func score(b *model.Bundle, data map[string]float64) (Result, error) {
	x := make([]float64, len(b.Features))
	for i, f := range b.Features {
		v, ok := data[f]
		if !ok {
			return Result{}, &model.Error{Kind: model.KindMissingFeature, Key: b.Key, Feature: f}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Result{}, &model.Error{Kind: model.KindInvalidFeature, Key: b.Key, Feature: f, Err: fmt.Errorf("value %v is not finite", v)}
		}
		x[i] = v
	}

	z, err := b.Scaler.Normalize(x)
	if err != nil {
		return Result{}, scoringError(b.Key, err)
	}
	cluster, resp, err := b.Clustering.Assign(z)
	if err != nil {
		return Result{}, scoringError(b.Key, err)
	}
	conf, err := confidence(cluster, resp)
	if err != nil {
		return Result{}, &model.Error{Kind: model.KindInconsistentModel, Key: b.Key, Err: err}
	}

	targets, ok := b.PercentileTargets[cluster]
	if !ok {
		return Result{}, &model.Error{
			Kind: model.KindInconsistentModel, Key: b.Key,
			Err: fmt.Errorf("no percentile targets for cluster %d", cluster),
		}
	}
	percentiles := make(map[string]float64, len(targets))
	for k, v := range targets {
		percentiles[k] = v
	}

	sid := strconv.Itoa(cluster)
	stats := make(map[string]float64, len(b.ClusterStats))
	for name, byCluster := range b.ClusterStats {
		v, ok := byCluster[sid]
		if !ok {
			return Result{}, &model.Error{
				Kind: model.KindInconsistentModel, Key: b.Key,
				Err: fmt.Errorf("cluster stat %q has no value for cluster %d", name, cluster),
			}
		}
		stats[name] = v
	}

	return Result{Cluster: cluster, Confidence: conf, Percentiles: percentiles, ClusterStats: stats}, nil
}

// scoringError classifies a scaler or mixture failure. Values too large to
// score are the caller's input problem; anything else means the bundle does
// not fit the vector it was given.
func scoringError(key string, err error) error {
	if errors.Is(err, gmm.ErrOutOfRange) {
		return &model.Error{Kind: model.KindInvalidFeature, Key: key, Err: err}
	}
	return &model.Error{Kind: model.KindFeatureShape, Key: key, Err: err}
}

// confidence is the largest responsibility. The assigned cluster must hold it.
func confidence(cluster int, resp []float64) (float64, error) {
	if len(resp) == 0 {
		return 0, errors.New("empty responsibility vector")
	}
	if cluster < 0 || cluster >= len(resp) {
		return 0, fmt.Errorf("cluster %d outside responsibility vector of %d", cluster, len(resp))
	}
	mx := resp[0]
	for _, r := range resp {
		if math.IsNaN(r) || r < -confidenceSlack || r > 1+confidenceSlack {
			return 0, fmt.Errorf("responsibility %v outside [0, 1]", r)
		}
		if r > mx {
			mx = r
		}
	}
	if resp[cluster] != mx {
		return 0, fmt.Errorf("cluster %d is not the most responsible", cluster)
	}
	return math.Min(1, math.Max(0, mx)), nil
}
