package inference_test

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-motivation/internal/inference"
	"github.com/mind-engage/mindengage-motivation/internal/model"
	"github.com/mind-engage/mindengage-motivation/internal/model/modeltest"
	"github.com/mind-engage/mindengage-motivation/internal/registry"
)

/* ---------------- fakes satisfying model.Normalizer / model.Assigner ---------------- */

type identityScaler struct {
	dim   int
	calls int
}

func (s *identityScaler) Normalize(x []float64) ([]float64, error) {
	s.calls++
	if len(x) != s.dim {
		return nil, errors.New("wrong width")
	}
	return append([]float64(nil), x...), nil
}

type fixedAssigner struct {
	cluster int
	resp    []float64
}

func (a fixedAssigner) Assign([]float64) (int, []float64, error) {
	return a.cluster, append([]float64(nil), a.resp...), nil
}

type mapModels map[string]*model.Bundle

func (m mapModels) Get(key string) (*model.Bundle, bool) {
	b, ok := m[key]
	return b, ok
}

func twoFeatureBundle(key string, scaler model.Normalizer) *model.Bundle {
	return &model.Bundle{
		Key:        key,
		Features:   []string{"score", "age"},
		Scaler:     scaler,
		Clustering: fixedAssigner{cluster: 1, resp: []float64{0.2, 0.5, 0.3}},
		PercentileTargets: map[int]map[string]float64{
			0: {"score_p50": 10},
			1: {"score_p50": 20, "score_p90": 35},
			2: {"score_p50": 30},
		},
		ClusterStats: map[string]map[string]float64{
			"score_mean": {"0": 9, "1": 21, "2": 31},
			"players":    {"0": 10, "1": 50, "2": 40},
		},
	}
}

func quietEngine(models inference.Models) *inference.Engine {
	return inference.New(models, inference.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
}

const key = "DualFlow_-1_10min"

func request(data map[string]float64) inference.Request {
	return inference.Request{GameMode: "DualFlow", Difficulty: -1, DurationMinutes: 10.0, PlayerData: data}
}

func TestPredictCompleteData(t *testing.T) {
	e := quietEngine(mapModels{key: twoFeatureBundle(key, &identityScaler{dim: 2})})

	res, err := e.Predict(request(map[string]float64{"score": 150000, "age": 25}))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Cluster)
	assert.Equal(t, 0.5, res.Confidence, "confidence is the max responsibility, not renormalized")
	assert.Equal(t, map[string]float64{"score_p50": 20, "score_p90": 35}, res.Percentiles)
	assert.Equal(t, map[string]float64{"score_mean": 21, "players": 50}, res.ClusterStats)
}

func TestPredictIgnoresExtraData(t *testing.T) {
	e := quietEngine(mapModels{key: twoFeatureBundle(key, &identityScaler{dim: 2})})

	_, err := e.Predict(request(map[string]float64{"score": 1, "age": 2, "level": 3}))
	require.NoError(t, err)
}

func TestPredictMissingFeature(t *testing.T) {
	e := quietEngine(mapModels{key: twoFeatureBundle(key, &identityScaler{dim: 2})})

	_, err := e.Predict(request(map[string]float64{"score": 150000}))
	require.ErrorIs(t, err, model.ErrMissingFeature)

	var me *model.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "age", me.Feature)
	assert.Equal(t, key, me.Key)
}

func TestPredictInvalidFeature(t *testing.T) {
	e := quietEngine(mapModels{key: twoFeatureBundle(key, &identityScaler{dim: 2})})

	_, err := e.Predict(request(map[string]float64{"score": math.NaN(), "age": 2}))
	require.ErrorIs(t, err, model.ErrInvalidFeature)
}

func TestPredictModelNotFoundSkipsExtraction(t *testing.T) {
	scaler := &identityScaler{dim: 2}
	e := quietEngine(mapModels{key: twoFeatureBundle(key, scaler)})

	req := inference.Request{GameMode: "DualFlow", Difficulty: 3, DurationMinutes: 10, PlayerData: nil}
	_, err := e.Predict(req)
	require.ErrorIs(t, err, model.ErrModelNotFound)
	assert.NotErrorIs(t, err, model.ErrMissingFeature)

	var me *model.Error
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "DualFlow_3_10min", me.Key)
	assert.Equal(t, 0, scaler.calls)
}

func TestPredictFeatureShape(t *testing.T) {
	e := quietEngine(mapModels{key: twoFeatureBundle(key, &identityScaler{dim: 3})})

	_, err := e.Predict(request(map[string]float64{"score": 1, "age": 2}))
	require.ErrorIs(t, err, model.ErrFeatureShape)
}

func TestPredictInconsistentModel(t *testing.T) {
	cases := map[string]func(b *model.Bundle){
		"percentiles": func(b *model.Bundle) { delete(b.PercentileTargets, 1) },
		"stats":       func(b *model.Bundle) { delete(b.ClusterStats["players"], "1") },
		"cluster not argmax": func(b *model.Bundle) {
			b.Clustering = fixedAssigner{cluster: 0, resp: []float64{0.2, 0.5, 0.3}}
		},
		"cluster out of range": func(b *model.Bundle) {
			b.Clustering = fixedAssigner{cluster: 5, resp: []float64{0.2, 0.5, 0.3}}
		},
		"responsibility above one": func(b *model.Bundle) {
			b.Clustering = fixedAssigner{cluster: 0, resp: []float64{1.5, 0.1}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			b := twoFeatureBundle(key, &identityScaler{dim: 2})
			mutate(b)
			e := inference.New(mapModels{key: b}, inference.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

			_, err := e.Predict(request(map[string]float64{"score": 1, "age": 2}))
			require.ErrorIs(t, err, model.ErrInconsistentModel)
			assert.Contains(t, logs.String(), "model integrity failure")
			assert.Contains(t, logs.String(), key)
		})
	}
}

func TestPredictRecoverableErrorsAreNotLogged(t *testing.T) {
	var logs bytes.Buffer
	e := inference.New(mapModels{}, inference.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	_, err := e.Predict(request(nil))
	require.ErrorIs(t, err, model.ErrModelNotFound)
	assert.Empty(t, logs.String())
}

func TestPredictOverflowingValueIsInvalidFeature(t *testing.T) {
	var logs bytes.Buffer
	e := inference.New(loadSessionRegistry(t), inference.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	for _, v := range []float64{1e200, -1e200, math.MaxFloat64} {
		data := modeltest.SessionData()
		data["score"] = v
		_, err := e.Predict(request(data))
		require.ErrorIs(t, err, model.ErrInvalidFeature, "score %v", v)
		assert.NotErrorIs(t, err, model.ErrFeatureShape)

		var me *model.Error
		require.True(t, errors.As(err, &me))
		assert.True(t, me.Recoverable())
	}
	assert.NotContains(t, logs.String(), "model integrity failure")
}

func TestPredictResultDoesNotAliasModel(t *testing.T) {
	b := twoFeatureBundle(key, &identityScaler{dim: 2})
	e := quietEngine(mapModels{key: b})

	res, err := e.Predict(request(map[string]float64{"score": 1, "age": 2}))
	require.NoError(t, err)
	res.Percentiles["score_p50"] = -1

	assert.Equal(t, 20.0, b.PercentileTargets[1]["score_p50"])
}

func loadSessionRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	dir := t.TempDir()
	modeltest.WriteArtifact(t, dir, key, modeltest.Artifact())
	r, err := registry.LoadDir(dir, registry.WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
	require.NoError(t, err)
	return r
}

func TestPredictEndToEnd(t *testing.T) {
	r := loadSessionRegistry(t)
	e := quietEngine(r)

	res, err := e.Predict(request(modeltest.SessionData()))
	require.NoError(t, err)

	b, _ := r.Get(key)
	assert.Contains(t, b.ClusterIDs(), res.Cluster)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Contains(t, b.PercentileTargets, res.Cluster)
	assert.ElementsMatch(t, b.StatNames(), keysOf(res.ClusterStats))
}

func TestPredictIsIdempotent(t *testing.T) {
	e := quietEngine(loadSessionRegistry(t))

	first, err := e.Predict(request(modeltest.SessionData()))
	require.NoError(t, err)
	second, err := e.Predict(request(modeltest.SessionData()))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(first.Confidence), math.Float64bits(second.Confidence))
}

func TestPredictAssignsByScore(t *testing.T) {
	e := quietEngine(loadSessionRegistry(t))

	for score, want := range map[float64]int{40000: 0, 120000: 1, 200000: 2} {
		data := modeltest.SessionData()
		data["score"] = score
		res, err := e.Predict(request(data))
		require.NoError(t, err)
		assert.Equal(t, want, res.Cluster, "score %v", score)
		assert.Equal(t, 60000*float64(want+1), res.Percentiles["score_p50"])
		assert.Equal(t, 60000*float64(want+1), res.ClusterStats["score_mean"])
	}
}

func TestRequestKeyMatchesIntegralDuration(t *testing.T) {
	assert.Equal(t, key, request(nil).Key())
}

func keysOf(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
