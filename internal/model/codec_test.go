package model_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-motivation/internal/model"
	"github.com/mind-engage/mindengage-motivation/internal/model/modeltest"
)

func TestDecodeBundle(t *testing.T) {
	raw := modeltest.Marshal(t, modeltest.Artifact())

	b, err := model.DecodeBundle("DualFlow_-1_10min", bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "DualFlow_-1_10min", b.Key)
	assert.Equal(t, modeltest.SessionFeatures, b.Features)
	assert.Equal(t, []int{0, 1, 2}, b.ClusterIDs())
	assert.Equal(t, []string{"players", "score_mean"}, b.StatNames())

	x, err := b.Scaler.Normalize([]float64{160000, 30, 4, 10})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0, 0}, x)

	cluster, resp, err := b.Clustering.Assign(x)
	require.NoError(t, err)
	assert.Equal(t, 2, cluster)
	assert.Len(t, resp, 3)
}

func TestDecodeBundleRejects(t *testing.T) {
	mutate := func(f func(a *model.Artifact)) []byte {
		a := modeltest.Artifact()
		f(&a)
		return modeltest.Marshal(t, a)
	}

	cases := map[string][]byte{
		"not json":      []byte("\x80\x04\x95 pickle"),
		"no features":   mutate(func(a *model.Artifact) { a.Features = nil }),
		"no scaler":     mutate(func(a *model.Artifact) { a.Scaler = nil }),
		"no gmm":        mutate(func(a *model.Artifact) { a.GMM = nil }),
		"no targets":    mutate(func(a *model.Artifact) { a.PercentileTargets = nil }),
		"feature count": mutate(func(a *model.Artifact) { a.Features = a.Features[:3] }),
		"duplicate feature": mutate(func(a *model.Artifact) {
			a.Features = []string{"score", "age", "age", "duration_minutes"}
		}),
		"missing target cluster": mutate(func(a *model.Artifact) { delete(a.PercentileTargets, "1") }),
		"extra target cluster": mutate(func(a *model.Artifact) {
			a.PercentileTargets["7"] = map[string]float64{"score_p50": 1}
		}),
		"non-integer cluster id": mutate(func(a *model.Artifact) {
			a.PercentileTargets["one"] = a.PercentileTargets["1"]
		}),
		"padded cluster id": mutate(func(a *model.Artifact) {
			a.PercentileTargets["01"] = map[string]float64{"score_p50": 1}
		}),
		"signed cluster id": mutate(func(a *model.Artifact) {
			a.PercentileTargets["+1"] = a.PercentileTargets["1"]
			delete(a.PercentileTargets, "1")
		}),
		"padded stat cluster id": mutate(func(a *model.Artifact) { a.ClusterStats["players"]["02"] = 1 }),
		"trailing data":          append(mutate(func(*model.Artifact) {}), []byte(` {"features":[]}`)...),
		"stat missing cluster":   mutate(func(a *model.Artifact) { delete(a.ClusterStats["players"], "2") }),
		"bad covariance type":    mutate(func(a *model.Artifact) { a.GMM.CovarianceType = "banded" }),
		"covariance shape": mutate(func(a *model.Artifact) {
			a.GMM.Covariances = json.RawMessage(`[1, 2, 3]`)
		}),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := model.DecodeBundle("k", bytes.NewReader(raw))
			require.Error(t, err)
		})
	}
}

func TestDecodeBundleFullCovariance(t *testing.T) {
	const raw = `{
  "features": ["score", "age"],
  "scaler": {"mean": [0, 0], "scale": [1, 1]},
  "gmm_model": {
    "covariance_type": "full",
    "weights": [0.5, 0.5],
    "means": [[-1, 0], [1, 0]],
    "covariances": [[[1, 0.2], [0.2, 1]], [[1, -0.2], [-0.2, 1]]]
  },
  "percentile_targets": {"0": {"score_p50": 10}, "1": {"score_p50": 20}},
  "cluster_stats": {"score_mean": {"0": 9.5, "1": 21.0}}
}`
	b, err := model.DecodeBundle("Classic_1_5min", strings.NewReader(raw))
	require.NoError(t, err)

	cluster, _, err := b.Clustering.Assign([]float64{-2, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, cluster)
}
