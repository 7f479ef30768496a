// Package modeltest builds model artifacts for tests.
package modeltest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mind-engage/mindengage-motivation/internal/model"
)

// Suffix is the default artifact name suffix.
const Suffix = "_gmm_v1.json"

// SessionFeatures is the feature layout of the DualFlow export.
var SessionFeatures = []string{"score", "age", "startSpeed", "duration_minutes"}

// Artifact returns a three-cluster diagonal mixture over SessionFeatures.
// Cluster 0 are low scorers, 1 average, 2 high scorers.
func Artifact() model.Artifact {
	covs, _ := json.Marshal([][]float64{
		{0.5, 1, 1, 1},
		{0.5, 1, 1, 1},
		{0.5, 1, 1, 1},
	})
	a := model.Artifact{
		Features: append([]string(nil), SessionFeatures...),
		Scaler: &model.ScalerParams{
			Mean:  []float64{120000, 30, 4, 10},
			Scale: []float64{40000, 10, 2, 5},
		},
		GMM: &model.MixtureParams{
			CovarianceType: "diag",
			Weights:        []float64{0.25, 0.5, 0.25},
			Means: [][]float64{
				{-1.5, 0, 0, 0},
				{0, 0, 0, 0},
				{1.5, 0, 0, 0},
			},
			Covariances: covs,
		},
		PercentileTargets: map[string]map[string]float64{},
		ClusterStats: map[string]map[string]float64{
			"score_mean": {},
			"players":    {},
		},
	}
	for id := 0; id < 3; id++ {
		sid := strconv.Itoa(id)
		base := 60000 * float64(id+1)
		a.PercentileTargets[sid] = map[string]float64{
			"score_p25": base * 0.75,
			"score_p50": base,
			"score_p75": base * 1.25,
		}
		a.ClusterStats["score_mean"][sid] = base
		a.ClusterStats["players"][sid] = float64(100 * (id + 1))
	}
	return a
}

// Marshal encodes a as artifact JSON.
func Marshal(t testing.TB, a model.Artifact) []byte {
	t.Helper()
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal artifact: %v", err)
	}
	return b
}

// WriteArtifact writes a into dir as key+Suffix and returns the path.
func WriteArtifact(t testing.TB, dir, key string, a model.Artifact) string {
	t.Helper()
	return WriteRaw(t, dir, key+Suffix, Marshal(t, a))
}

// WriteRaw writes raw bytes to dir/name.
func WriteRaw(t testing.TB, dir, name string, b []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", p, err)
	}
	return p
}

// SessionData is a complete player-data map for SessionFeatures.
func SessionData() map[string]float64 {
	return map[string]float64{
		"score":            150000,
		"age":              25,
		"startSpeed":       5.0,
		"duration_minutes": 10.0,
	}
}
