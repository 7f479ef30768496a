package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/mind-engage/mindengage-motivation/internal/gmm"
)

// Artifact is the persisted form of a Bundle as written by the training
// export. Field names follow the export's JSON keys.
type Artifact struct {
	Features          []string                      `json:"features"`
	Scaler            *ScalerParams                 `json:"scaler"`
	GMM               *MixtureParams                `json:"gmm_model"`
	PercentileTargets map[string]map[string]float64 `json:"percentile_targets"`
	ClusterStats      map[string]map[string]float64 `json:"cluster_stats"`
}

type ScalerParams struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

type MixtureParams struct {
	CovarianceType string          `json:"covariance_type"`
	Weights        []float64       `json:"weights"`
	Means          [][]float64     `json:"means"`
	Covariances    json.RawMessage `json:"covariances"`
}

// DecodeBundle reads one artifact and returns a validated Bundle.
func DecodeBundle(key string, r io.Reader) (*Bundle, error) {
	var a Artifact
	dec := json.NewDecoder(r)
	if err := dec.Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("decode artifact: trailing data after JSON object")
	}
	return a.Bundle(key)
}

// Bundle builds the runtime model from the artifact.
func (a *Artifact) Bundle(key string) (*Bundle, error) {
	switch {
	case a.Features == nil:
		return nil, errors.New("artifact has no features")
	case a.Scaler == nil:
		return nil, errors.New("artifact has no scaler")
	case a.GMM == nil:
		return nil, errors.New("artifact has no gmm_model")
	case a.PercentileTargets == nil:
		return nil, errors.New("artifact has no percentile_targets")
	}

	scaler, err := gmm.NewStandardScaler(a.Scaler.Mean, a.Scaler.Scale)
	if err != nil {
		return nil, err
	}
	mix, err := a.GMM.mixture()
	if err != nil {
		return nil, err
	}

	targets := make(map[int]map[string]float64, len(a.PercentileTargets))
	for k, v := range a.PercentileTargets {
		id, err := clusterID(k)
		if err != nil {
			return nil, fmt.Errorf("percentile_targets: %w", err)
		}
		targets[id] = v
	}
	stats := a.ClusterStats
	if stats == nil {
		stats = map[string]map[string]float64{}
	}
	for name, byCluster := range stats {
		for k := range byCluster {
			if _, err := clusterID(k); err != nil {
				return nil, fmt.Errorf("cluster_stats %q: %w", name, err)
			}
		}
	}

	b := &Bundle{
		Key:               key,
		Features:          append([]string(nil), a.Features...),
		Scaler:            Scaler{scaler},
		Clustering:        Mixture{mix},
		PercentileTargets: targets,
		ClusterStats:      stats,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// clusterID parses a cluster id written as a canonical decimal, so "01" and
// "1" cannot both name cluster 1.
func clusterID(k string) (int, error) {
	id, err := strconv.Atoi(k)
	if err != nil || strconv.Itoa(id) != k {
		return 0, fmt.Errorf("cluster id %q is not a canonical integer", k)
	}
	return id, nil
}

func (p *MixtureParams) mixture() (*gmm.Mixture, error) {
	gp := gmm.Params{
		Type:    gmm.CovarianceType(p.CovarianceType),
		Weights: p.Weights,
		Means:   p.Means,
	}
	if gp.Type == "" {
		gp.Type = gmm.CovFull
	}
	if len(p.Covariances) == 0 {
		return nil, errors.New("gmm_model has no covariances")
	}
	var target any
	switch gp.Type {
	case gmm.CovFull:
		target = &gp.Full
	case gmm.CovTied:
		target = &gp.Tied
	case gmm.CovDiag:
		target = &gp.Diag
	case gmm.CovSpherical:
		target = &gp.Spherical
	default:
		return nil, fmt.Errorf("gmm_model: unsupported covariance_type %q", p.CovarianceType)
	}
	if err := json.Unmarshal(p.Covariances, target); err != nil {
		return nil, fmt.Errorf("gmm_model: covariances for %s: %w", gp.Type, err)
	}
	return gmm.NewMixture(gp)
}

// Scaler adapts a fitted standard scaler to Normalizer.
type Scaler struct{ *gmm.StandardScaler }

func (s Scaler) Normalize(x []float64) ([]float64, error) { return s.Transform(x) }

// Mixture adapts a Gaussian mixture to Assigner.
type Mixture struct{ *gmm.Mixture }

func (m Mixture) Assign(x []float64) (int, []float64, error) { return m.Predict(x) }
