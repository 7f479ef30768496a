package model

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// Normalizer maps a raw feature vector to the space the clustering model was
// fitted in.
type Normalizer interface {
	Normalize(x []float64) ([]float64, error)
}

// Assigner assigns a normalized vector to a cluster and reports the
// responsibility of every cluster for it.
type Assigner interface {
	Assign(x []float64) (cluster int, responsibilities []float64, err error)
}

// Dimensioned is implemented by capabilities that know their input width.
type Dimensioned interface {
	Dim() int
}

// Clustered is implemented by assigners that know their cluster count.
type Clustered interface {
	Components() int
}

// Bundle is one fitted model for a (game mode, difficulty, duration) context.
type Bundle struct {
	Key        string
	Features   []string
	Scaler     Normalizer
	Clustering Assigner

	// cluster id -> benchmark name -> value
	PercentileTargets map[int]map[string]float64
	// statistic -> cluster id (decimal string) -> value
	ClusterStats map[string]map[string]float64
}

// ClusterIDs returns the cluster ids with percentile targets, ascending.
func (b *Bundle) ClusterIDs() []int {
	ids := make([]int, 0, len(b.PercentileTargets))
	for id := range b.PercentileTargets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// StatNames returns the tracked statistic names, sorted.
func (b *Bundle) StatNames() []string {
	names := make([]string, 0, len(b.ClusterStats))
	for n := range b.ClusterStats {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks the structural contract between the bundle's parts.
func (b *Bundle) Validate() error {
	if len(b.Features) == 0 {
		return errors.New("no features")
	}
	seen := make(map[string]struct{}, len(b.Features))
	for _, f := range b.Features {
		if f == "" {
			return errors.New("empty feature name")
		}
		if _, dup := seen[f]; dup {
			return fmt.Errorf("feature %q listed twice", f)
		}
		seen[f] = struct{}{}
	}
	if b.Scaler == nil {
		return errors.New("no scaler")
	}
	if b.Clustering == nil {
		return errors.New("no clustering model")
	}
	if d, ok := b.Scaler.(Dimensioned); ok && d.Dim() != len(b.Features) {
		return fmt.Errorf("scaler expects %d values for %d features", d.Dim(), len(b.Features))
	}
	if d, ok := b.Clustering.(Dimensioned); ok && d.Dim() != len(b.Features) {
		return fmt.Errorf("clustering model expects %d values for %d features", d.Dim(), len(b.Features))
	}
	if len(b.PercentileTargets) == 0 {
		return errors.New("no percentile targets")
	}

	c, ok := b.Clustering.(Clustered)
	if !ok {
		return nil
	}
	k := c.Components()
	for id := 0; id < k; id++ {
		if _, ok := b.PercentileTargets[id]; !ok {
			return fmt.Errorf("percentile targets missing cluster %d", id)
		}
		sid := strconv.Itoa(id)
		for stat, byCluster := range b.ClusterStats {
			if _, ok := byCluster[sid]; !ok {
				return fmt.Errorf("cluster stat %q missing cluster %d", stat, id)
			}
		}
	}
	for id := range b.PercentileTargets {
		if id < 0 || id >= k {
			return fmt.Errorf("percentile targets reference cluster %d outside 0..%d", id, k-1)
		}
	}
	return nil
}
