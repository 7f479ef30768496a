package gmm

import (
	"errors"
	"fmt"
	"math"
)

// CovarianceType follows the scikit-learn naming used by the training export.
type CovarianceType string

const (
	CovFull      CovarianceType = "full"
	CovTied      CovarianceType = "tied"
	CovDiag      CovarianceType = "diag"
	CovSpherical CovarianceType = "spherical"
)

// Params is the fitted state of a Gaussian mixture. Only the covariance
// field matching Type is read.
type Params struct {
	Type      CovarianceType
	Weights   []float64
	Means     [][]float64
	Full      [][][]float64 // [k][d][d]
	Tied      [][]float64   // [d][d]
	Diag      [][]float64   // [k][d]
	Spherical []float64     // [k]
}

type component struct {
	logWeight float64
	mean      []float64
	chol      [][]float64 // lower factor, nil for diagonal forms
	variance  []float64   // diagonal forms only
	logDet    float64
}

// Mixture scores vectors against a fitted Gaussian mixture. It is immutable
// and safe for concurrent use.
type Mixture struct {
	covType    CovarianceType
	dim        int
	components []component
}

const weightSumTolerance = 1e-6

// NewMixture validates p and precomputes Cholesky factors and log
// determinants once per model.
func NewMixture(p Params) (*Mixture, error) {
	k := len(p.Weights)
	if k == 0 {
		return nil, errors.New("gmm: no components")
	}
	if len(p.Means) != k {
		return nil, fmt.Errorf("gmm: %d weights but %d means: %w", k, len(p.Means), ErrDimension)
	}
	d := len(p.Means[0])
	if d == 0 {
		return nil, errors.New("gmm: zero-dimensional means")
	}

	sum := 0.0
	for i, w := range p.Weights {
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("gmm: weight %d must be positive, got %v", i, w)
		}
		sum += w
	}
	if math.Abs(sum-1) > weightSumTolerance {
		return nil, fmt.Errorf("gmm: weights sum to %v, want 1", sum)
	}

	m := &Mixture{covType: p.Type, dim: d, components: make([]component, k)}

	var tiedChol [][]float64
	var tiedLogDet float64
	if p.Type == CovTied {
		if err := checkSquare(p.Tied, d); err != nil {
			return nil, fmt.Errorf("gmm: tied covariance: %w", err)
		}
		var err error
		tiedChol, tiedLogDet, err = cholesky(p.Tied)
		if err != nil {
			return nil, fmt.Errorf("gmm: tied covariance: %w", err)
		}
	}

	for i := 0; i < k; i++ {
		mu := p.Means[i]
		if len(mu) != d {
			return nil, fmt.Errorf("gmm: mean %d has %d values, want %d: %w", i, len(mu), d, ErrDimension)
		}
		if !allFinite(mu) {
			return nil, fmt.Errorf("gmm: mean %d has non-finite values", i)
		}
		c := component{logWeight: math.Log(p.Weights[i]), mean: append([]float64(nil), mu...)}

		switch p.Type {
		case CovFull:
			if len(p.Full) != k {
				return nil, fmt.Errorf("gmm: %d full covariances for %d components: %w", len(p.Full), k, ErrDimension)
			}
			if err := checkSquare(p.Full[i], d); err != nil {
				return nil, fmt.Errorf("gmm: covariance %d: %w", i, err)
			}
			l, ld, err := cholesky(p.Full[i])
			if err != nil {
				return nil, fmt.Errorf("gmm: covariance %d: %w", i, err)
			}
			c.chol, c.logDet = l, ld
		case CovTied:
			c.chol, c.logDet = tiedChol, tiedLogDet
		case CovDiag:
			if len(p.Diag) != k {
				return nil, fmt.Errorf("gmm: %d diag covariances for %d components: %w", len(p.Diag), k, ErrDimension)
			}
			if len(p.Diag[i]) != d {
				return nil, fmt.Errorf("gmm: covariance %d has %d values, want %d: %w", i, len(p.Diag[i]), d, ErrDimension)
			}
			v, ld, err := diagonal(p.Diag[i])
			if err != nil {
				return nil, fmt.Errorf("gmm: covariance %d: %w", i, err)
			}
			c.variance, c.logDet = v, ld
		case CovSpherical:
			if len(p.Spherical) != k {
				return nil, fmt.Errorf("gmm: %d spherical variances for %d components: %w", len(p.Spherical), k, ErrDimension)
			}
			vals := make([]float64, d)
			for j := range vals {
				vals[j] = p.Spherical[i]
			}
			v, ld, err := diagonal(vals)
			if err != nil {
				return nil, fmt.Errorf("gmm: covariance %d: %w", i, err)
			}
			c.variance, c.logDet = v, ld
		default:
			return nil, fmt.Errorf("gmm: unsupported covariance type %q", p.Type)
		}
		m.components[i] = c
	}
	return m, nil
}

func (m *Mixture) Dim() int                       { return m.dim }
func (m *Mixture) Components() int                { return len(m.components) }
func (m *Mixture) CovarianceType() CovarianceType { return m.covType }

// PredictProba returns the posterior responsibility of each component for x.
func (m *Mixture) PredictProba(x []float64) ([]float64, error) {
	if len(x) != m.dim {
		return nil, fmt.Errorf("gmm: got %d values, want %d: %w", len(x), m.dim, ErrDimension)
	}
	wlp := make([]float64, len(m.components))
	for i := range m.components {
		wlp[i] = m.components[i].logWeight + m.components[i].logPDF(x)
	}
	norm := logSumExp(wlp)
	if math.IsInf(norm, 0) || math.IsNaN(norm) {
		return nil, fmt.Errorf("gmm: vector has no finite likelihood under any component: %w", ErrOutOfRange)
	}
	for i := range wlp {
		wlp[i] = math.Exp(wlp[i] - norm)
	}
	return wlp, nil
}

// Predict returns the index of the most responsible component together with
// the full responsibility vector. Ties resolve to the lowest index.
func (m *Mixture) Predict(x []float64) (int, []float64, error) {
	resp, err := m.PredictProba(x)
	if err != nil {
		return 0, nil, err
	}
	return ArgMax(resp), resp, nil
}

// ArgMax returns the first index holding the maximum value, or -1 for an
// empty slice.
func ArgMax(v []float64) int {
	if len(v) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

var log2Pi = math.Log(2 * math.Pi)

func (c *component) logPDF(x []float64) float64 {
	d := len(x)
	var maha float64
	if c.chol != nil {
		z := forwardSolve(c.chol, x, c.mean)
		for _, v := range z {
			maha += v * v
		}
	} else {
		for j, v := range x {
			diff := v - c.mean[j]
			maha += diff * diff / c.variance[j]
		}
	}
	return -0.5 * (float64(d)*log2Pi + c.logDet + maha)
}

// forwardSolve solves L z = (x - mu) for lower-triangular L.
func forwardSolve(l [][]float64, x, mu []float64) []float64 {
	z := make([]float64, len(x))
	for i := range x {
		s := x[i] - mu[i]
		for j := 0; j < i; j++ {
			s -= l[i][j] * z[j]
		}
		z[i] = s / l[i][i]
	}
	return z
}

// cholesky returns the lower factor of a symmetric positive definite matrix
// and log|a|.
func cholesky(a [][]float64) ([][]float64, float64, error) {
	n := len(a)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}
	logDet := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			s := a[i][j]
			for k := 0; k < j; k++ {
				s -= l[i][k] * l[j][k]
			}
			if i == j {
				if !(s > 0) {
					return nil, 0, errors.New("matrix is not positive definite")
				}
				l[i][i] = math.Sqrt(s)
				logDet += 2 * math.Log(l[i][i])
				continue
			}
			l[i][j] = s / l[j][j]
		}
	}
	return l, logDet, nil
}

func diagonal(v []float64) ([]float64, float64, error) {
	out := make([]float64, len(v))
	logDet := 0.0
	for i, x := range v {
		if !(x > 0) || math.IsInf(x, 0) {
			return nil, 0, fmt.Errorf("variance %d must be positive, got %v", i, x)
		}
		out[i] = x
		logDet += math.Log(x)
	}
	return out, logDet, nil
}

func checkSquare(a [][]float64, d int) error {
	if len(a) != d {
		return fmt.Errorf("%d rows, want %d: %w", len(a), d, ErrDimension)
	}
	for i, row := range a {
		if len(row) != d {
			return fmt.Errorf("row %d has %d values, want %d: %w", i, len(row), d, ErrDimension)
		}
		if !allFinite(row) {
			return fmt.Errorf("row %d has non-finite values", i)
		}
		for j := 0; j < i; j++ {
			if math.Abs(a[i][j]-a[j][i]) > 1e-9*math.Max(1, math.Abs(a[i][j])) {
				return fmt.Errorf("matrix is not symmetric at (%d,%d)", i, j)
			}
		}
	}
	return nil
}

func logSumExp(v []float64) float64 {
	mx := math.Inf(-1)
	for _, x := range v {
		if x > mx {
			mx = x
		}
	}
	if math.IsInf(mx, -1) {
		return mx
	}
	s := 0.0
	for _, x := range v {
		s += math.Exp(x - mx)
	}
	return mx + math.Log(s)
}

func allFinite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
