package gmm

import (
	"errors"
	"fmt"
	"math"
)

// StandardScaler applies (x - mean) / scale per dimension.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

var ErrDimension = errors.New("dimension mismatch")

// ErrOutOfRange marks input whose values are finite but too large to score:
// standardizing them or evaluating their likelihood overflows.
var ErrOutOfRange = errors.New("value out of range")

// NewStandardScaler validates parameters. A zero scale is stored as 1 so
// constant features pass through centered.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, errors.New("scaler: empty mean")
	}
	if scale == nil {
		scale = make([]float64, len(mean))
		for i := range scale {
			scale[i] = 1
		}
	}
	if len(scale) != len(mean) {
		return nil, fmt.Errorf("scaler: mean has %d values, scale has %d: %w", len(mean), len(scale), ErrDimension)
	}
	s := &StandardScaler{
		Mean:  append([]float64(nil), mean...),
		Scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		switch {
		case math.IsNaN(v) || math.IsInf(v, 0) || math.IsNaN(mean[i]) || math.IsInf(mean[i], 0):
			return nil, fmt.Errorf("scaler: non-finite parameter at %d", i)
		case v < 0:
			return nil, fmt.Errorf("scaler: negative scale at %d", i)
		case v == 0:
			s.Scale[i] = 1
		default:
			s.Scale[i] = v
		}
	}
	return s, nil
}

func (s *StandardScaler) Dim() int { return len(s.Mean) }

// Transform returns a new standardized vector; x is not modified.
func (s *StandardScaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("scaler: got %d values, want %d: %w", len(x), len(s.Mean), ErrDimension)
	}
	out := make([]float64, len(x))
	for i, v := range x {
		z := (v - s.Mean[i]) / s.Scale[i]
		if math.IsInf(z, 0) || math.IsNaN(z) {
			return nil, fmt.Errorf("scaler: value %v at %d overflows: %w", v, i, ErrOutOfRange)
		}
		out[i] = z
	}
	return out, nil
}
