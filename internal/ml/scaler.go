package ml

import (
	"fmt"
	"math"
)

const (
	ScalerStandard = "standard"
	ScalerMinMax   = "minmax"
)

// StandardScaler standardizes features as (x - mean) / scale.
type StandardScaler struct {
	mean  []float64
	scale []float64
}

// NewStandardScaler copies mean and scale. Zero scale entries are treated as 1,
// matching how constant columns are handled at fit time.
func NewStandardScaler(mean, scale []float64) (*StandardScaler, error) {
	if len(mean) == 0 {
		return nil, fmt.Errorf("%w: standard scaler has no features", ErrInvalidArtifact)
	}
	if len(scale) != len(mean) {
		return nil, fmt.Errorf("%w: standard scaler mean has %d entries, scale has %d",
			ErrInvalidArtifact, len(mean), len(scale))
	}

	s := &StandardScaler{
		mean:  append([]float64(nil), mean...),
		scale: make([]float64, len(scale)),
	}
	for i, v := range scale {
		if v == 0 {
			v = 1
		}
		s.scale[i] = v
	}
	return s, nil
}

func (s *StandardScaler) NumFeatures() int {
	return len(s.mean)
}

func (s *StandardScaler) Transform(features []float64) ([]float64, error) {
	if err := checkVector(features, len(s.mean)); err != nil {
		return nil, err
	}

	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = (v - s.mean[i]) / s.scale[i]
	}
	return out, nil
}

// MinMaxScaler maps features as x*scale + min.
type MinMaxScaler struct {
	min   []float64
	scale []float64
}

func NewMinMaxScaler(min, scale []float64) (*MinMaxScaler, error) {
	if len(scale) == 0 {
		return nil, fmt.Errorf("%w: minmax scaler has no features", ErrInvalidArtifact)
	}
	if len(min) != len(scale) {
		return nil, fmt.Errorf("%w: minmax scaler min has %d entries, scale has %d",
			ErrInvalidArtifact, len(min), len(scale))
	}
	return &MinMaxScaler{
		min:   append([]float64(nil), min...),
		scale: append([]float64(nil), scale...),
	}, nil
}

func (s *MinMaxScaler) NumFeatures() int {
	return len(s.scale)
}

func (s *MinMaxScaler) Transform(features []float64) ([]float64, error) {
	if err := checkVector(features, len(s.scale)); err != nil {
		return nil, err
	}

	out := make([]float64, len(features))
	for i, v := range features {
		out[i] = v*s.scale[i] + s.min[i]
	}
	return out, nil
}

// checkVector validates width first, then values.
func checkVector(features []float64, width int) error {
	if len(features) != width {
		return &ShapeMismatchError{Expected: width, Got: len(features)}
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: feature %d is %v", ErrInvalidFeature, i, v)
		}
	}
	return nil
}
