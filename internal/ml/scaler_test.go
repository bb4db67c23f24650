package ml

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardScaler_Transform(t *testing.T) {
	s, err := NewStandardScaler([]float64{10, 0, 5}, []float64{2, 0, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 3, s.NumFeatures())

	out, err := s.Transform([]float64{14, 3, 4})
	require.NoError(t, err)
	// A zero scale leaves the centered value unscaled.
	assert.InDeltaSlice(t, []float64{2, 3, -2}, out, 1e-12)
}

func TestMinMaxScaler_Transform(t *testing.T) {
	s, err := NewMinMaxScaler([]float64{0, -1}, []float64{0.01, 0.5})
	require.NoError(t, err)

	out, err := s.Transform([]float64{50, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.5, 1}, out, 1e-12)
}

func TestScaler_RejectsBadVectors(t *testing.T) {
	s, err := NewStandardScaler([]float64{0, 0}, []float64{1, 1})
	require.NoError(t, err)

	_, err = s.Transform([]float64{1})
	var shapeErr *ShapeMismatchError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 2, shapeErr.Expected)
	assert.Equal(t, 1, shapeErr.Got)

	// Width is checked before values.
	_, err = s.Transform([]float64{math.NaN()})
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = s.Transform([]float64{1, math.Inf(1)})
	assert.ErrorIs(t, err, ErrInvalidFeature)
	assert.NotErrorIs(t, err, ErrShapeMismatch)
}

func TestNewScaler_Validation(t *testing.T) {
	_, err := NewStandardScaler(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewStandardScaler([]float64{1, 2}, []float64{1})
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewMinMaxScaler(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidArtifact)

	_, err = NewMinMaxScaler([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, ErrInvalidArtifact)
}

func TestErrorTypes(t *testing.T) {
	shape := &ShapeMismatchError{Expected: 15, Got: 3}
	assert.Equal(t, "expected 15 features, got 3", shape.Error())
	assert.True(t, errors.Is(shape, ErrShapeMismatch))
	assert.False(t, errors.Is(shape, ErrUnknownEncoding))

	enc := &UnknownEncodingError{Index: 9, Known: 7}
	assert.Contains(t, enc.Error(), "9")
	assert.True(t, errors.Is(enc, ErrUnknownEncoding))
}
