package ml

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch is returned when a feature vector length disagrees with
	// the width the scaler was fit on.
	ErrShapeMismatch = errors.New("feature vector shape mismatch")

	// ErrUnknownEncoding is returned when the label decoder has no mapping for
	// the index produced by the classifier.
	ErrUnknownEncoding = errors.New("unknown label encoding")

	// ErrInvalidFeature is returned for NaN or infinite feature values.
	ErrInvalidFeature = errors.New("invalid feature value")

	// ErrInvalidArtifact is returned when a model artifact fails validation.
	ErrInvalidArtifact = errors.New("invalid model artifact")
)

// ShapeMismatchError carries the expected and received vector widths.
type ShapeMismatchError struct {
	Expected int
	Got      int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("expected %d features, got %d", e.Expected, e.Got)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// UnknownEncodingError carries the index the decoder could not map.
type UnknownEncodingError struct {
	Index int
	Known int
}

func (e *UnknownEncodingError) Error() string {
	return fmt.Sprintf("no label for encoded class %d (decoder knows %d classes)", e.Index, e.Known)
}

func (e *UnknownEncodingError) Is(target error) bool {
	return target == ErrUnknownEncoding
}
