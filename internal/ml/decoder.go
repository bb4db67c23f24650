package ml

import "fmt"

// ClassDecoder is a fitted label encoder: encoded index i maps to classes[i].
type ClassDecoder struct {
	classes []string
}

func NewClassDecoder(classes []string) (*ClassDecoder, error) {
	if len(classes) == 0 {
		return nil, fmt.Errorf("%w: label encoder has no classes", ErrInvalidArtifact)
	}
	seen := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidArtifact, c)
		}
		seen[c] = struct{}{}
	}
	return &ClassDecoder{classes: append([]string(nil), classes...)}, nil
}

func (d *ClassDecoder) Decode(index int) (string, error) {
	if index < 0 || index >= len(d.classes) {
		return "", &UnknownEncodingError{Index: index, Known: len(d.classes)}
	}
	return d.classes[index], nil
}

func (d *ClassDecoder) Labels() []string {
	return append([]string(nil), d.classes...)
}
