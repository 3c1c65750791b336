// Package aggregate reduces a decoded image to a single scalar.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Kind selects the reduction applied to each image.
type Kind string

const (
	Mean  Kind = "mean"
	Total Kind = "total"
	Std   Kind = "std"
	Above Kind = "above"
	Below Kind = "below"
)

// Kinds lists every supported reduction.
var Kinds = []Kind{Mean, Total, Std, Above, Below}

// ErrUnknownKind is returned for an unsupported aggregate name.
var ErrUnknownKind = errors.New("unknown aggregate kind")

// ParseKind resolves an aggregate name, ignoring case and surrounding spaces.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
}

// Bounds are the thresholds used by Above and Below.
type Bounds struct {
	Lower float64
	Upper float64
}

// Compute reduces m according to kind. Above and Below return the fraction
// of pixels strictly beyond the respective bound.
func Compute(kind Kind, m *mat.Dense, b Bounds) (float64, error) {
	values := flatten(m)
	if len(values) == 0 {
		return math.NaN(), fmt.Errorf("cannot compute %s of an empty image", kind)
	}

	switch kind {
	case Mean:
		return stat.Mean(values, nil), nil
	case Total:
		return floats.Sum(values), nil
	case Std:
		return stat.PopStdDev(values, nil), nil
	case Above:
		return fraction(values, func(v float64) bool { return v > b.Upper }), nil
	case Below:
		return fraction(values, func(v float64) bool { return v < b.Lower }), nil
	default:
		return math.NaN(), fmt.Errorf("%w: %q", ErrUnknownKind, string(kind))
	}
}

// Series holds one value per catalog image, in catalog order. Images that
// could not be read are NaN.
type Series struct {
	Kind   Kind
	Values []float64
}

// Valid returns the number of non-NaN values.
func (s Series) Valid() int {
	n := 0
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Range returns the minimum and maximum over the non-NaN values.
func (s Series) Range() (lo, hi float64, ok bool) {
	valid := make([]float64, 0, len(s.Values))
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, 0, false
	}
	return floats.Min(valid), floats.Max(valid), true
}

func fraction(values []float64, match func(float64) bool) float64 {
	n := 0
	for _, v := range values {
		if match(v) {
			n++
		}
	}
	return float64(n) / float64(len(values))
}

// flatten returns the matrix elements in row-major order without copying
// when the backing storage is contiguous.
func flatten(m *mat.Dense) []float64 {
	if m == nil || m.IsEmpty() {
		return nil
	}
	r, c := m.Dims()
	raw := m.RawMatrix()
	if raw.Stride == c {
		return raw.Data[:r*c]
	}
	out := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		out = append(out, m.RawRowView(i)...)
	}
	return out
}
