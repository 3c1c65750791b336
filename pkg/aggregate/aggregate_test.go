package aggregate

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
	"pgregory.net/rapid"
)

func TestParseKind(t *testing.T) {
	for _, name := range []string{"mean", " Total ", "STD", "above", "below"} {
		if _, err := ParseKind(name); err != nil {
			t.Errorf("Failed to parse %q: %v", name, err)
		}
	}
	if _, err := ParseKind("median"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestCompute(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := Bounds{Lower: 2, Upper: 3}

	cases := []struct {
		kind Kind
		want float64
	}{
		{Mean, 2.5},
		{Total, 10},
		{Std, math.Sqrt(1.25)},
		{Above, 0.25},
		{Below, 0.25},
	}
	for _, c := range cases {
		got, err := Compute(c.kind, m, b)
		if err != nil {
			t.Fatalf("Failed to compute %s: %v", c.kind, err)
		}
		if math.Abs(got-c.want) > 1e-12 {
			t.Errorf("%s: expected %v, got %v", c.kind, c.want, got)
		}
	}
}

func TestComputeOnView(t *testing.T) {
	m := mat.NewDense(3, 3, []float64{
		1, 2, 9,
		3, 4, 9,
		9, 9, 9,
	})
	view := m.Slice(0, 2, 0, 2).(*mat.Dense)

	got, err := Compute(Total, view, Bounds{})
	if err != nil {
		t.Fatalf("Failed to compute: %v", err)
	}
	if got != 10 {
		t.Errorf("Expected 10, got %v", got)
	}
}

func TestComputeErrors(t *testing.T) {
	if _, err := Compute(Mean, &mat.Dense{}, Bounds{}); err == nil {
		t.Error("Expected error for empty image")
	}
	m := mat.NewDense(1, 1, []float64{5})
	if _, err := Compute(Kind("mode"), m, Bounds{}); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if got, _ := Compute(Std, m, Bounds{}); got != 0 {
		t.Errorf("Expected 0 std for a single pixel, got %v", got)
	}
}

// TestStdIsPopulationDeviation checks std divides by n, not n-1
func TestStdIsPopulationDeviation(t *testing.T) {
	m := mat.NewDense(1, 2, []float64{1, 3})
	got, err := Compute(Std, m, Bounds{})
	if err != nil {
		t.Fatalf("Failed to compute std: %v", err)
	}
	if math.Abs(got-1) > 1e-12 {
		t.Errorf("Expected std 1, got %v", got)
	}
}

func TestSeries(t *testing.T) {
	s := Series{Kind: Mean, Values: []float64{3, math.NaN(), 1, 7}}
	if s.Valid() != 3 {
		t.Errorf("Expected 3 valid values, got %d", s.Valid())
	}
	lo, hi, ok := s.Range()
	if !ok || lo != 1 || hi != 7 {
		t.Errorf("Expected range [1, 7], got [%v, %v] ok=%v", lo, hi, ok)
	}

	if _, _, ok := (Series{Values: []float64{math.NaN()}}).Range(); ok {
		t.Error("Expected no range for an all-NaN series")
	}
}

// TestFractionsComplement checks that above and below partition the pixels
// when both bounds coincide with a value absent from the image.
func TestFractionsComplement(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOfN(rapid.IntRange(0, 100), 1, 64).Draw(t, "data")
		values := make([]float64, len(data))
		for i, v := range data {
			values[i] = float64(v)
		}
		m := mat.NewDense(1, len(values), values)
		b := Bounds{Lower: 50.5, Upper: 50.5}

		above, err := Compute(Above, m, b)
		if err != nil {
			t.Fatalf("Failed to compute above: %v", err)
		}
		below, err := Compute(Below, m, b)
		if err != nil {
			t.Fatalf("Failed to compute below: %v", err)
		}
		if math.Abs(above+below-1) > 1e-12 {
			t.Fatalf("Expected fractions to sum to 1, got %v + %v", above, below)
		}

		mean, _ := Compute(Mean, m, b)
		total, _ := Compute(Total, m, b)
		if math.Abs(mean*float64(len(values))-total) > 1e-9 {
			t.Fatalf("Expected mean*n == total, got %v*%d vs %v", mean, len(values), total)
		}
	})
}
