package touchstone

import (
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"
)

// Trace is one parameter over frequency
type Trace struct {
	Freq   []float64 // Hz
	Values []complex128
}

// DB returns 20*log10 of the magnitude of each value
func (t Trace) DB() []float64 {
	out := make([]float64, len(t.Values))
	for i, v := range t.Values {
		out[i] = 20 * math.Log10(cmplx.Abs(v))
	}
	return out
}

// Phase returns the angle of each value in degrees, in (-180, 180]
func (t Trace) Phase() []float64 {
	out := make([]float64, len(t.Values))
	for i, v := range t.Values {
		out[i] = cmplx.Phase(v) * 180 / math.Pi
	}
	return out
}

// PhaseDelta returns a-b point by point, with differences below -180 degrees
// wrapped up by a turn
func PhaseDelta(a, b []float64) ([]float64, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("phase traces differ in length, %d and %d", len(a), len(b))
	}
	out := make([]float64, len(a))
	floats.SubTo(out, a, b)
	for i, d := range out {
		if d < -180 {
			out[i] = d + 360
		}
	}
	return out, nil
}

// Peak returns the index and value of the largest element of v
func Peak(v []float64) (int, float64) {
	if len(v) == 0 {
		return -1, math.NaN()
	}
	i := floats.MaxIdx(v)
	return i, v[i]
}
