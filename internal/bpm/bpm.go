// Package bpm maps raw pixel rows onto the fetal heart rate scale.
package bpm

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Scale bounds in beats per minute.
const (
	Min = 50
	Max = 200
)

// ErrDegenerateRange is returned when every pixel sits on the same row, so
// no scale can be derived.
var ErrDegenerateRange = errors.New("degenerate pixel range")

// Map applies the affine transform that sends the smallest y to Min and the
// largest y to Max, rounding to the nearest integer. Order is preserved.
func Map(ys []int) ([]int, error) {
	if len(ys) == 0 {
		return nil, fmt.Errorf("%w: empty series", ErrDegenerateRange)
	}

	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	if lo == hi {
		return nil, fmt.Errorf("%w: all %d points at y=%d", ErrDegenerateRange, len(ys), lo)
	}

	span := float64(hi - lo)
	out := make([]int, len(ys))
	for i, y := range ys {
		out[i] = int(math.Round(float64(y-lo)/span*(Max-Min) + Min))
	}
	return out, nil
}

// Normalize maps ys to bpm and sorts the result ascending.
//
// The output is a rank-ordered distribution of heart-rate values rather than
// a time series; the features computed downstream depend on that ordering.
func Normalize(ys []int) ([]int, error) {
	out, err := Map(ys)
	if err != nil {
		return nil, err
	}
	sort.Ints(out)
	return out, nil
}
