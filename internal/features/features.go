// Package features derives the clinical summary of a bpm series.
package features

import (
	"errors"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// ErrEmptySeries is returned for a series with no samples.
var ErrEmptySeries = errors.New("empty bpm series")

// Options tunes the feature thresholds.
type Options struct {
	// DecelerationThreshold counts samples strictly below it, in bpm.
	DecelerationThreshold float64 `toml:"deceleration_threshold"`

	// SinusoidalMin and SinusoidalMax bound, exclusively, the dominant
	// frequency (cycles per sample) of a sinusoidal pattern.
	SinusoidalMin float64 `toml:"sinusoidal_min"`
	SinusoidalMax float64 `toml:"sinusoidal_max"`

	// ExcludeDC skips the zero-frequency bin when searching for the
	// dominant frequency.
	ExcludeDC bool `toml:"exclude_dc"`
}

// DefaultOptions returns the thresholds in clinical use.
func DefaultOptions() Options {
	return Options{
		DecelerationThreshold: 110,
		SinusoidalMin:         0.05,
		SinusoidalMax:         0.2,
	}
}

// FeatureSet is the summary the classifier works on.
type FeatureSet struct {
	Baseline          float64 `json:"Baseline"`
	Variability       float64 `json:"Variability"`
	Decelerations     int     `json:"Decelerations"`
	IsSinusoidal      bool    `json:"IsSinusoidal"`
	DominantFrequency float64 `json:"dominant_frequency"`
}

// Extract computes the feature set of series.
func Extract(series []int, opts Options) (FeatureSet, error) {
	if len(series) == 0 {
		return FeatureSet{}, ErrEmptySeries
	}

	x := make([]float64, len(series))
	decels := 0
	for i, v := range series {
		x[i] = float64(v)
		if x[i] < opts.DecelerationThreshold {
			decels++
		}
	}

	mean, variance := stat.PopMeanVariance(x, nil)
	freq := DominantFrequency(x, opts.ExcludeDC)

	return FeatureSet{
		Baseline:          mean,
		Variability:       math.Sqrt(variance),
		Decelerations:     decels,
		IsSinusoidal:      freq > opts.SinusoidalMin && freq < opts.SinusoidalMax,
		DominantFrequency: freq,
	}, nil
}

// DominantFrequency returns the frequency, in cycles per sample, of the
// strongest bin of the complex DFT of x. Frequencies of the upper half of the
// spectrum are negative. The first bin wins when magnitudes tie within
// rounding error.
func DominantFrequency(x []float64, excludeDC bool) float64 {
	n := len(x)
	start := 0
	if excludeDC {
		start = 1
	}
	if n <= start {
		return 0
	}

	src := make([]complex128, n)
	for i, v := range x {
		src[i] = complex(v, 0)
	}
	coeffs := fourier.NewCmplxFFT(n).Coefficients(nil, src)

	best, bestMag := start, cmplx.Abs(coeffs[start])
	for k := start + 1; k < n; k++ {
		mag := cmplx.Abs(coeffs[k])
		if mag > bestMag*(1+1e-9) && mag-bestMag > 1e-9 {
			best, bestMag = k, mag
		}
	}
	return fftFreq(best, n)
}

// fftFreq is the frequency of bin k in an n-point DFT, using the negative
// frequency convention for k >= ceil(n/2).
func fftFreq(k, n int) float64 {
	if k < (n+1)/2 {
		return float64(k) / float64(n)
	}
	return float64(k-n) / float64(n)
}
