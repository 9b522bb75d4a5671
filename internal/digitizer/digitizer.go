// Package digitizer turns a scanned CTG strip into a raw pixel series.
//
// A digitizer loads the image as grayscale, optionally crops it to a region
// of interest, blurs it with a fixed 5x5 Gaussian, runs a Canny edge
// detector and extracts the external contours. The y coordinate of every
// contour point, in contour order and then traversal order, forms the raw
// series handed to the bpm normalizer.
//
// Two backends exist. The native backend is pure Go and always available.
// The opencv backend uses gocv and is compiled only with the gocv build tag:
//
//	go build -tags gocv ./...
package digitizer

import (
	"errors"
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
)

// Backend names accepted by New.
const (
	BackendNative = "native"
	BackendOpenCV = "opencv"
)

var (
	// ErrNoWaveform is returned when no contour points survive extraction.
	ErrNoWaveform = errors.New("no waveform detected")

	// ErrRegion is returned when the region of interest does not fit the
	// image.
	ErrRegion = errors.New("invalid region of interest")
)

// Options controls edge detection and contour selection.
type Options struct {
	// Backend is BackendNative or BackendOpenCV.
	Backend string `toml:"backend"`

	// CannyLow and CannyHigh are the hysteresis thresholds.
	CannyLow  float64 `toml:"canny_low"`
	CannyHigh float64 `toml:"canny_high"`

	// LargestContourOnly keeps only the first contour of maximal area
	// instead of every external contour.
	LargestContourOnly bool `toml:"largest_contour_only"`

	// ROI restricts digitization to a region of the image. Zero means the
	// whole image.
	ROI imaging.Region `toml:"roi"`
}

// DefaultOptions returns the thresholds used for paper CTG scans.
func DefaultOptions() Options {
	return Options{
		Backend:   BackendNative,
		CannyLow:  50,
		CannyHigh: 150,
	}
}

// Result is the output of one digitization.
type Result struct {
	// Series holds the y coordinate of every kept contour point.
	Series []int

	// Contours is the number of contours that contributed to Series.
	Contours int

	// Found is the number of external contours before selection.
	Found int
}

// Digitizer extracts a raw pixel series from an image file.
type Digitizer interface {
	Digitize(path string) (*Result, error)
}

// New returns the digitizer for opts.Backend.
func New(opts Options, logger zerolog.Logger) (Digitizer, error) {
	switch opts.Backend {
	case "", BackendNative:
		return NewNative(opts, logger), nil
	case BackendOpenCV:
		return newOpenCV(opts, logger)
	default:
		return nil, fmt.Errorf("unknown digitizer backend %q", opts.Backend)
	}
}

// collect flattens the selected contours into a y series.
func collect(contours []imaging.Contour, largestOnly bool) *Result {
	selected := contours
	if largestOnly {
		if i := imaging.LargestContour(contours); i >= 0 {
			selected = contours[i : i+1]
		}
	}

	n := 0
	for _, c := range selected {
		n += len(c.Points)
	}

	series := make([]int, 0, n)
	for _, c := range selected {
		for _, p := range c.Points {
			series = append(series, p.Y)
		}
	}

	return &Result{
		Series:   series,
		Contours: len(selected),
		Found:    len(contours),
	}
}

// checkROI validates a region of interest against image dimensions.
func checkROI(r imaging.Region, bounds image.Rectangle) error {
	if r.IsZero() {
		return nil
	}
	if !r.Rect().In(bounds) || r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return fmt.Errorf("%w: (%d,%d)-(%d,%d) does not fit image %dx%d",
			ErrRegion, r.X1, r.Y1, r.X2, r.Y2, bounds.Dx(), bounds.Dy())
	}
	return nil
}
