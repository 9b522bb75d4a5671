package digitizer

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
)

// Native is the pure Go digitizer.
type Native struct {
	opts   Options
	logger zerolog.Logger
}

// NewNative creates a native digitizer.
func NewNative(opts Options, logger zerolog.Logger) *Native {
	return &Native{
		opts:   opts,
		logger: logger.With().Str("backend", BackendNative).Logger(),
	}
}

// Digitize loads path and extracts its raw pixel series.
func (n *Native) Digitize(path string) (*Result, error) {
	img, err := imaging.LoadGray(path)
	if err != nil {
		return nil, err
	}
	return n.DigitizeImage(img)
}

// DigitizeImage extracts the raw pixel series from an already decoded image.
func (n *Native) DigitizeImage(img *image.Gray) (*Result, error) {
	edges, err := n.Edges(img)
	if err != nil {
		return nil, err
	}

	contours := imaging.FindExternalContours(edges)
	res := collect(contours, n.opts.LargestContourOnly)

	n.logger.Debug().
		Int("edge_pixels", edges.Count()).
		Int("contours_found", res.Found).
		Int("contours_used", res.Contours).
		Int("points", len(res.Series)).
		Msg("digitized")

	if len(res.Series) == 0 {
		return nil, ErrNoWaveform
	}
	return res, nil
}

// Edges crops, blurs and edge-detects img without tracing contours.
func (n *Native) Edges(img *image.Gray) (*imaging.EdgeMap, error) {
	if err := checkROI(n.opts.ROI, img.Bounds()); err != nil {
		return nil, err
	}
	if !n.opts.ROI.IsZero() {
		cropped, err := imaging.Crop(img, n.opts.ROI)
		if err != nil {
			return nil, fmt.Errorf("crop region of interest: %w", err)
		}
		img = cropped
	}

	return imaging.Canny(imaging.Blur(img), n.opts.CannyLow, n.opts.CannyHigh), nil
}
