//go:build gocv

package digitizer

import (
	"fmt"
	"image"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
)

// OpenCV digitizes with the OpenCV primitives the original trace tooling
// was built on.
type OpenCV struct {
	opts   Options
	logger zerolog.Logger
}

func newOpenCV(opts Options, logger zerolog.Logger) (Digitizer, error) {
	return &OpenCV{
		opts:   opts,
		logger: logger.With().Str("backend", BackendOpenCV).Logger(),
	}, nil
}

// Digitize loads path through OpenCV and extracts its raw pixel series.
func (o *OpenCV) Digitize(path string) (*Result, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		img.Close()
		return nil, fmt.Errorf("%w: %s: opencv could not decode file", imaging.ErrImageLoad, path)
	}
	defer img.Close()

	src := img
	if !o.opts.ROI.IsZero() {
		if err := checkROI(o.opts.ROI, image.Rect(0, 0, img.Cols(), img.Rows())); err != nil {
			return nil, err
		}
		src = img.Region(o.opts.ROI.Rect())
		defer src.Close()
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(src, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(o.opts.CannyLow), float32(o.opts.CannyHigh))

	pv := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer pv.Close()

	contours := make([]imaging.Contour, 0, pv.Size())
	for i := 0; i < pv.Size(); i++ {
		c := pv.At(i)
		contours = append(contours, imaging.Contour{
			Points: c.ToPoints(),
			Area:   gocv.ContourArea(c),
			Bounds: gocv.BoundingRect(c),
		})
	}

	res := collect(contours, o.opts.LargestContourOnly)

	o.logger.Debug().
		Int("contours_found", res.Found).
		Int("contours_used", res.Contours).
		Int("points", len(res.Series)).
		Msg("digitized")

	if len(res.Series) == 0 {
		return nil, ErrNoWaveform
	}
	return res, nil
}
