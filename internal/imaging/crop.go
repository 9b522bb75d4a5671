package imaging

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Region is a rectangular area in pixel coordinates.
// (X1,Y1) is inclusive, (X2,Y2) is exclusive.
type Region struct {
	X1 int `json:"x1" toml:"x1"`
	Y1 int `json:"y1" toml:"y1"`
	X2 int `json:"x2" toml:"x2"`
	Y2 int `json:"y2" toml:"y2"`
}

// IsZero reports whether the region is unset.
func (r Region) IsZero() bool {
	return r == Region{}
}

// Rect converts the region to an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Crop extracts a rectangular region from a grayscale image.
//
// The returned image is anchored at (0,0). Regions that fall outside the
// image or are empty are rejected rather than clipped, so a misconfigured
// region of interest is reported instead of silently digitizing the wrong
// panel.
func Crop(img *image.Gray, r Region) (*image.Gray, error) {
	bounds := img.Bounds()

	if r.X1 < bounds.Min.X || r.Y1 < bounds.Min.Y || r.X2 > bounds.Max.X || r.Y2 > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.X1, r.Y1, r.X2, r.Y2, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return ToGray(imaging.Crop(img, r.Rect())), nil
}
