package imaging

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder (common scanner output)
)

// ErrImageLoad reports that a source image is missing or cannot be decoded.
var ErrImageLoad = errors.New("image load failed")

// LoadGray reads an image file and converts it to an 8-bit luminance grid.
//
// Parameters:
//   - path: Path to the image file. Supported formats are PNG, JPEG, GIF,
//     TIFF and BMP. JPEG orientation tags are honoured so phone photos of a
//     strip come out upright.
//
// Returns:
//   - *image.Gray: Luminance grid with bounds starting at (0,0).
//   - error: Wraps ErrImageLoad if the file cannot be opened or decoded.
func LoadGray(path string) (*image.Gray, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageLoad, path, err)
	}
	return ToGray(img), nil
}

// DecodeGray decodes an image from a reader and converts it to luminance.
//
// It is the in-memory counterpart of LoadGray, used for uploaded bytes.
func DecodeGray(r io.Reader) (*image.Gray, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageLoad, err)
	}
	return ToGray(img), nil
}

// ToGray converts any image to an *image.Gray anchored at (0,0).
//
// Luminance uses the ITU-R BT.601 weights (0.299*R + 0.587*G + 0.114*B), the
// same conversion scanners and OpenCV apply when reading in grayscale mode.
// Alpha is ignored.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}

	nrgba := imaging.Grayscale(img)
	b := nrgba.Bounds()
	width, height := b.Dx(), b.Dy()

	gray := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		src := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		dst := gray.Pix[y*gray.Stride : y*gray.Stride+width]
		for x := 0; x < width; x++ {
			dst[x] = src[x*4]
		}
	}
	return gray
}
