package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/convolution"
)

// binomial5 is the separable 1-D Gaussian that OpenCV derives for a 5-tap
// kernel with sigma left at zero (sigma = 1.1).
var binomial5 = [5]float64{1, 4, 6, 4, 1}

// gaussianKernel returns the 5x5 outer product of binomial5, normalized to
// sum to 1 (total weight 256 before normalization).
func gaussianKernel() convolution.Matrix {
	k := convolution.NewKernel(5, 5)
	for y := 0; y < 5; y++ {
		for x := 0; x < 5; x++ {
			k.Matrix[y*5+x] = binomial5[y] * binomial5[x]
		}
	}
	return k.Normalized()
}

// Blur applies a fixed 5x5 Gaussian blur to suppress scan noise before edge
// detection.
//
// Border pixels use replicated edge values. The result is quantized back to
// 8 bits, like any uint8 image filter.
func Blur(img *image.Gray) *image.Gray {
	blurred := convolution.Convolve(img, gaussianKernel(), &convolution.Options{
		Bias:      0,
		Wrap:      false,
		KeepAlpha: true,
	})

	b := blurred.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		src := blurred.Pix[y*blurred.Stride:]
		dst := out.Pix[y*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			dst[x] = src[x*4]
		}
	}
	return out
}
