package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"math"
)

// EdgeMap is a binary grid produced by edge detection.
//
// Pix is row-major with Width*Height entries; true marks an edge pixel.
type EdgeMap struct {
	Width  int
	Height int
	Pix    []bool
}

// newEdgeMap allocates an empty edge map.
func newEdgeMap(width, height int) *EdgeMap {
	return &EdgeMap{Width: width, Height: height, Pix: make([]bool, width*height)}
}

// At reports whether (x,y) is an edge pixel. Out-of-range coordinates are
// never edges.
func (m *EdgeMap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Count returns the number of edge pixels.
func (m *EdgeMap) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Image renders the edge map as a grayscale image with edges in white (255).
func (m *EdgeMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Pix {
		if v {
			img.Pix[(i/m.Width)*img.Stride+i%m.Width] = 255
		}
	}
	return img
}

// EdgeMapResult contains an edge map encoded as base64 PNG.
type EdgeMapResult struct {
	// Width of the edge image in pixels.
	Width int `json:"width"`

	// Height of the edge image in pixels.
	Height int `json:"height"`

	// EdgePixels is the number of pixels marked as edges.
	EdgePixels int `json:"edge_pixels"`

	// ImageBase64 is the edge image encoded as base64 PNG, edges in white.
	ImageBase64 string `json:"image_base64"`

	// MimeType is always "image/png".
	MimeType string `json:"mime_type"`
}

// Encode renders the edge map to a base64 PNG result.
func (m *EdgeMap) Encode() (*EdgeMapResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Image()); err != nil {
		return nil, fmt.Errorf("failed to encode edge image: %w", err)
	}

	return &EdgeMapResult{
		Width:       m.Width,
		Height:      m.Height,
		EdgePixels:  m.Count(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// Canny performs Canny edge detection on an already blurred grayscale image.
//
// Parameters:
//   - img: Grayscale source, typically the output of Blur.
//   - thresholdLow: Gradients below this are discarded. Typical value: 50.
//   - thresholdHigh: Gradients at or above this are strong edges. Typical
//     value: 150.
//
// # Algorithm
//
//  1. Gradient computation: Sobel operators for X and Y on 0-255 intensities,
//     magnitude = |Gx| + |Gy| (L1 norm, the usual Canny default)
//
//  2. Non-maximum suppression: keep only local maxima along the gradient
//     direction, quantized to 0°, 45°, 90° and 135°
//
//  3. Hysteresis thresholding:
//     - Pixels at or above thresholdHigh are strong edges (always kept)
//     - Pixels between the thresholds are weak edges, kept only when
//     connected (8-neighbourhood, transitively) to a strong edge
//     - Pixels below thresholdLow are discarded
//
// Border pixels are never edges.
func Canny(img *image.Gray, thresholdLow, thresholdHigh float64) *EdgeMap {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	edges := newEdgeMap(width, height)
	if width < 3 || height < 3 {
		return edges
	}

	at := func(x, y int) float64 {
		x = clamp(x, 0, width-1)
		y = clamp(y, 0, height-1)
		return float64(img.Pix[y*img.Stride+x])
	}

	// Compute gradients using Sobel operator
	magnitude := make([]float64, width*height)
	direction := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			gx := -at(x-1, y-1) + at(x+1, y-1) -
				2*at(x-1, y) + 2*at(x+1, y) -
				at(x-1, y+1) + at(x+1, y+1)
			gy := -at(x-1, y-1) - 2*at(x, y-1) - at(x+1, y-1) +
				at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)
			i := y*width + x
			magnitude[i] = math.Abs(gx) + math.Abs(gy)
			direction[i] = math.Atan2(gy, gx)
		}
	}

	// Non-maximum suppression
	suppressed := make([]float64, width*height)
	for y := 1; y < height-1; y++ {
		for x := 1; x < width-1; x++ {
			i := y*width + x
			mag := magnitude[i]
			if mag < thresholdLow {
				continue
			}

			// Y grows downward, so a positive angle points down-right.
			angle := direction[i]
			if angle < 0 {
				angle += math.Pi
			}
			var n1, n2 float64
			switch {
			case angle < math.Pi/8 || angle >= 7*math.Pi/8:
				n1 = magnitude[i-1]
				n2 = magnitude[i+1]
			case angle < 3*math.Pi/8:
				n1 = magnitude[i-width-1]
				n2 = magnitude[i+width+1]
			case angle < 5*math.Pi/8:
				n1 = magnitude[i-width]
				n2 = magnitude[i+width]
			default:
				n1 = magnitude[i-width+1]
				n2 = magnitude[i+width-1]
			}

			if mag >= n1 && mag >= n2 {
				suppressed[i] = mag
			}
		}
	}

	// Edge tracking by hysteresis
	stack := make([]int, 0, 64)
	for i, v := range suppressed {
		if v >= thresholdHigh && !edges.Pix[i] {
			edges.Pix[i] = true
			stack = append(stack, i)
		}
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			px, py := p%width, p/width
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := px+dx, py+dy
					if nx < 0 || ny < 0 || nx >= width || ny >= height {
						continue
					}
					n := ny*width + nx
					if !edges.Pix[n] && suppressed[n] > 0 && suppressed[n] >= thresholdLow {
						edges.Pix[n] = true
						stack = append(stack, n)
					}
				}
			}
		}
	}

	return edges
}

// clamp constrains an integer value to the range [min, max].
// Used for boundary handling in convolution operations.
func clamp(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
