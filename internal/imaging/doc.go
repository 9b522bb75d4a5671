// Package imaging provides the image processing stages used to recover a
// heart-rate trace from a scanned CTG strip.
//
// This package implements grayscale loading, region cropping, noise
// suppression, Canny edge detection and external contour extraction. All
// operations work on *image.Gray grids whose bounds start at (0,0), with X
// increasing rightward and Y increasing downward.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// # Pipeline
//
// The digitizer chains the stages in a fixed order:
//
//  1. LoadGray / DecodeGray: decode PNG, JPEG, GIF, TIFF or BMP into luminance
//  2. Crop: optional region of interest
//  3. Blur: fixed 5x5 Gaussian kernel
//  4. Canny: gradient, non-maximum suppression, hysteresis
//  5. FindExternalContours: outer boundaries of connected edge components
//
// # Thread Safety
//
// Every function is stateless and allocates its own output. Inputs are only
// read, so the same image may be processed from several goroutines.
//
// # Error Handling
//
// Decoding failures are reported wrapped around ErrImageLoad so callers can
// test for them with errors.Is. Invalid crop regions return plain errors.
package imaging
