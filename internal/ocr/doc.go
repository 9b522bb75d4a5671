// Package ocr reads the printed annotations of a scanned CTG strip using
// Tesseract.
//
// Paper strips carry the recording date, patient label and paper speed in
// their margins. None of that is needed for digitization, so annotation
// reading is optional and its failures are reported as warnings by the
// pipeline rather than aborting an analysis.
//
// # Prerequisites
//
// Tesseract must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// # Coordinates
//
// Word bounds are always reported in the coordinates of the full image,
// also when only a region was read.
//
// # Paper Speed
//
// Reader extracts the paper speed ("1 cm/min", "3 cm/min") when it appears
// in the text, since it determines how the x axis maps to time.
package ocr
