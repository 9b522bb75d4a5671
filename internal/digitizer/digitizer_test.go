package digitizer

import (
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
)

// band is a horizontal dark stroke on the strip.
type band struct {
	x1, x2, y, thickness int
}

// createStripImage renders white paper with dark horizontal strokes.
func createStripImage(width, height int, bands ...band) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, b := range bands {
		for y := b.y - b.thickness/2; y <= b.y+b.thickness/2; y++ {
			for x := b.x1; x <= b.x2; x++ {
				img.SetGray(x, y, color.Gray{0})
			}
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strip.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestNative_Digitize(t *testing.T) {
	path := writePNG(t, createStripImage(200, 100, band{20, 180, 50, 3}))

	d := NewNative(DefaultOptions(), zerolog.Nop())
	res, err := d.Digitize(path)
	if err != nil {
		t.Fatalf("Digitize failed: %v", err)
	}

	if len(res.Series) == 0 {
		t.Fatal("expected a non-empty series")
	}
	if res.Contours < 1 || res.Contours != res.Found {
		t.Errorf("contours: used %d, found %d", res.Contours, res.Found)
	}
	for i, y := range res.Series {
		if y < 44 || y > 56 {
			t.Fatalf("series[%d] = %d lies away from the stroke at y=50", i, y)
		}
	}
}

func TestNative_BlankImage(t *testing.T) {
	d := NewNative(DefaultOptions(), zerolog.Nop())

	_, err := d.DigitizeImage(createStripImage(100, 60))
	if !errors.Is(err, ErrNoWaveform) {
		t.Errorf("expected ErrNoWaveform, got %v", err)
	}
}

func TestNative_MissingFile(t *testing.T) {
	d := NewNative(DefaultOptions(), zerolog.Nop())

	_, err := d.Digitize(filepath.Join(t.TempDir(), "missing.png"))
	if !errors.Is(err, imaging.ErrImageLoad) {
		t.Errorf("expected ErrImageLoad, got %v", err)
	}
}

func TestNative_LargestContourOnly(t *testing.T) {
	img := createStripImage(200, 120, band{20, 180, 40, 3}, band{20, 40, 90, 3})

	all, err := NewNative(DefaultOptions(), zerolog.Nop()).DigitizeImage(img)
	if err != nil {
		t.Fatalf("DigitizeImage failed: %v", err)
	}
	if all.Contours < 2 {
		t.Fatalf("expected both strokes to produce contours, got %d", all.Contours)
	}

	opts := DefaultOptions()
	opts.LargestContourOnly = true
	largest, err := NewNative(opts, zerolog.Nop()).DigitizeImage(img)
	if err != nil {
		t.Fatalf("DigitizeImage failed: %v", err)
	}
	if largest.Contours != 1 {
		t.Errorf("contours used: got %d, want 1", largest.Contours)
	}
	if largest.Found != all.Found {
		t.Errorf("found: got %d, want %d", largest.Found, all.Found)
	}
	for _, y := range largest.Series {
		if y > 60 {
			t.Fatalf("largest contour should be the long stroke, got y=%d", y)
		}
	}
}

func TestNative_ROI(t *testing.T) {
	img := createStripImage(200, 120, band{20, 180, 90, 3})

	opts := DefaultOptions()
	opts.ROI = imaging.Region{X1: 0, Y1: 0, X2: 200, Y2: 60}
	if _, err := NewNative(opts, zerolog.Nop()).DigitizeImage(img); !errors.Is(err, ErrNoWaveform) {
		t.Errorf("stroke outside the region should not be digitized, got %v", err)
	}

	opts.ROI = imaging.Region{X1: 0, Y1: 60, X2: 200, Y2: 120}
	res, err := NewNative(opts, zerolog.Nop()).DigitizeImage(img)
	if err != nil {
		t.Fatalf("DigitizeImage failed: %v", err)
	}
	for _, y := range res.Series {
		if y < 24 || y > 36 {
			t.Fatalf("series should be relative to the region, got y=%d", y)
		}
	}

	opts.ROI = imaging.Region{X1: 0, Y1: 0, X2: 300, Y2: 60}
	if _, err := NewNative(opts, zerolog.Nop()).DigitizeImage(img); !errors.Is(err, ErrRegion) {
		t.Errorf("expected ErrRegion for region larger than the image, got %v", err)
	}
}

func TestNew_Backends(t *testing.T) {
	tests := []struct {
		backend string
		wantErr bool
	}{
		{"", false},
		{BackendNative, false},
		{"tensorflow", true},
	}

	for _, tt := range tests {
		opts := DefaultOptions()
		opts.Backend = tt.backend
		d, err := New(opts, zerolog.Nop())
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%q): err = %v, wantErr %v", tt.backend, err, tt.wantErr)
		}
		if !tt.wantErr && d == nil {
			t.Errorf("New(%q) returned nil digitizer", tt.backend)
		}
	}
}

func TestCollect_Order(t *testing.T) {
	contours := []imaging.Contour{
		{Points: []image.Point{{0, 3}, {1, 4}}, Area: 1},
		{Points: []image.Point{{5, 7}, {6, 8}, {7, 9}}, Area: 4},
	}

	res := collect(contours, false)
	want := []int{3, 4, 7, 8, 9}
	if len(res.Series) != len(want) {
		t.Fatalf("series: got %v, want %v", res.Series, want)
	}
	for i := range want {
		if res.Series[i] != want[i] {
			t.Errorf("series[%d]: got %d, want %d", i, res.Series[i], want[i])
		}
	}

	res = collect(contours, true)
	if res.Contours != 1 || len(res.Series) != 3 || res.Series[0] != 7 {
		t.Errorf("largest only: got %+v", res)
	}
}
