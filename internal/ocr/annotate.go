package ocr

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	ctgimaging "github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
)

// Word is a recognized word and where it was found.
type Word struct {
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Bounds     ctgimaging.Region `json:"bounds"`
}

// Annotations is the text read from a strip.
type Annotations struct {
	Text       string `json:"text"`
	Words      []Word `json:"words,omitempty"`
	PaperSpeed string `json:"paper_speed,omitempty"`
}

// Reader runs Tesseract with a fixed language and confidence floor.
type Reader struct {
	language      string
	minConfidence float64
	region        ctgimaging.Region
}

// NewReader creates a reader. Words below minConfidence (0..1) are dropped.
// A non-zero region limits reading to that part of each image, such as the
// header band where monitors print paper speed and patient details.
func NewReader(language string, minConfidence float64, region ctgimaging.Region) *Reader {
	if language == "" {
		language = "eng"
	}
	return &Reader{language: language, minConfidence: minConfidence, region: region}
}

// Read performs OCR on an image file. Word bounds are in the coordinates
// of the whole image.
func (r *Reader) Read(path string) (*Annotations, error) {
	if r.region.IsZero() {
		return r.readFile(path)
	}
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	return r.readRegion(img, r.region)
}

func (r *Reader) readFile(path string) (*Annotations, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetImage(path); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}
	text = strings.TrimSpace(text)

	res := &Annotations{Text: text, PaperSpeed: paperSpeed(text)}

	// Word boxes are optional; keep the text if they fail.
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return res, nil
	}
	for _, box := range boxes {
		conf := float64(box.Confidence) / 100.0
		if strings.TrimSpace(box.Word) == "" || conf < r.minConfidence {
			continue
		}
		res.Words = append(res.Words, Word{
			Text:       box.Word,
			Confidence: conf,
			Bounds: ctgimaging.Region{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return res, nil
}

// readRegion reads one region of an in-memory image. Tesseract needs a
// file, so the crop goes through a temporary PNG.
func (r *Reader) readRegion(img image.Image, region ctgimaging.Region) (*Annotations, error) {
	if !region.Rect().In(img.Bounds()) || region.X1 >= region.X2 || region.Y1 >= region.Y2 {
		return nil, fmt.Errorf("region (%d,%d)-(%d,%d) outside image bounds", region.X1, region.Y1, region.X2, region.Y2)
	}
	cropped := imaging.Crop(img, region.Rect())

	tmp, err := os.CreateTemp("", "ctg-ocr-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := png.Encode(tmp, cropped); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to encode temp image: %w", err)
	}
	tmp.Close()

	res, err := r.readFile(tmpPath)
	if err != nil {
		return nil, err
	}

	for i := range res.Words {
		b := &res.Words[i].Bounds
		b.X1 += region.X1
		b.Y1 += region.Y1
		b.X2 += region.X1
		b.Y2 += region.Y1
	}
	return res, nil
}

// Version returns the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}

var paperSpeedPattern = regexp.MustCompile(`(?i)\b([0-9](?:[.,][0-9])?)\s*cm\s*/\s*min\b`)

// paperSpeed finds a "<n> cm/min" marking in text.
func paperSpeed(text string) string {
	m := paperSpeedPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(m[1], ",", ".") + " cm/min"
}
