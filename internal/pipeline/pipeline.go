// Package pipeline runs a CTG strip through digitization, normalization,
// feature extraction, plotting and classification.
//
// Stages run in order and the first failure ends the run. Failures are
// returned as *Error carrying the failing stage and a Kind that callers can
// switch on. Plotting and annotation reading are side products: their
// failures are recorded in Result.Warnings and the run continues.
//
// A Pipeline holds no per-run state and is safe for concurrent use.
package pipeline

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/bpm"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/classify"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/digitizer"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/features"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/metrics"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/ocr"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/plot"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/predict"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
)

// Annotator reads printed annotations from a strip image.
type Annotator interface {
	Read(path string) (*ocr.Annotations, error)
}

// Deps are the components a Pipeline is assembled from. Renderer and
// Annotator are optional.
type Deps struct {
	Digitizer  digitizer.Digitizer
	Edges      *digitizer.Native
	Features   features.Options
	Classifier *classify.Classifier
	Predictor  *predict.Predictor
	Renderer   *plot.Renderer
	Annotator  Annotator
	Store      *storage.Store
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Pipeline wires the stages together.
type Pipeline struct {
	d Deps
}

// New creates a pipeline. Digitizer, Classifier and Store are required.
func New(d Deps) (*Pipeline, error) {
	if d.Digitizer == nil || d.Classifier == nil || d.Store == nil {
		return nil, errors.New("pipeline needs a digitizer, a classifier and a store")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	return &Pipeline{d: d}, nil
}

// Metrics returns the pipeline counters.
func (p *Pipeline) Metrics() *metrics.Metrics {
	return p.d.Metrics
}

// Result is the outcome of one image analysis.
type Result struct {
	ID          string `json:"id"`
	SourceImage string `json:"source_image"`

	features.FeatureSet

	Label         classify.Label      `json:"label"`
	LabelSource   classify.Source     `json:"label_source"`
	Reason        string              `json:"reason"`
	Categories    classify.Categories `json:"categories"`
	Probabilities []float64           `json:"probabilities,omitempty"`

	PlotArtifact string           `json:"plot_artifact,omitempty"`
	SampleCount  int              `json:"sample_count"`
	ContourCount int              `json:"contour_count"`
	Annotations  *ocr.Annotations `json:"annotations,omitempty"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// AnalyzeFile analyzes the image at path.
func (p *Pipeline) AnalyzeFile(path string) (*Result, error) {
	return p.analyze(storage.NewID(), path)
}

// AnalyzeUpload stores an uploaded image under the storage root and
// analyzes it.
func (p *Pipeline) AnalyzeUpload(filename string, data []byte) (*Result, error) {
	if len(data) == 0 {
		return nil, p.fail(StageStore, fmt.Errorf("%w: empty upload", ErrInvalidInput))
	}

	id := storage.NewID()
	path, err := p.d.Store.SaveUpload(id, filename, data)
	if err != nil {
		return nil, p.fail(StageStore, err)
	}
	return p.analyze(id, path)
}

func (p *Pipeline) analyze(id, path string) (*Result, error) {
	log := p.d.Logger.With().Str("id", id).Logger()

	raw, err := p.d.Digitizer.Digitize(path)
	if err != nil {
		stage := StageDigitize
		if errors.Is(err, imaging.ErrImageLoad) {
			stage = StageLoad
		}
		return nil, p.fail(stage, err)
	}

	series, err := bpm.Normalize(raw.Series)
	if err != nil {
		return nil, p.fail(StageNormalize, err)
	}

	fs, err := features.Extract(series, p.d.Features)
	if err != nil {
		return nil, p.fail(StageFeatures, err)
	}

	res := &Result{
		ID:           id,
		SourceImage:  path,
		FeatureSet:   fs,
		SampleCount:  len(series),
		ContourCount: raw.Contours,
	}

	if p.d.Renderer != nil {
		plotPath := p.d.Store.PlotPath(id)
		if err := p.d.Renderer.Write(plotPath, series); err != nil {
			log.Warn().Err(err).Msg("plot failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("plot: %v", err))
		} else {
			res.PlotArtifact = plotPath
		}
	}

	cls, err := p.d.Classifier.Classify(fs)
	if err != nil {
		p.discardPlot(log, res.PlotArtifact)
		return nil, p.fail(StageClassify, err)
	}
	res.Label = cls.Label
	res.LabelSource = cls.Source
	res.Reason = cls.Reason
	res.Categories = cls.Categories
	res.Probabilities = cls.Probabilities

	if p.d.Annotator != nil {
		ann, err := p.d.Annotator.Read(path)
		if err != nil {
			log.Warn().Err(err).Msg("annotation reading failed")
			res.Warnings = append(res.Warnings, fmt.Sprintf("annotations: %v", err))
		} else {
			res.Annotations = ann
		}
	}

	p.d.Metrics.Analyses.Inc(res.Label.String(), string(res.LabelSource))
	log.Info().
		Stringer("label", res.Label).
		Str("source", string(res.LabelSource)).
		Float64("baseline", fs.Baseline).
		Float64("variability", fs.Variability).
		Int("decelerations", fs.Decelerations).
		Bool("sinusoidal", fs.IsSinusoidal).
		Int("samples", res.SampleCount).
		Msg("analysis complete")

	return res, nil
}

// Classify labels a caller-supplied feature set.
func (p *Pipeline) Classify(fs features.FeatureSet) (*classify.Result, error) {
	res, err := p.d.Classifier.Classify(fs)
	if err != nil {
		return nil, p.fail(StageClassify, err)
	}
	return &res, nil
}

// Predict runs the numeric-only entry point.
func (p *Pipeline) Predict(record map[string]float64) (*predict.Result, error) {
	if p.d.Predictor == nil {
		return nil, p.fail(StagePredict, fmt.Errorf("%w: no predictor configured", ErrInvalidInput))
	}
	if len(record) == 0 {
		return nil, p.fail(StagePredict, fmt.Errorf("%w: empty record", ErrInvalidInput))
	}

	res, err := p.d.Predictor.Predict(record)
	if err != nil {
		return nil, p.fail(StagePredict, err)
	}
	p.d.Metrics.Predictions.Inc(res.Diagnosis)
	return res, nil
}

// EdgeMap returns the edge map the digitizer would trace for path.
func (p *Pipeline) EdgeMap(path string) (*imaging.EdgeMap, error) {
	if p.d.Edges == nil {
		return nil, p.fail(StageDigitize, fmt.Errorf("%w: edge preview unavailable", ErrInvalidInput))
	}
	img, err := imaging.LoadGray(path)
	if err != nil {
		return nil, p.fail(StageLoad, err)
	}
	edges, err := p.d.Edges.Edges(img)
	if err != nil {
		return nil, p.fail(StageDigitize, err)
	}
	return edges, nil
}

// discardPlot removes a plot written for a run that then failed, so no
// plot is left without a result.
func (p *Pipeline) discardPlot(log zerolog.Logger, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", path).Msg("failed to remove plot")
	}
}

func (p *Pipeline) fail(stage Stage, err error) error {
	e := &Error{Kind: KindOf(err), Stage: stage, Err: err}
	p.d.Metrics.Errors.Inc(string(e.Kind))
	p.d.Logger.Warn().
		Str("stage", string(stage)).
		Str("kind", string(e.Kind)).
		Err(err).
		Msg("pipeline failed")
	return e
}
