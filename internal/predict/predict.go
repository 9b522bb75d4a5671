// Package predict serves fetal-health predictions from a flat record of
// numeric CTG measurements, without an image.
package predict

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/model"
)

// Missing-field policies.
const (
	// MissingReject fails the request and names the absent fields.
	MissingReject = "reject"
	// MissingDefault treats absent fields as 0.
	MissingDefault = "default"
)

// ErrMissingFeature is matched by *MissingFeatureError.
var ErrMissingFeature = errors.New("missing features")

// MissingFeatureError lists the model features a record did not provide.
type MissingFeatureError struct {
	Fields []string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing features: %s", strings.Join(e.Fields, ", "))
}

// Is reports whether target is ErrMissingFeature.
func (e *MissingFeatureError) Is(target error) bool {
	return target == ErrMissingFeature
}

// DefaultAliases maps alternate spellings onto the model's feature names.
// Browser clients send prolonged_decelerations; the fetal-health dataset
// spells it prolongued_decelerations.
var DefaultAliases = map[string]string{
	"prolonged_decelerations": "prolongued_decelerations",
}

// Diagnosis names for the fetal-health class codes.
var diagnoses = map[int]string{
	1: "Normal",
	2: "Suspicious",
	3: "Pathological",
}

// Diagnosis returns the name of a class code, or "Unknown".
func Diagnosis(code int) string {
	if d, ok := diagnoses[code]; ok {
		return d
	}
	return "Unknown"
}

// Result is the response of the numeric entry point.
type Result struct {
	Diagnosis     string    `json:"diagnosis"`
	Prediction    int       `json:"prediction"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Defaulted     []string  `json:"defaulted,omitempty"`
}

// Options configures a Predictor.
type Options struct {
	MissingPolicy string
	Aliases       map[string]string
}

// Predictor evaluates records against the fetal-health model.
type Predictor struct {
	model  model.Ref
	opts   Options
	logger zerolog.Logger
}

// New creates a Predictor. Nil aliases mean DefaultAliases.
func New(ref model.Ref, opts Options, logger zerolog.Logger) (*Predictor, error) {
	switch opts.MissingPolicy {
	case "":
		opts.MissingPolicy = MissingReject
	case MissingReject, MissingDefault:
	default:
		return nil, fmt.Errorf("unknown missing-field policy %q", opts.MissingPolicy)
	}
	if opts.Aliases == nil {
		opts.Aliases = DefaultAliases
	}
	return &Predictor{model: ref, opts: opts, logger: logger}, nil
}

// Predict classifies record. Field order in the record is irrelevant; values
// are placed in the model's feature order.
func (p *Predictor) Predict(record map[string]float64) (*Result, error) {
	forest, err := p.model.Forest()
	if err != nil {
		return nil, err
	}

	x, missing := forest.Vector(p.canonical(record))
	if len(missing) > 0 && p.opts.MissingPolicy == MissingReject {
		return nil, &MissingFeatureError{Fields: missing}
	}

	idx, probs, err := forest.Predict(x)
	if err != nil {
		return nil, err
	}
	code := forest.ClassCode(idx)

	res := &Result{
		Diagnosis:     Diagnosis(code),
		Prediction:    code,
		Probabilities: probs,
		Defaulted:     missing,
	}

	p.logger.Debug().
		Int("prediction", code).
		Str("diagnosis", res.Diagnosis).
		Strs("defaulted", missing).
		Msg("prediction")

	return res, nil
}

// canonical renames aliased fields. A field given under its canonical name
// wins over its alias.
func (p *Predictor) canonical(record map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(record))
	keys := make([]string, 0, len(record))
	for k := range record {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name, aliased := p.opts.Aliases[k]
		if !aliased {
			out[k] = record[k]
			continue
		}
		if _, direct := record[name]; !direct {
			out[name] = record[k]
		}
	}
	return out
}
