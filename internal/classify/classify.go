// Package classify labels a CTG feature set as Normal, Suspicious or
// Pathological.
//
// Each of baseline, variability and decelerations is placed in a tier
// (Reassuring, Non-reassuring, Abnormal) using configurable bands. A fixed
// precedence of rules then decides the label; combinations no rule covers
// are handed to a trained model.
//
// Decision order, first match wins:
//
//  1. Sinusoidal pattern: Pathological
//  2. All reassuring: Normal
//  3. One non-reassuring, two reassuring: Suspicious
//  4. Any abnormal, or two or more non-reassuring: Pathological
//  5. Otherwise: model prediction
//
// Rules 3 and the multiple non-reassuring half of rule 4 can be switched off
// to reproduce the older "normal, pathological or model" behaviour.
package classify

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/features"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/model"
)

// Label is the fetal status class.
type Label int

const (
	Normal Label = iota
	Suspicious
	Pathological
)

var labelNames = [...]string{"Normal", "Suspicious", "Pathological"}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// MarshalText encodes the label by name.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// Source tells whether a rule or the model produced a label.
type Source string

const (
	SourceRule  Source = "rule"
	SourceModel Source = "model"
)

// Result is a classification outcome.
type Result struct {
	Label         Label      `json:"label"`
	Source        Source     `json:"label_source"`
	Reason        string     `json:"reason"`
	Categories    Categories `json:"categories"`
	Probabilities []float64  `json:"probabilities,omitempty"`
}

// Classifier applies the rules and falls back to a model.
type Classifier struct {
	rules  Rules
	model  model.Ref
	logger zerolog.Logger
}

// New creates a classifier. The model may be unavailable; only feature
// sets that reach the fallback then fail.
func New(rules Rules, ref model.Ref, logger zerolog.Logger) *Classifier {
	return &Classifier{rules: rules, model: ref, logger: logger}
}

// Rules returns the classifier's rule configuration.
func (c *Classifier) Rules() Rules {
	return c.rules
}

// Classify labels fs.
func (c *Classifier) Classify(fs features.FeatureSet) (Result, error) {
	cats := c.rules.Categorize(fs)

	if label, reason, ok := c.rules.decide(fs, cats); ok {
		return Result{Label: label, Source: SourceRule, Reason: reason, Categories: cats}, nil
	}

	label, probs, err := c.predict(fs)
	if err != nil {
		return Result{Categories: cats}, err
	}

	c.logger.Debug().
		Stringer("baseline", cats.Baseline).
		Stringer("variability", cats.Variability).
		Stringer("decelerations", cats.Decelerations).
		Stringer("label", label).
		Msg("model fallback")

	return Result{
		Label:         label,
		Source:        SourceModel,
		Reason:        "model prediction",
		Categories:    cats,
		Probabilities: probs,
	}, nil
}

func (c *Classifier) predict(fs features.FeatureSet) (Label, []float64, error) {
	forest, err := c.model.Forest()
	if err != nil {
		return 0, nil, err
	}

	sinusoidal := 0.0
	if fs.IsSinusoidal {
		sinusoidal = 1
	}
	x, missing := forest.Vector(map[string]float64{
		"Baseline":      fs.Baseline,
		"Variability":   fs.Variability,
		"Decelerations": float64(fs.Decelerations),
		"IsSinusoidal":  sinusoidal,
	})
	if len(missing) > 0 {
		return 0, nil, fmt.Errorf("%w: classifier model expects unknown features %v", model.ErrModelUnavailable, missing)
	}

	idx, probs, err := forest.Predict(x)
	if err != nil {
		return 0, nil, err
	}
	code := forest.ClassCode(idx)
	if code < int(Normal) || code > int(Pathological) {
		return 0, nil, fmt.Errorf("classifier model returned class %d outside 0..2", code)
	}
	return Label(code), probs, nil
}
