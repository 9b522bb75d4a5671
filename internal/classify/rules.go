package classify

import (
	"fmt"
	"math"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/features"
)

// Category is the clinical tier of a single feature.
type Category int

const (
	Reassuring Category = iota
	NonReassuring
	Abnormal
	// Indeterminate marks a feature whose value is not a finite number.
	Indeterminate
)

var categoryNames = [...]string{"Reassuring", "Non-reassuring", "Abnormal", "Indeterminate"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Categories holds the tier of each classified feature.
type Categories struct {
	Baseline      Category `json:"baseline"`
	Variability   Category `json:"variability"`
	Decelerations Category `json:"decelerations"`
}

func (c Categories) count(want Category) int {
	n := 0
	for _, got := range [...]Category{c.Baseline, c.Variability, c.Decelerations} {
		if got == want {
			n++
		}
	}
	return n
}

// Thresholds are the band boundaries, all inclusive, in bpm or counts.
type Thresholds struct {
	BaselineReassuringMin    float64 `toml:"baseline_reassuring_min"`
	BaselineReassuringMax    float64 `toml:"baseline_reassuring_max"`
	BaselineNonReassuringMin float64 `toml:"baseline_non_reassuring_min"`
	BaselineNonReassuringMax float64 `toml:"baseline_non_reassuring_max"`

	// VariabilityReassuringMin is the smallest reassuring standard deviation.
	VariabilityReassuringMin float64 `toml:"variability_reassuring_min"`

	// DecelerationsNonReassuringMax is the largest non-reassuring count;
	// anything above is abnormal and zero is reassuring.
	DecelerationsNonReassuringMax int `toml:"decelerations_non_reassuring_max"`
}

// Rules configures the decision tree.
type Rules struct {
	Thresholds

	// TwoTier collapses every non-reassuring band into Abnormal.
	TwoTier bool `toml:"two_tier"`

	// SuspiciousOnSingleNonReassuring labels one non-reassuring and two
	// reassuring categories Suspicious instead of deferring to the model.
	SuspiciousOnSingleNonReassuring bool `toml:"suspicious_on_single_non_reassuring"`

	// PathologicalOnMultipleNonReassuring labels two or more non-reassuring
	// categories Pathological instead of deferring to the model.
	PathologicalOnMultipleNonReassuring bool `toml:"pathological_on_multiple_non_reassuring"`
}

// DefaultRules returns the three-tier RCOG/NICE bands.
func DefaultRules() Rules {
	return Rules{
		Thresholds: Thresholds{
			BaselineReassuringMin:         110,
			BaselineReassuringMax:         160,
			BaselineNonReassuringMin:      100,
			BaselineNonReassuringMax:      180,
			VariabilityReassuringMin:      5,
			DecelerationsNonReassuringMax: 2,
		},
		SuspiciousOnSingleNonReassuring:     true,
		PathologicalOnMultipleNonReassuring: true,
	}
}

// Validate checks that the bands are ordered.
func (r Rules) Validate() error {
	t := r.Thresholds
	if !(t.BaselineNonReassuringMin <= t.BaselineReassuringMin &&
		t.BaselineReassuringMin <= t.BaselineReassuringMax &&
		t.BaselineReassuringMax <= t.BaselineNonReassuringMax) {
		return fmt.Errorf("baseline bands must satisfy non_reassuring_min <= reassuring_min <= reassuring_max <= non_reassuring_max, got %v <= %v <= %v <= %v",
			t.BaselineNonReassuringMin, t.BaselineReassuringMin, t.BaselineReassuringMax, t.BaselineNonReassuringMax)
	}
	if t.VariabilityReassuringMin < 0 {
		return fmt.Errorf("variability_reassuring_min must be >= 0, got %v", t.VariabilityReassuringMin)
	}
	if t.DecelerationsNonReassuringMax < 0 {
		return fmt.Errorf("decelerations_non_reassuring_max must be >= 0, got %d", t.DecelerationsNonReassuringMax)
	}
	return nil
}

// Categorize assigns a tier to each feature.
func (r Rules) Categorize(fs features.FeatureSet) Categories {
	return Categories{
		Baseline:      r.baseline(fs.Baseline),
		Variability:   r.variability(fs.Variability),
		Decelerations: r.decelerations(fs.Decelerations),
	}
}

func (r Rules) baseline(b float64) Category {
	switch {
	case math.IsNaN(b) || math.IsInf(b, 0):
		return Indeterminate
	case b >= r.BaselineReassuringMin && b <= r.BaselineReassuringMax:
		return Reassuring
	case !r.TwoTier && b >= r.BaselineNonReassuringMin && b <= r.BaselineNonReassuringMax:
		return NonReassuring
	default:
		return Abnormal
	}
}

func (r Rules) variability(v float64) Category {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Indeterminate
	case v >= r.VariabilityReassuringMin:
		return Reassuring
	default:
		return Abnormal
	}
}

func (r Rules) decelerations(n int) Category {
	switch {
	case n < 0:
		return Indeterminate
	case n == 0:
		return Reassuring
	case !r.TwoTier && n <= r.DecelerationsNonReassuringMax:
		return NonReassuring
	default:
		return Abnormal
	}
}

// decide applies the rule precedence. ok is false when no rule fires.
func (r Rules) decide(fs features.FeatureSet, cats Categories) (label Label, reason string, ok bool) {
	reassuring := cats.count(Reassuring)
	nonReassuring := cats.count(NonReassuring)

	switch {
	case fs.IsSinusoidal:
		return Pathological, "sinusoidal pattern", true
	case reassuring == 3:
		return Normal, "all categories reassuring", true
	case r.SuspiciousOnSingleNonReassuring && nonReassuring == 1 && reassuring == 2:
		return Suspicious, "single non-reassuring category", true
	case cats.count(Abnormal) > 0:
		return Pathological, "abnormal category", true
	case r.PathologicalOnMultipleNonReassuring && nonReassuring >= 2:
		return Pathological, "multiple non-reassuring categories", true
	}
	return 0, "", false
}
