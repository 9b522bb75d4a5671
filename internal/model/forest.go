// Package model evaluates random-forest classifiers exported to YAML.
//
// # File Format
//
// A model file describes a fitted forest of binary decision trees:
//
//	name: fetal-health-rf
//	feature_names: [baseline_value, accelerations, ...]
//	classes: [1, 2, 3]
//	scaler:            # optional standardization applied before the trees
//	  mean:  [...]
//	  scale: [...]
//	trees:
//	  - nodes:
//	      - {feature: 0, threshold: 120.5, left: 1, right: 2}
//	      - {feature: -1, value: [40, 2, 0]}
//	      - {feature: -1, value: [1, 10, 30]}
//
// A node with feature -1 is a leaf; its value holds per-class sample counts
// or weights. Internal nodes send a sample left when x[feature] <= threshold.
// Child indices must be larger than the parent index, which rules out cycles.
//
// # Prediction
//
// Each tree's leaf value is normalized to a probability distribution; the
// forest averages those distributions and predicts the first class with the
// highest mean probability.
//
// # Thread Safety
//
// A Forest is immutable after Load and safe for concurrent use.
package model

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrModelUnavailable is returned when a prediction needs a model that was
// not configured or failed to load.
var ErrModelUnavailable = errors.New("model unavailable")

// Scaler standardizes inputs as (x - mean) / scale.
type Scaler struct {
	Mean  []float64 `yaml:"mean"`
	Scale []float64 `yaml:"scale"`
}

// Node is one decision tree node.
type Node struct {
	Feature   int       `yaml:"feature"`
	Threshold float64   `yaml:"threshold"`
	Left      int       `yaml:"left"`
	Right     int       `yaml:"right"`
	Value     []float64 `yaml:"value"`
}

// IsLeaf reports whether the node terminates the walk.
func (n Node) IsLeaf() bool {
	return n.Feature < 0
}

// Tree is a binary decision tree rooted at Nodes[0].
type Tree struct {
	Nodes []Node `yaml:"nodes"`
}

// Forest is a fitted random-forest classifier.
type Forest struct {
	Name         string   `yaml:"name"`
	FeatureNames []string `yaml:"feature_names"`
	Classes      []int    `yaml:"classes"`
	Scaler       *Scaler  `yaml:"scaler,omitempty"`
	Trees        []Tree   `yaml:"trees"`
}

// Load reads and validates a model file.
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a model document. Unknown keys are rejected.
func Parse(data []byte) (*Forest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f Forest
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the structural consistency of the forest.
func (f *Forest) Validate() error {
	nf := len(f.FeatureNames)
	if nf == 0 {
		return errors.New("model has no feature_names")
	}
	if len(f.Trees) == 0 {
		return errors.New("model has no trees")
	}

	nc := len(f.Classes)
	if s := f.Scaler; s != nil {
		if len(s.Mean) != nf || len(s.Scale) != nf {
			return fmt.Errorf("scaler has %d means and %d scales, want %d", len(s.Mean), len(s.Scale), nf)
		}
	}

	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", t)
		}
		for i, n := range tree.Nodes {
			if n.IsLeaf() {
				if len(n.Value) == 0 {
					return fmt.Errorf("tree %d leaf %d has no value", t, i)
				}
				if nc == 0 {
					nc = len(n.Value)
				}
				if len(n.Value) != nc {
					return fmt.Errorf("tree %d leaf %d has %d class values, want %d", t, i, len(n.Value), nc)
				}
				continue
			}
			if n.Feature >= nf {
				return fmt.Errorf("tree %d node %d uses feature %d of %d", t, i, n.Feature, nf)
			}
			if math.IsNaN(n.Threshold) {
				return fmt.Errorf("tree %d node %d has NaN threshold", t, i)
			}
			for _, c := range []int{n.Left, n.Right} {
				if c <= i || c >= len(tree.Nodes) {
					return fmt.Errorf("tree %d node %d has invalid child %d", t, i, c)
				}
			}
		}
	}
	return nil
}

// NumClasses returns the number of output classes.
func (f *Forest) NumClasses() int {
	if len(f.Classes) > 0 {
		return len(f.Classes)
	}
	for _, n := range f.Trees[0].Nodes {
		if n.IsLeaf() {
			return len(n.Value)
		}
	}
	return 0
}

// ClassCode returns the label code of class index i. Without explicit
// classes the index is the code.
func (f *Forest) ClassCode(i int) int {
	if i >= 0 && i < len(f.Classes) {
		return f.Classes[i]
	}
	return i
}

// Predict returns the winning class index and the averaged class
// probabilities for x, given in FeatureNames order.
func (f *Forest) Predict(x []float64) (int, []float64, error) {
	if len(x) != len(f.FeatureNames) {
		return 0, nil, fmt.Errorf("model expects %d features, got %d", len(f.FeatureNames), len(x))
	}

	x = f.scale(x)
	probs := make([]float64, f.NumClasses())
	for _, tree := range f.Trees {
		leaf := tree.leaf(x)
		var sum float64
		for _, v := range leaf.Value {
			sum += v
		}
		if sum <= 0 {
			continue
		}
		for c, v := range leaf.Value {
			probs[c] += v / sum
		}
	}

	best := 0
	for c := range probs {
		probs[c] /= float64(len(f.Trees))
		if probs[c] > probs[best] {
			best = c
		}
	}
	return best, probs, nil
}

func (f *Forest) scale(x []float64) []float64 {
	if f.Scaler == nil {
		return x
	}
	out := make([]float64, len(x))
	for i, v := range x {
		s := f.Scaler.Scale[i]
		if s == 0 {
			s = 1
		}
		out[i] = (v - f.Scaler.Mean[i]) / s
	}
	return out
}

// leaf walks the tree for x. Validate guarantees termination.
func (t Tree) leaf(x []float64) Node {
	i := 0
	for {
		n := t.Nodes[i]
		if n.IsLeaf() {
			return n
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Vector orders named values into the model's feature order. Names the
// record does not carry are returned in missing, and their slots are zero.
func (f *Forest) Vector(values map[string]float64) (x []float64, missing []string) {
	x = make([]float64, len(f.FeatureNames))
	for i, name := range f.FeatureNames {
		v, ok := values[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		x[i] = v
	}
	return x, missing
}

// Info summarizes the model for display.
type Info struct {
	Name         string   `json:"name"`
	FeatureNames []string `json:"feature_names"`
	Classes      []int    `json:"classes"`
	Trees        int      `json:"trees"`
	Scaled       bool     `json:"scaled"`
}

// Info returns a summary of f.
func (f *Forest) Info() Info {
	classes := make([]int, f.NumClasses())
	for i := range classes {
		classes[i] = f.ClassCode(i)
	}
	return Info{
		Name:         f.Name,
		FeatureNames: f.FeatureNames,
		Classes:      classes,
		Trees:        len(f.Trees),
		Scaled:       f.Scaler != nil,
	}
}
