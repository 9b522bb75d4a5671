// Package metrics counts pipeline outcomes and renders them in the
// Prometheus text exposition format.
package metrics

import (
	"bytes"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Counter is a set of counters partitioned by label values.
type Counter struct {
	vec *prometheus.CounterVec
}

// Inc adds one to the counter for the given label values, which must match
// the vector's label names in number and order. Mismatched values are
// dropped.
func (c *Counter) Inc(values ...string) {
	c.Add(1, values...)
}

// Add adds v to the counter for the given label values.
func (c *Counter) Add(v float64, values ...string) {
	m, err := c.vec.GetMetricWithLabelValues(values...)
	if err != nil {
		return
	}
	m.Add(v)
}

// Value returns the current count for the given label values.
func (c *Counter) Value(values ...string) float64 {
	m, err := c.vec.GetMetricWithLabelValues(values...)
	if err != nil {
		return 0
	}
	var out dto.Metric
	if err := m.Write(&out); err != nil {
		return 0
	}
	return out.GetCounter().GetValue()
}

// Metrics holds the pipeline counters and the registry they live in.
type Metrics struct {
	// Analyses counts successful image analyses by label and label source.
	Analyses *Counter
	// Errors counts failed pipeline runs by error kind.
	Errors *Counter
	// Predictions counts numeric predictions by diagnosis.
	Predictions *Counter

	registry *prometheus.Registry
}

// New creates zeroed counters in a private registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.Analyses = m.counter("ctg_analyses_total", "Completed CTG image analyses.", "label", "source")
	m.Errors = m.counter("ctg_pipeline_errors_total", "Failed pipeline runs by error kind.", "kind")
	m.Predictions = m.counter("ctg_predictions_total", "Numeric fetal-health predictions by diagnosis.", "diagnosis")
	return m
}

func (m *Metrics) counter(name, help string, labels ...string) *Counter {
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
	m.registry.MustRegister(vec)
	return &Counter{vec: vec}
}

// WriteText writes every counter family that has samples in text
// exposition format.
func (m *Metrics) WriteText(w io.Writer) error {
	mfs, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// Text returns the exposition as a string.
func (m *Metrics) Text() (string, error) {
	var buf bytes.Buffer
	if err := m.WriteText(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
