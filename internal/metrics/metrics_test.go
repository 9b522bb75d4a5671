package metrics

import (
	"strings"
	"sync"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// parseText decodes an exposition back into metric families.
func parseText(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	if err != nil {
		t.Fatalf("exposition does not parse: %v\n%s", err, text)
	}
	return mfs
}

func sumFamily(mf *dto.MetricFamily) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}

func TestCounter_Inc(t *testing.T) {
	m := New()
	m.Analyses.Inc("Normal", "rule")
	m.Analyses.Inc("Normal", "rule")
	m.Analyses.Inc("Suspicious", "model")

	if got := m.Analyses.Value("Normal", "rule"); got != 2 {
		t.Errorf("Normal/rule: got %v, want 2", got)
	}
	if got := m.Analyses.Value("Pathological", "rule"); got != 0 {
		t.Errorf("unseen labels: got %v, want 0", got)
	}
}

func TestCounter_WrongArity(t *testing.T) {
	m := New()
	m.Errors.Inc("ImageLoadError", "extra")
	if got := m.Errors.Value("ImageLoadError"); got != 0 {
		t.Errorf("mismatched label count should be ignored, got %v", got)
	}
}

func TestText(t *testing.T) {
	m := New()
	m.Analyses.Inc("Normal", "rule")
	m.Errors.Inc("ImageLoadError")
	m.Errors.Inc("DegenerateRangeError")
	m.Predictions.Add(3, "Pathological")

	text, err := m.Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if !strings.Contains(text, `ctg_analyses_total{label="Normal",source="rule"} 1`) {
		t.Errorf("missing analysis sample:\n%s", text)
	}
	if !strings.Contains(text, "# TYPE ctg_pipeline_errors_total counter") {
		t.Errorf("missing TYPE line:\n%s", text)
	}

	mfs := parseText(t, text)
	if got := sumFamily(mfs["ctg_pipeline_errors_total"]); got != 2 {
		t.Errorf("errors total: got %v, want 2", got)
	}
	if got := sumFamily(mfs["ctg_predictions_total"]); got != 3 {
		t.Errorf("predictions total: got %v, want 3", got)
	}
}

func TestText_Empty(t *testing.T) {
	text, err := New().Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	if text != "" {
		t.Errorf("families without samples should be omitted, got:\n%s", text)
	}
}

func TestText_SortedFamilies(t *testing.T) {
	m := New()
	m.Predictions.Inc("Normal")
	m.Analyses.Inc("Normal", "rule")

	text, err := m.Text()
	if err != nil {
		t.Fatalf("Text failed: %v", err)
	}
	a := strings.Index(text, "ctg_analyses_total")
	p := strings.Index(text, "ctg_predictions_total")
	if a < 0 || p < 0 || a > p {
		t.Errorf("families should be gathered in name order:\n%s", text)
	}
	if strings.Contains(text, "ctg_pipeline_errors_total") {
		t.Errorf("empty errors family should be omitted:\n%s", text)
	}
}

func TestConcurrentInc(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Predictions.Inc("Normal")
			}
		}()
	}
	wg.Wait()

	if got := m.Predictions.Value("Normal"); got != 800 {
		t.Errorf("got %v, want 800", got)
	}
}
