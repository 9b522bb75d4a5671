package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/digitizer"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/predict"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	return fs
}

func TestDefault_Validates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if !strings.HasSuffix(cfg.StorageRoot, filepath.Join(DirName, "data")) {
		t.Errorf("storage root should default under %s, got %q", DirName, cfg.StorageRoot)
	}
	if cfg.Plot.Naming != storage.NamingUnique {
		t.Errorf("plot naming: got %q", cfg.Plot.Naming)
	}
	if cfg.Model.MissingPolicy != predict.MissingReject {
		t.Errorf("missing policy: got %q", cfg.Model.MissingPolicy)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"naming", func(c *Config) { c.Plot.Naming = "random" }, "plot naming"},
		{"plot size", func(c *Config) { c.Plot.Style.Width = 0 }, "plot size"},
		{"backend", func(c *Config) { c.Digitizer.Backend = "tensorflow" }, "backend"},
		{"canny order", func(c *Config) { c.Digitizer.CannyLow = 200 }, "canny"},
		{"sinusoidal band", func(c *Config) { c.Features.SinusoidalMin = 0.3 }, "sinusoidal"},
		{"rules", func(c *Config) { c.Rules.BaselineReassuringMin = 170 }, "rules"},
		{"missing policy", func(c *Config) { c.Model.MissingPolicy = "zero" }, "missing policy"},
		{"ocr confidence", func(c *Config) { c.OCR.MinConfidence = 1.5 }, "min_confidence"},
		{"ocr region", func(c *Config) { c.OCR.Region = imaging.Region{X1: 100, X2: 50, Y2: 40} }, "ocr region"},
		{"settle", func(c *Config) { c.Watch.Settle = "soon" }, "settle"},
		{"negative settle", func(c *Config) { c.Watch.Settle = "-1s" }, "settle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.StorageRoot = t.TempDir()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"
storage_root = "/srv/ctg"

[plot]
naming = "fixed"

[plot.style]
width = 1200

[digitizer]
canny_low = 30
largest_contour_only = true

[digitizer.roi]
x1 = 0
y1 = 100
x2 = 800
y2 = 400

[features]
exclude_dc = true

[rules]
two_tier = true
baseline_reassuring_min = 112

[model]
classifier_path = "/models/rf.yaml"
missing_policy = "default"

[ocr.region]
x2 = 800
y2 = 60
`)

	cfg := Default()
	if err := LoadFile(&cfg, path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.StorageRoot != "/srv/ctg" {
		t.Errorf("top level: got %q %q", cfg.LogLevel, cfg.StorageRoot)
	}
	if cfg.Plot.Naming != storage.NamingFixed || cfg.Plot.Style.Width != 1200 {
		t.Errorf("plot: got %+v", cfg.Plot)
	}
	if cfg.Plot.Style.Height != 400 || !cfg.Plot.Enabled {
		t.Errorf("keys absent from the file should keep defaults, got %+v", cfg.Plot)
	}
	if cfg.Digitizer.CannyLow != 30 || cfg.Digitizer.CannyHigh != 150 || !cfg.Digitizer.LargestContourOnly {
		t.Errorf("digitizer: got %+v", cfg.Digitizer)
	}
	if cfg.Digitizer.ROI.Y1 != 100 || cfg.Digitizer.ROI.X2 != 800 {
		t.Errorf("roi: got %+v", cfg.Digitizer.ROI)
	}
	if cfg.OCR.Region != (imaging.Region{X2: 800, Y2: 60}) || cfg.OCR.Language != "eng" {
		t.Errorf("ocr: got %+v", cfg.OCR)
	}
	if !cfg.Features.ExcludeDC || cfg.Features.DecelerationThreshold != 110 {
		t.Errorf("features: got %+v", cfg.Features)
	}
	if !cfg.Rules.TwoTier || cfg.Rules.BaselineReassuringMin != 112 || cfg.Rules.BaselineReassuringMax != 160 {
		t.Errorf("rules: got %+v", cfg.Rules)
	}
	if cfg.Model.ClassifierPath != "/models/rf.yaml" || cfg.Model.MissingPolicy != predict.MissingDefault {
		t.Errorf("model: got %+v", cfg.Model)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := Default()
	if err := LoadFile(&cfg, filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
	if err := LoadFile(&cfg, writeConfig(t, "log_level = ")); err == nil {
		t.Error("expected error for malformed TOML")
	}
	if err := LoadFile(&cfg, writeConfig(t, "colour = \"red\"\n")); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("CTG_LOG_LEVEL", "warn")
	t.Setenv("CTG_CANNY_HIGH", "180")
	t.Setenv("CTG_PLOT_ENABLED", "false")
	t.Setenv("CTG_LARGEST_CONTOUR_ONLY", "1")
	t.Setenv("CTG_PREDICTOR_MODEL", "/models/fetal.yaml")
	t.Setenv("CTG_WATCH_INBOX", "/inbox")

	cfg := Default()
	if err := ApplyEnv(&cfg); err != nil {
		t.Fatalf("ApplyEnv failed: %v", err)
	}

	if cfg.LogLevel != "warn" {
		t.Errorf("log level: got %q", cfg.LogLevel)
	}
	if cfg.Digitizer.CannyHigh != 180 || cfg.Digitizer.CannyLow != 50 {
		t.Errorf("canny: got %v/%v", cfg.Digitizer.CannyLow, cfg.Digitizer.CannyHigh)
	}
	if cfg.Plot.Enabled || !cfg.Digitizer.LargestContourOnly {
		t.Errorf("bools: plot %v, largest %v", cfg.Plot.Enabled, cfg.Digitizer.LargestContourOnly)
	}
	if cfg.Model.PredictorPath != "/models/fetal.yaml" || cfg.Watch.Inbox != "/inbox" {
		t.Errorf("paths: got %+v %+v", cfg.Model, cfg.Watch)
	}
}

func TestApplyEnv_InvalidFloat(t *testing.T) {
	t.Setenv("CTG_CANNY_LOW", "low")

	cfg := Default()
	err := ApplyEnv(&cfg)
	if err == nil || !strings.Contains(err.Error(), "CTG_CANNY_LOW") {
		t.Errorf("expected parse error naming the variable, got %v", err)
	}
}

func TestApplyFlags(t *testing.T) {
	fs := newFlags(t, "--backend", digitizer.BackendOpenCV, "--canny-low=20", "--no-plot", "--ocr")

	cfg := Default()
	cfg.LogLevel = "warn"
	if err := ApplyFlags(&cfg, fs); err != nil {
		t.Fatalf("ApplyFlags failed: %v", err)
	}

	if cfg.Digitizer.Backend != digitizer.BackendOpenCV || cfg.Digitizer.CannyLow != 20 {
		t.Errorf("digitizer: got %+v", cfg.Digitizer)
	}
	if cfg.Plot.Enabled {
		t.Error("--no-plot should disable plotting")
	}
	if !cfg.OCR.Enabled {
		t.Error("--ocr should enable annotation reading")
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("unset flags must not override, got log level %q", cfg.LogLevel)
	}
	if cfg.Digitizer.CannyHigh != 150 {
		t.Errorf("unset float flag overrode the value: %v", cfg.Digitizer.CannyHigh)
	}
}

func TestLoad_Precedence(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := writeConfig(t, `
log_level = "debug"
[model]
classifier_path = "/file/rf.yaml"
predictor_path = "/file/fetal.yaml"
missing_policy = "default"
`)
	t.Setenv("CTG_CLASSIFIER_MODEL", "/env/rf.yaml")
	t.Setenv("CTG_PREDICTOR_MODEL", "/env/fetal.yaml")

	fs := newFlags(t, "--config", path, "--predictor-model", "/flag/fetal.yaml")
	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" || cfg.Model.MissingPolicy != predict.MissingDefault {
		t.Errorf("file values lost: %q %q", cfg.LogLevel, cfg.Model.MissingPolicy)
	}
	if cfg.Model.ClassifierPath != "/env/rf.yaml" {
		t.Errorf("env should override file, got %q", cfg.Model.ClassifierPath)
	}
	if cfg.Model.PredictorPath != "/flag/fetal.yaml" {
		t.Errorf("flag should override env, got %q", cfg.Model.PredictorPath)
	}
}

func TestLoad_MissingFiles(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := Load(newFlags(t)); err != nil {
		t.Errorf("absent default config should not fail: %v", err)
	}

	fs := newFlags(t, "--config", filepath.Join(t.TempDir(), "missing.toml"))
	if _, err := Load(fs); err == nil {
		t.Error("expected error when --config names a missing file")
	}
}

func TestLoad_InvalidResult(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	fs := newFlags(t, "--missing-policy", "zero")
	if _, err := Load(fs); err == nil {
		t.Error("expected validation error")
	}
}
