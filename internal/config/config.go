// Package config assembles the runtime configuration.
//
// Values are layered: built-in defaults, then the TOML file
// (~/.ctg-mcp/config.toml unless --config says otherwise), then CTG_*
// environment variables, then command-line flags that were explicitly set.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/classify"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/digitizer"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/features"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/logging"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/plot"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/predict"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
)

// DirName is the per-user directory holding the config file and, by
// default, the storage root.
const DirName = ".ctg-mcp"

// Config holds everything the server and CLI need.
type Config struct {
	LogLevel    string `toml:"log_level"`
	StorageRoot string `toml:"storage_root"`

	Plot      PlotConfig        `toml:"plot"`
	Digitizer digitizer.Options `toml:"digitizer"`
	Features  features.Options  `toml:"features"`
	Rules     classify.Rules    `toml:"rules"`
	Model     ModelConfig       `toml:"model"`
	OCR       OCRConfig         `toml:"ocr"`
	Watch     WatchConfig       `toml:"watch"`
}

// PlotConfig controls the trace plot written for each analysis.
type PlotConfig struct {
	Enabled bool         `toml:"enabled"`
	Naming  string       `toml:"naming"`
	Style   plot.Options `toml:"style"`
}

// ModelConfig locates the two forests. Empty paths leave a model
// unavailable.
type ModelConfig struct {
	ClassifierPath string `toml:"classifier_path"`
	PredictorPath  string `toml:"predictor_path"`
	MissingPolicy  string `toml:"missing_policy"`
}

// OCRConfig controls annotation reading.
type OCRConfig struct {
	Enabled       bool    `toml:"enabled"`
	Language      string  `toml:"language"`
	MinConfidence float64 `toml:"min_confidence"`

	// Region limits reading to part of the strip. Zero means the whole
	// image.
	Region imaging.Region `toml:"region"`
}

// WatchConfig controls the inbox watcher.
type WatchConfig struct {
	Inbox string `toml:"inbox"`

	// Settle is how long a file must go without writes before it is
	// analyzed, as a Go duration string.
	Settle string `toml:"settle"`
}

// SettleDuration parses Settle.
func (w WatchConfig) SettleDuration() (time.Duration, error) {
	d, err := time.ParseDuration(w.Settle)
	if err != nil {
		return 0, fmt.Errorf("parse watch settle: %w", err)
	}
	return d, nil
}

// Default returns a Config with default values.
func Default() Config {
	return Config{
		LogLevel: logging.DefaultLevel,
		Plot: PlotConfig{
			Enabled: true,
			Naming:  storage.NamingUnique,
			Style:   plot.DefaultOptions(),
		},
		Digitizer: digitizer.DefaultOptions(),
		Features:  features.DefaultOptions(),
		Rules:     classify.DefaultRules(),
		Model:     ModelConfig{MissingPolicy: predict.MissingReject},
		OCR:       OCRConfig{Language: "eng", MinConfidence: 0.5},
		Watch:     WatchConfig{Settle: "500ms"},
	}
}

// DefaultDir returns ~/.ctg-mcp, or "" if the home directory is unknown.
func DefaultDir() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, DirName)
	}
	return ""
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	if d := DefaultDir(); d != "" {
		return filepath.Join(d, "config.toml")
	}
	return ""
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.StorageRoot == "" {
		if d := DefaultDir(); d != "" {
			c.StorageRoot = filepath.Join(d, "data")
		} else {
			c.StorageRoot = "ctg-data"
		}
	}

	switch c.Plot.Naming {
	case storage.NamingUnique, storage.NamingFixed:
	default:
		return fmt.Errorf("plot naming must be %q or %q, got %q",
			storage.NamingUnique, storage.NamingFixed, c.Plot.Naming)
	}
	if c.Plot.Style.Width < plot.MinSize || c.Plot.Style.Height < plot.MinSize {
		return fmt.Errorf("plot size must be at least %dx%d, got %dx%d",
			plot.MinSize, plot.MinSize, c.Plot.Style.Width, c.Plot.Style.Height)
	}

	switch c.Digitizer.Backend {
	case "", digitizer.BackendNative, digitizer.BackendOpenCV:
	default:
		return fmt.Errorf("unknown digitizer backend %q", c.Digitizer.Backend)
	}
	if c.Digitizer.CannyLow <= 0 || c.Digitizer.CannyLow >= c.Digitizer.CannyHigh {
		return fmt.Errorf("canny thresholds must satisfy 0 < low < high, got %v and %v",
			c.Digitizer.CannyLow, c.Digitizer.CannyHigh)
	}

	if c.Features.SinusoidalMin >= c.Features.SinusoidalMax {
		return fmt.Errorf("sinusoidal band must satisfy min < max, got %v and %v",
			c.Features.SinusoidalMin, c.Features.SinusoidalMax)
	}

	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	switch c.Model.MissingPolicy {
	case predict.MissingReject, predict.MissingDefault:
	default:
		return fmt.Errorf("missing policy must be %q or %q, got %q",
			predict.MissingReject, predict.MissingDefault, c.Model.MissingPolicy)
	}

	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("ocr min_confidence must be within [0,1], got %v", c.OCR.MinConfidence)
	}
	if r := c.OCR.Region; !r.IsZero() && (r.X1 < 0 || r.Y1 < 0 || r.X1 >= r.X2 || r.Y1 >= r.Y2) {
		return fmt.Errorf("ocr region (%d,%d)-(%d,%d) is empty or negative", r.X1, r.Y1, r.X2, r.Y2)
	}

	if d, err := c.Watch.SettleDuration(); err != nil {
		return err
	} else if d < 0 {
		return fmt.Errorf("watch settle must not be negative, got %v", d)
	}

	return nil
}
