package config

import (
	"github.com/spf13/pflag"
)

// Flag names shared by every subcommand.
const (
	FlagConfig          = "config"
	FlagLogLevel        = "log-level"
	FlagStorageRoot     = "storage-root"
	FlagBackend         = "backend"
	FlagCannyLow        = "canny-low"
	FlagCannyHigh       = "canny-high"
	FlagLargestContour  = "largest-contour"
	FlagExcludeDC       = "exclude-dc"
	FlagNoPlot          = "no-plot"
	FlagClassifierModel = "classifier-model"
	FlagPredictorModel  = "predictor-model"
	FlagMissingPolicy   = "missing-policy"
	FlagOCR             = "ocr"
	FlagInbox           = "inbox"
)

// RegisterFlags defines the configuration flags on fs. Flag defaults are
// zero values; only flags the user sets override the other layers.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(FlagConfig, "", "config file (default ~/.ctg-mcp/config.toml)")
	fs.String(FlagLogLevel, "", "log level: debug, info, warn, error")
	fs.String(FlagStorageRoot, "", "directory for uploads, plots and results")
	fs.String(FlagBackend, "", "digitizer backend: native or opencv")
	fs.Float64(FlagCannyLow, 0, "Canny low threshold")
	fs.Float64(FlagCannyHigh, 0, "Canny high threshold")
	fs.Bool(FlagLargestContour, false, "digitize only the largest contour")
	fs.Bool(FlagExcludeDC, false, "ignore the zero-frequency bin when finding the dominant frequency")
	fs.Bool(FlagNoPlot, false, "skip writing trace plots")
	fs.String(FlagClassifierModel, "", "classifier forest (YAML)")
	fs.String(FlagPredictorModel, "", "fetal-health forest (YAML)")
	fs.String(FlagMissingPolicy, "", "missing feature policy: reject or default")
	fs.Bool(FlagOCR, false, "read printed annotations with tesseract")
	fs.String(FlagInbox, "", "directory watched for new strips")
}

// ApplyFlags copies explicitly set flags from fs onto cfg.
func ApplyFlags(cfg *Config, fs *pflag.FlagSet) error {
	s := flagSetter{fs: fs}

	s.setString(FlagLogLevel, &cfg.LogLevel)
	s.setString(FlagStorageRoot, &cfg.StorageRoot)
	s.setString(FlagBackend, &cfg.Digitizer.Backend)
	s.setFloat(FlagCannyLow, &cfg.Digitizer.CannyLow)
	s.setFloat(FlagCannyHigh, &cfg.Digitizer.CannyHigh)
	s.setBool(FlagLargestContour, &cfg.Digitizer.LargestContourOnly)
	s.setBool(FlagExcludeDC, &cfg.Features.ExcludeDC)
	s.setString(FlagClassifierModel, &cfg.Model.ClassifierPath)
	s.setString(FlagPredictorModel, &cfg.Model.PredictorPath)
	s.setString(FlagMissingPolicy, &cfg.Model.MissingPolicy)
	s.setBool(FlagOCR, &cfg.OCR.Enabled)
	s.setString(FlagInbox, &cfg.Watch.Inbox)

	var noPlot bool
	s.setBool(FlagNoPlot, &noPlot)
	if noPlot {
		cfg.Plot.Enabled = false
	}

	return s.err
}

// flagSetter copies a flag only when it was changed on the command line.
type flagSetter struct {
	fs  *pflag.FlagSet
	err error
}

func (s *flagSetter) changed(name string) bool {
	if s.err != nil {
		return false
	}
	f := s.fs.Lookup(name)
	return f != nil && f.Changed
}

func (s *flagSetter) setString(name string, dst *string) {
	if !s.changed(name) {
		return
	}
	v, err := s.fs.GetString(name)
	if err != nil {
		s.err = err
		return
	}
	*dst = v
}

func (s *flagSetter) setFloat(name string, dst *float64) {
	if !s.changed(name) {
		return
	}
	v, err := s.fs.GetFloat64(name)
	if err != nil {
		s.err = err
		return
	}
	*dst = v
}

func (s *flagSetter) setBool(name string, dst *bool) {
	if !s.changed(name) {
		return
	}
	v, err := s.fs.GetBool(name)
	if err != nil {
		s.err = err
		return
	}
	*dst = v
}
