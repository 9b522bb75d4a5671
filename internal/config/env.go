package config

import (
	"fmt"
	"os"
	"strconv"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "CTG_"

// ApplyEnv applies CTG_* environment variables to cfg. Unset or empty
// variables leave the current value alone.
func ApplyEnv(cfg *Config) error {
	s := &envSetter{}

	s.setString("LOG_LEVEL", &cfg.LogLevel)
	s.setString("STORAGE_ROOT", &cfg.StorageRoot)
	s.setBool("PLOT_ENABLED", &cfg.Plot.Enabled)
	s.setString("PLOT_NAMING", &cfg.Plot.Naming)
	s.setString("DIGITIZER_BACKEND", &cfg.Digitizer.Backend)
	s.setFloat("CANNY_LOW", &cfg.Digitizer.CannyLow)
	s.setFloat("CANNY_HIGH", &cfg.Digitizer.CannyHigh)
	s.setBool("LARGEST_CONTOUR_ONLY", &cfg.Digitizer.LargestContourOnly)
	s.setBool("EXCLUDE_DC", &cfg.Features.ExcludeDC)
	s.setBool("TWO_TIER", &cfg.Rules.TwoTier)
	s.setString("CLASSIFIER_MODEL", &cfg.Model.ClassifierPath)
	s.setString("PREDICTOR_MODEL", &cfg.Model.PredictorPath)
	s.setString("MISSING_POLICY", &cfg.Model.MissingPolicy)
	s.setBool("OCR_ENABLED", &cfg.OCR.Enabled)
	s.setString("OCR_LANGUAGE", &cfg.OCR.Language)
	s.setFloat("OCR_MIN_CONFIDENCE", &cfg.OCR.MinConfidence)
	s.setString("WATCH_INBOX", &cfg.Watch.Inbox)
	s.setString("WATCH_SETTLE", &cfg.Watch.Settle)

	return s.err
}

// envSetter records the first parse error and skips the rest.
type envSetter struct {
	err error
}

func (s *envSetter) lookup(name string) (string, bool) {
	if s.err != nil {
		return "", false
	}
	v := os.Getenv(EnvPrefix + name)
	return v, v != ""
}

func (s *envSetter) setString(name string, dst *string) {
	if v, ok := s.lookup(name); ok {
		*dst = v
	}
}

func (s *envSetter) setFloat(name string, dst *float64) {
	v, ok := s.lookup(name)
	if !ok {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		s.err = fmt.Errorf("parse %s%s: %w", EnvPrefix, name, err)
		return
	}
	*dst = f
}

// setBool accepts "true" and "1" as true, anything else as false.
func (s *envSetter) setBool(name string, dst *bool) {
	if v, ok := s.lookup(name); ok {
		*dst = v == "true" || v == "1"
	}
}
