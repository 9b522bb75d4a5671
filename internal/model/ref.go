package model

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Ref is a model handle resolved once at startup. It holds either a loaded
// forest or the reason none is available, so a missing model fails the
// requests that need it instead of the process.
type Ref struct {
	forest *Forest
	err    error
}

// Loaded wraps an already loaded forest.
func Loaded(f *Forest) Ref {
	return Ref{forest: f}
}

// Unavailable returns a Ref that reports err on use.
func Unavailable(err error) Ref {
	return Ref{err: err}
}

// Resolve loads the model at path. An empty path yields an unavailable Ref.
func Resolve(path string, logger zerolog.Logger) Ref {
	if path == "" {
		logger.Info().Msg("no model configured")
		return Unavailable(fmt.Errorf("no model path configured"))
	}

	f, err := Load(path)
	if err != nil {
		logger.Error().Err(err).Str("path", path).Msg("model load failed")
		return Unavailable(err)
	}

	logger.Info().
		Str("path", path).
		Str("name", f.Name).
		Int("trees", len(f.Trees)).
		Int("features", len(f.FeatureNames)).
		Msg("model loaded")
	return Loaded(f)
}

// Forest returns the loaded forest or an error wrapping ErrModelUnavailable.
func (r Ref) Forest() (*Forest, error) {
	if r.forest == nil {
		if r.err == nil {
			return nil, ErrModelUnavailable
		}
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, r.err)
	}
	return r.forest, nil
}
