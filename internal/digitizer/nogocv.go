//go:build !gocv

package digitizer

import (
	"fmt"

	"github.com/rs/zerolog"
)

func newOpenCV(Options, zerolog.Logger) (Digitizer, error) {
	return nil, fmt.Errorf("digitizer backend %q requires a build with -tags gocv", BackendOpenCV)
}
