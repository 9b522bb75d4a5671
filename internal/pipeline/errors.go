package pipeline

import (
	"errors"
	"fmt"

	"github.com/ironsheep/ctg-digitizer-mcp/internal/bpm"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/digitizer"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/features"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/imaging"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/model"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/predict"
	"github.com/ironsheep/ctg-digitizer-mcp/internal/storage"
)

// Kind classifies a pipeline failure for callers.
type Kind string

const (
	KindImageLoad        Kind = "ImageLoadError"
	KindNoWaveform       Kind = "NoWaveformDetectedError"
	KindDegenerateRange  Kind = "DegenerateRangeError"
	KindEmptySeries      Kind = "EmptySeriesError"
	KindModelUnavailable Kind = "ModelUnavailableError"
	KindMissingFeature   Kind = "MissingFeatureError"
	KindStorage          Kind = "StorageError"
	KindInvalidInput     Kind = "InvalidInputError"
	KindInternal         Kind = "InternalError"
)

// Stage names the step that failed.
type Stage string

const (
	StageStore     Stage = "store"
	StageLoad      Stage = "load"
	StageDigitize  Stage = "digitize"
	StageNormalize Stage = "normalize"
	StageFeatures  Stage = "features"
	StageClassify  Stage = "classify"
	StagePredict   Stage = "predict"
)

// ErrInvalidInput marks requests that are malformed before any stage runs.
var ErrInvalidInput = errors.New("invalid input")

// Error is a failed pipeline run.
type Error struct {
	Kind  Kind
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Payload is the wire form of an Error.
type Payload struct {
	Kind    Kind     `json:"kind"`
	Stage   Stage    `json:"stage,omitempty"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// Payload returns the structured form of e. Missing-feature errors carry
// the absent field names.
func (e *Error) Payload() Payload {
	p := Payload{Kind: e.Kind, Stage: e.Stage, Message: e.Err.Error()}
	var mfe *predict.MissingFeatureError
	if errors.As(e.Err, &mfe) {
		p.Fields = mfe.Fields
	}
	return p
}

// PayloadOf returns the wire form of any error. Errors that did not come
// out of a pipeline stage carry no stage.
func PayloadOf(err error) Payload {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Payload()
	}
	return Payload{Kind: KindOf(err), Message: err.Error()}
}

// KindOf maps an error from any stage to its kind.
func KindOf(err error) Kind {
	var pe *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return pe.Kind
	case errors.Is(err, imaging.ErrImageLoad):
		return KindImageLoad
	case errors.Is(err, digitizer.ErrNoWaveform):
		return KindNoWaveform
	case errors.Is(err, bpm.ErrDegenerateRange):
		return KindDegenerateRange
	case errors.Is(err, features.ErrEmptySeries):
		return KindEmptySeries
	case errors.Is(err, model.ErrModelUnavailable):
		return KindModelUnavailable
	case errors.Is(err, predict.ErrMissingFeature):
		return KindMissingFeature
	case errors.Is(err, storage.ErrStorage):
		return KindStorage
	case errors.Is(err, ErrInvalidInput), errors.Is(err, digitizer.ErrRegion):
		return KindInvalidInput
	default:
		return KindInternal
	}
}
