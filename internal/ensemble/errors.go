package ensemble

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput is returned when serialized dataset input cannot be decoded.
	ErrInvalidInput = errors.New("invalid JSON format for forecast data")

	// ErrNoValidModels is returned when every model entry is an error record.
	ErrNoValidModels = errors.New("no valid model data available")

	// ErrInsufficientModels is returned when agreement is requested with
	// fewer than two models carrying the resolved field.
	ErrInsufficientModels = errors.New("need at least 2 models to calculate agreement")
)

// FieldNotFoundError reports that the resolved field is absent from every
// valid model. AvailableKeys lists what the first valid model actually has.
type FieldNotFoundError struct {
	Field         Field
	AvailableKeys []string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found in model data, available keys: %v", e.Field, e.AvailableKeys)
}

// InconsistentTimestepsError reports a model whose series length disagrees
// with the rest of the ensemble.
type InconsistentTimestepsError struct {
	Model string
	Got   int
	Want  int
}

func (e *InconsistentTimestepsError) Error() string {
	return fmt.Sprintf("model %s has inconsistent number of timesteps: %d, want %d", e.Model, e.Got, e.Want)
}

// MixedShapeError reports a dataset mixing hourly and daily models, which
// has no defined semantics.
type MixedShapeError struct {
	Model string
	Want  Shape
	Got   Shape
}

func (e *MixedShapeError) Error() string {
	return fmt.Sprintf("model %s is %s but dataset is %s: mixed-shape datasets are not supported", e.Model, e.Got, e.Want)
}
