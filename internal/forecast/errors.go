package forecast

import (
	"errors"
	"fmt"
)

var (
	ErrDataLoad      = errors.New("data load failed")
	ErrNormalization = errors.New("normalization failed")
	ErrModelNotFound = errors.New("model not found")
	ErrRange         = errors.New("invalid range")
	ErrTraining      = errors.New("training failed")
	ErrInvalidWindow = errors.New("window width must be at least 1")
)

// NormalizationError is returned when a series has no usable spread
type NormalizationError struct {
	Count  int
	StdDev float64
}

func (e *NormalizationError) Error() string {
	if e.Count < 2 {
		return fmt.Sprintf("normalization failed: need at least 2 values, got %d", e.Count)
	}
	return fmt.Sprintf("normalization failed: standard deviation is %v over %d values", e.StdDev, e.Count)
}

func (e *NormalizationError) Unwrap() error { return ErrNormalization }

// RangeError reports an unusable [start, stop) prediction range
type RangeError struct {
	Start  int
	Stop   int
	Length int
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range [%d, %d) over %d values: %s", e.Start, e.Stop, e.Length, e.Reason)
}

func (e *RangeError) Unwrap() error { return ErrRange }

// ModelNotFoundError is returned by stores for unknown keys
type ModelNotFoundError struct {
	Key string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.Key)
}

func (e *ModelNotFoundError) Unwrap() error { return ErrModelNotFound }

// TrainingError wraps whatever the trainer reported
type TrainingError struct {
	Err error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("training failed: %v", e.Err)
}

func (e *TrainingError) Unwrap() []error { return []error{ErrTraining, e.Err} }

// DataLoadError names the source and row that could not be read
type DataLoadError struct {
	Source string
	Row    int
	Err    error
}

func (e *DataLoadError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("failed to load %s (row %d): %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("failed to load %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() []error { return []error{ErrDataLoad, e.Err} }
