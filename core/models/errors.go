package models

import (
	"errors"
	"fmt"
)

// User input errors block the action and are never retried
var (
	ErrNoComparison        = errors.New("no comparison possible: selection is empty")
	ErrReferenceUnresolved = errors.New("comparison reference could not be resolved")
	ErrUnknownRevision     = errors.New("unknown revision")
)

// Lookup errors surfaced to the presentation layer
var (
	ErrArtifactNotFound    = errors.New("comparison artifact not found")
	ErrArtifactFetchFailed = errors.New("comparison artifact fetch failed")
	ErrGenerationFailed    = errors.New("comparison generation failed")
)

// Configuration errors
var (
	ErrUnknownMode   = errors.New("unknown default selection mode")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserInputError reports a selection the user has to change
type UserInputError struct {
	Value string
	Err   error
}

func (e *UserInputError) Error() string {
	if e.Value == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: %q", e.Err, e.Value)
}

func (e *UserInputError) Unwrap() error { return e.Err }

// TransportError reports a failed network call to the generation backend
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DataShapeError reports a backend response that is missing expected fields
type DataShapeError struct {
	Source string
	Err    error
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("invalid %s data: %v", e.Source, e.Err)
}

func (e *DataShapeError) Unwrap() error { return e.Err }

// IsTransport reports whether err is a transport failure
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDataShape reports whether err is a malformed backend response
func IsDataShape(err error) bool {
	var de *DataShapeError
	return errors.As(err, &de)
}
