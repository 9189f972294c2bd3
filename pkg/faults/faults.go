// Package faults defines the error taxonomy shared by the pipeline packages.
package faults

import (
	"errors"
	"fmt"
)

// Stable error codes.
const (
	CodeMissingCriticalFile = "VLD_EX_001"
	CodeNoModels            = "VLD_EX_002"
	CodePredictionArtifacts = "PRD_EX_001"
)

var (
	// ErrMissingCriticalFile is matched by every CodedError raised for absent artifacts.
	ErrMissingCriticalFile = errors.New("missing critical file")
	// ErrInvalidOption is returned when a stage name is outside the known vocabulary.
	ErrInvalidOption = errors.New("invalid option")
	// ErrConfig is the root of every settings load failure.
	ErrConfig = errors.New("configuration error")
)

// CodedError carries a stable identifier next to a human readable message.
type CodedError struct {
	Err     error
	Code    string
	Message string
}

func (e *CodedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

// Is reports missing-file codes as ErrMissingCriticalFile.
func (e *CodedError) Is(target error) bool {
	if target != ErrMissingCriticalFile {
		return false
	}
	switch e.Code {
	case CodeMissingCriticalFile, CodeNoModels, CodePredictionArtifacts:
		return true
	}
	return false
}

// MissingCriticalFile builds the error raised when a required artifact is absent.
func MissingCriticalFile(code, message string) *CodedError {
	return &CodedError{Code: code, Message: message}
}

// CodeOf returns the code of the first CodedError in err's chain, or "".
func CodeOf(err error) string {
	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.Code
	}
	return ""
}

// InvalidOption reports an unknown stage name.
func InvalidOption(option string) error {
	return fmt.Errorf("%w: Incorrect option: %s.", ErrInvalidOption, option)
}
