package core

import (
	"errors"
	"fmt"
)

// ClassifierError indicates the classifier model was unusable or inference
// failed. It is never retried internally and always propagates to the caller.
type ClassifierError struct {
	Err error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier: %v", e.Err)
}

func (e *ClassifierError) Unwrap() error { return e.Err }

// GenerationError indicates a text generation call failed after its retry
// budget. The orchestrator absorbs it into the analysis result; it never
// escapes ProcessEmail.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// ConfigurationError indicates the system cannot be constructed, for example
// a missing model artifact or a missing provider credential.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsClassifierError reports whether err is or wraps a ClassifierError.
func IsClassifierError(err error) bool {
	var ce *ClassifierError
	return errors.As(err, &ce)
}

// IsGenerationError reports whether err is or wraps a GenerationError.
func IsGenerationError(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
