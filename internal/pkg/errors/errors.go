package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a compare-and-swap on shared state loses the race.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports malformed input: an unreadable upload, a missing
// mandatory column or a bad value in a prediction record.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// ConfigError reports an unusable training configuration.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "invalid training config: " + e.Msg }

func Config(format string, args ...any) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

type InsufficientDataError struct {
	Rows int
	Min  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("not enough labeled rows to train: have %d, need at least %d", e.Rows, e.Min)
}

type NoModelError struct{}

func (e *NoModelError) Error() string { return "no trained model available; train one first" }

// MissingFeatureError names exactly the declared features absent from a record.
type MissingFeatureError struct {
	Fields []string
}

func (e *MissingFeatureError) Error() string {
	return "record is missing required features: " + strings.Join(e.Fields, ", ")
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNoModel(err error) bool {
	var ne *NoModelError
	return errors.As(err, &ne)
}
