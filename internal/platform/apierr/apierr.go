package apierr

import (
	"errors"
	"fmt"
	"net/http"

	domainerrors "github.com/yungbote/cropyield-backend/internal/pkg/errors"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// From maps a domain error onto its HTTP status and code.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var (
		ae  *Error
		ve  *domainerrors.ValidationError
		ce  *domainerrors.ConfigError
		ide *domainerrors.InsufficientDataError
		nme *domainerrors.NoModelError
		mfe *domainerrors.MissingFeatureError
	)
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.As(err, &ve):
		return New(http.StatusBadRequest, "validation_error", err)
	case errors.As(err, &ce):
		return New(http.StatusBadRequest, "config_error", err)
	case errors.As(err, &ide):
		return New(http.StatusUnprocessableEntity, "insufficient_data", err)
	case errors.As(err, &nme):
		return New(http.StatusNotFound, "no_model", err)
	case errors.As(err, &mfe):
		return New(http.StatusUnprocessableEntity, "missing_features", err)
	case errors.Is(err, domainerrors.ErrConflict):
		return New(http.StatusConflict, "conflict", err)
	case errors.Is(err, domainerrors.ErrNotFound):
		return New(http.StatusNotFound, "not_found", err)
	default:
		return New(http.StatusInternalServerError, "internal_error", err)
	}
}
