package pipeline

import (
	"errors"
	"net/http"
)

var (
	// ErrInvalidInput marks a submission the pipeline refuses to run.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingCredential marks a backend credential that is not configured.
	ErrMissingCredential = errors.New("missing backend credential")
)

// Error is the single top-level failure a run can return.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Status maps the failure onto HTTP semantics: bad input is the client's
// problem, everything else is ours.
func (e *Error) Status() int {
	if e != nil && errors.Is(e.Kind, ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// StatusOf returns the HTTP status for any error coming out of the driver.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Status()
	}
	return http.StatusInternalServerError
}

func invalid(msg string) error {
	return &Error{Kind: ErrInvalidInput, Err: errors.New(msg)}
}
