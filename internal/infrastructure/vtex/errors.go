package vtex

import (
	"errors"
	"fmt"
	"net/url"
)

// ErrNotFound indicates the requested resource does not exist upstream.
var ErrNotFound = errors.New("vtex: resource not found")

// RequestError is a request the platform rejected outright; retrying will
// not help. SendToClient marks errors worth surfacing to the account owner
// rather than only to operators.
type RequestError struct {
	Code         int
	Message      string
	Endpoint     string
	Params       url.Values
	SendToClient bool
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("vtex: request failed with code %d: %s (endpoint %s)", e.Code, e.Message, e.Endpoint)
}

// Is lets RequestError with code 404 match ErrNotFound.
func (e *RequestError) Is(target error) bool {
	return target == ErrNotFound && e.Code == 404
}

// MaxAttemptsError is returned once the retry budget for a request is
// exhausted. LastStatus is the last HTTP status seen, 0 when every attempt
// failed before reaching the platform.
type MaxAttemptsError struct {
	Endpoint   string
	Params     url.Values
	LastStatus int
	cause      error
}

func (e *MaxAttemptsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("vtex: max request attempts reached for %s: %v", e.Endpoint, e.cause)
	}
	return fmt.Sprintf("vtex: max request attempts reached for %s (last status %d)", e.Endpoint, e.LastStatus)
}

func (e *MaxAttemptsError) Unwrap() error {
	return e.cause
}
