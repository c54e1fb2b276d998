package types

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ERROR_KIND_PROVIDER_AUTH     ErrorKind = "ProviderAuthError"
	ERROR_KIND_PROVIDER_RESPONSE ErrorKind = "ProviderResponseError"
	ERROR_KIND_UNAVAILABLE_DATA  ErrorKind = "UnavailableDataError"
	ERROR_KIND_FLOW_LOOKUP       ErrorKind = "FlowLookupError"
	ERROR_KIND_FLOW_WRITE        ErrorKind = "FlowWriteError"
	ERROR_KIND_CONFIGURATION     ErrorKind = "ConfigurationError"
)

// Error is the error type of the data provider pipeline. Provider, Category and Status are
// set where they apply.
type Error struct {
	Kind     ErrorKind
	Provider string
	Category string
	Status   int
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg += " [" + e.Provider
		if e.Category != "" {
			msg += "." + e.Category
		}
		msg += "]"
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the failed call may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == ERROR_KIND_PROVIDER_RESPONSE || e.Kind == ERROR_KIND_FLOW_WRITE
}

func NewProviderAuthError(provider string, status int, err error) *Error {
	return &Error{Kind: ERROR_KIND_PROVIDER_AUTH, Provider: provider, Status: status, Err: err}
}

func NewProviderResponseError(provider string, status int, err error) *Error {
	return &Error{Kind: ERROR_KIND_PROVIDER_RESPONSE, Provider: provider, Status: status, Err: err}
}

func NewUnavailableDataError(provider string, category string, msg string) *Error {
	return &Error{Kind: ERROR_KIND_UNAVAILABLE_DATA, Provider: provider, Category: category, Msg: msg}
}

func NewFlowLookupError(msg string, err error) *Error {
	return &Error{Kind: ERROR_KIND_FLOW_LOOKUP, Msg: msg, Err: err}
}

func NewFlowWriteError(msg string, status int, err error) *Error {
	return &Error{Kind: ERROR_KIND_FLOW_WRITE, Msg: msg, Status: status, Err: err}
}

func NewConfigurationError(msg string, err error) *Error {
	return &Error{Kind: ERROR_KIND_CONFIGURATION, Msg: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsRetryable reports whether err carries a retryable *Error.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
