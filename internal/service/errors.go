package service

import (
	"errors"
	"fmt"
)

// GenericErrorMessage is shown when the service gives no usable message
const GenericErrorMessage = "An error occurred while anonymizing the text."

// ErrorKind classifies a failed call
type ErrorKind string

const (
	// KindTransport covers connection failures, timeouts and aborts
	KindTransport ErrorKind = "transport"
	// KindStatus is a non-2xx response
	KindStatus ErrorKind = "status"
	// KindMalformed is a 2xx response without a usable anonymized_text
	KindMalformed ErrorKind = "malformed"
)

// Error is returned by Client for every failed call
type Error struct {
	Kind       ErrorKind
	StatusCode int
	// Message is the service-provided "error" field, if any
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("anonymize: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("anonymize: %s (status %d)", e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("anonymize: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("anonymize: %s", e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// UserMessage derives the message shown to the user for a failed call
func UserMessage(err error) string {
	var svcErr *Error
	if errors.As(err, &svcErr) && svcErr.Message != "" {
		return svcErr.Message
	}
	return GenericErrorMessage
}

// KindOf returns the error kind, defaulting to transport for foreign errors
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindTransport
}
