package origin

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass represents a classification of origin failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents connection failures.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassTimeout represents calls that exceeded the client timeout or the caller's deadline.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassServer represents 5xx responses.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassClient represents 4xx responses other than 404.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassDecode represents 2xx responses whose body is not valid JSON.
	ErrorClassDecode ErrorClass = "decode"
)

// TransportError is returned for every origin failure except "not found".
// It is never cached.
type TransportError struct {
	Class      ErrorClass
	StatusCode int // 0 when no response was received
	Path       string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	msg := fmt.Sprintf("origin %s error", e.Class)
	if e.Path != "" {
		msg += " for " + e.Path
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a timeout.
func (e *TransportError) Timeout() bool {
	return e.Class == ErrorClassTimeout
}

// classifyStatus maps a non-2xx, non-404 status code to an error class.
func classifyStatus(status int) ErrorClass {
	if status >= 500 {
		return ErrorClassServer
	}
	return ErrorClassClient
}

// classifyErr maps a transport-level error to an error class.
func classifyErr(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}
	return ErrorClassNetwork
}
