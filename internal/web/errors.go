package web

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrorType represents the category of a connection-level failure
type ErrorType int

const (
	// ErrTypeParse indicates a malformed or oversized request
	ErrTypeParse ErrorType = iota
	// ErrTypeTimeout indicates a start_read_request, read_request or write timeout
	ErrTypeTimeout
	// ErrTypeClosed indicates the peer closed or reset the connection
	ErrTypeClosed
	// ErrTypeNetwork indicates any other socket error
	ErrTypeNetwork
	// ErrTypeUnknown indicates an unexpected error
	ErrTypeUnknown
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeClosed:
		return "Connection Closed"
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Phases of a connection in which an error can occur.
const (
	PhaseStartRead = "start_read_request"
	PhaseRead      = "read_request"
	PhaseWrite     = "write"
	PhaseUpgrade   = "upgrade"
)

// ConnError is a failure that ends one connection. It never escapes the worker.
type ConnError struct {
	Type   ErrorType
	Phase  string
	Status int // best-effort reply status for parse errors, 0 otherwise
	Err    error
}

// Error implements the error interface
func (e *ConnError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Type, e.Phase, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnError) Unwrap() error {
	return e.Err
}

// ClassifyConnError analyzes an error from the given phase.
func ClassifyConnError(err error, phase string) *ConnError {
	if err == nil {
		return nil
	}

	if status := parseErrorStatus(err); status != 0 {
		return &ConnError{Type: ErrTypeParse, Phase: phase, Status: status, Err: err}
	}

	if isTimeout(err) {
		return &ConnError{Type: ErrTypeTimeout, Phase: phase, Err: err}
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return &ConnError{Type: ErrTypeClosed, Phase: phase, Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ConnError{Type: ErrTypeNetwork, Phase: phase, Err: err}
	}

	return &ConnError{Type: ErrTypeUnknown, Phase: phase, Err: err}
}

func isTimeout(err error) bool {
	if os.IsTimeout(err) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
