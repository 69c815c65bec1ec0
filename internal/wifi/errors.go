package wifi

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed is returned when the access point rejects the credentials.
	ErrAuthFailed = errors.New("authentication rejected by access point")
	// ErrNetworkNotFound is returned when the configured SSID is not visible.
	ErrNetworkNotFound = errors.New("network not found")
	// ErrLinkDown is returned when the underlying interface has no carrier.
	ErrLinkDown = errors.New("link down")
	// ErrScanUnsupported is returned by radios that cannot scan.
	ErrScanUnsupported = errors.New("scan not supported by this radio")
	// ErrNotStarted is returned when an operation needs a started radio.
	ErrNotStarted = errors.New("radio not started")
)

// ConnectError is an association or authentication failure. It is always
// retried.
type ConnectError struct {
	SSID    string
	Attempt int
	Err     error
}

// Error implements the error interface
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %q failed (attempt %d): %v", e.SSID, e.Attempt, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectError) Unwrap() error {
	return e.Err
}
