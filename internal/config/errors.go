package config

import (
	"errors"
	"fmt"
)

// Error is a configuration error. It always halts startup: a bad SSID or a
// malformed address is a deployment mistake, not a runtime condition.
type Error struct {
	Field   string // Configuration key (e.g. "static_ip")
	Value   string // Offending value, redacted for secrets
	Message string // Human-readable explanation
	Err     error  // Underlying parse error, if any
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a configuration error for a field.
func NewError(field, value, message string, err error) *Error {
	return &Error{Field: field, Value: value, Message: message, Err: err}
}

// IsConfigError reports whether err is, or wraps, a configuration error.
func IsConfigError(err error) bool {
	var cfgErr *Error
	return errors.As(err, &cfgErr)
}

// redact hides all but the length of a secret.
func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return fmt.Sprintf("<%d bytes>", len(secret))
}
