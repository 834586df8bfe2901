package api

import (
	"fmt"
)

// CredentialsError indicates missing or malformed credential material:
// absent auth cookies, tokens that are not structurally valid JWTs, or a
// session the upstream no longer accepts. It maps to 401 Unauthorized.
type CredentialsError struct {
	Message string
}

// Error implements the error interface.
func (e *CredentialsError) Error() string {
	return e.Message
}

// Is allows errors.Is() to work with wrapped errors.
func (e *CredentialsError) Is(target error) bool {
	_, ok := target.(*CredentialsError)
	return ok
}

// NewCredentialsError creates a CredentialsError with a formatted message.
func NewCredentialsError(format string, args ...interface{}) *CredentialsError {
	return &CredentialsError{Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError indicates missing or inconsistent runtime configuration,
// such as an unresolvable upstream URL or a tool invoked without an active
// tool context. It points at a deployment problem, not user input, and maps
// to 500 Internal Server Error.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return e.Message
}

// Is allows errors.Is() to work with wrapped errors.
func (e *ConfigurationError) Is(target error) bool {
	_, ok := target.(*ConfigurationError)
	return ok
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// PrometheusError indicates a failure talking to the metrics backend or the
// upstream auth endpoints: transport errors, non-2xx responses, and responses
// whose body reports a non-success status. It maps to 502 Bad Gateway.
//
// StatusCode and Body preserve the upstream response so that the caller
// (ultimately an LLM reasoning loop) can adapt to the exact failure.
type PrometheusError struct {
	Message    string
	StatusCode int
	Body       string
	Cause      error
}

// Error implements the error interface.
func (e *PrometheusError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Message, e.StatusCode, e.Body)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying transport error, if any.
func (e *PrometheusError) Unwrap() error {
	return e.Cause
}

// Is allows errors.Is() to work with wrapped errors.
func (e *PrometheusError) Is(target error) bool {
	_, ok := target.(*PrometheusError)
	return ok
}

// ValidationError indicates malformed user input, such as a conflicting time
// range or an unparseable duration string. It maps to 400 Bad Request.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return e.Message
}

// Is allows errors.Is() to work with wrapped errors.
func (e *ValidationError) Is(target error) bool {
	_, ok := target.(*ValidationError)
	return ok
}

// NewValidationError creates a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
