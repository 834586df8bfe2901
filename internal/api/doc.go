// Package api holds the error taxonomy shared between the HTTP layer, the
// auth components, and the agent tools.
//
// Each error type corresponds to one class of user-visible failure and one
// HTTP status code (mapped in internal/server):
//
//   - CredentialsError   -> 401 Unauthorized
//   - ValidationError    -> 400 Bad Request
//   - PrometheusError    -> 502 Bad Gateway
//   - ConfigurationError -> 500 Internal Server Error
//
// Keeping the types here, below every other internal package, avoids import
// cycles: internal/auth needs the types, and internal/server needs both
// internal/auth and the types.
package api
