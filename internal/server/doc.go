// Package server exposes the persai HTTP API.
//
// It serves session management and turn streaming endpoints for the
// frontend, plus health and Prometheus metrics endpoints for operators.
// Turn requests authenticate via Perses auth cookies, gate on the token
// validator, and install the request's credentials into the context handed
// to the agent, which is how the Prometheus tools inherit them.
package server
