package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"persai/internal/api"
)

// ParseJWTPayload decodes the payload of a JWT without verifying its
// signature and returns the claims.
//
// SECURITY NOTE: this is metadata extraction only. The backend trusts the
// transport: the cookie-setting upstream (Perses) is the actual authority
// for these tokens, and signature verification happens there. Nothing in
// this service grants access based on claim contents alone; the claims are
// used for expiry scheduling, and session liveness is checked separately by
// the TokenValidator against the upstream.
func ParseJWTPayload(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, api.NewCredentialsError("no JWT token provided")
	}

	// JWT format: header.payload.signature
	if strings.Count(token, ".") != 2 {
		return nil, api.NewCredentialsError("invalid JWT format")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, api.NewCredentialsError("failed to decode JWT payload: %v", err)
	}

	return claims, nil
}
