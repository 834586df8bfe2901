// Package auth implements the credential handling for the PersAI backend:
// extracting the split JWT from Perses cookies, decoding token claims
// without verification, proactively refreshing access tokens near expiry,
// and gating requests on cached upstream session validation.
//
// The trust model is deliberate: tokens are decoded for metadata only (the
// exp claim drives refresh scheduling) and the cookie-setting Perses
// instance remains the authority. What this package does enforce is session
// liveness - the TokenValidator performs a refresh-token exchange against
// Perses and caches the outcome for an hour, so revoked sessions are
// rejected even while their access token is locally unexpired.
//
// Refresh and validation fail differently on purpose. A failed proactive
// refresh is swallowed: the request proceeds with the old token and the
// downstream call surfaces the real failure. A failed validation aborts the
// request with a CredentialsError.
package auth
