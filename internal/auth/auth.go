package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRefreshThreshold is how long before access-token expiry a refresh
// is considered due. Refreshing ahead of expiry keeps tool calls from racing
// the clock against the upstream.
const DefaultRefreshThreshold = 60 * time.Second

// Info bundles the credential material extracted from one inbound request:
// the access token, the refresh token, the resolved Perses origin, and the
// decoded (unverified) token claims.
//
// Info values are immutable. A refresh produces a new Info; the old one is
// superseded, never mutated. Callers that need the latest Info for a request
// share it through a tools.ToolContext.
type Info struct {
	// AuthToken is the bearer access token. Empty when auth is disabled.
	AuthToken string

	// RefreshToken is used to mint new access tokens and as the keying
	// material for validation caching.
	RefreshToken string

	// PersesURL is the upstream origin, used both for refresh calls and
	// for deriving the proxied datasource URL.
	PersesURL string

	// Claims holds the decoded access-token payload. Set if and only if
	// AuthToken was decoded successfully.
	Claims jwt.MapClaims
}

// ShouldRefresh reports whether the access token is expired or within
// threshold of expiring. Tokens without decodable claims or without an exp
// claim are treated as already expired.
//
// The boundary is inclusive: exp == now + threshold counts as due.
func (i *Info) ShouldRefresh(threshold time.Duration) bool {
	if i == nil || i.Claims == nil {
		return true
	}

	exp, err := i.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}

	return !time.Now().Before(exp.Time.Add(-threshold))
}
