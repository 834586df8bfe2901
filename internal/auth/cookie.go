package auth

import (
	"fmt"
	"net/http"
	"net/url"

	"persai/internal/api"
	"persai/pkg/logging"
)

// Cookie names set by the Perses UI. The access JWT is split across two
// cookies so that the HttpOnly signature part never reaches frontend code.
const (
	CookiePayloadPart   = "auth-payload-part"
	CookieSignaturePart = "auth-signature-part"
	CookieRefreshToken  = "auth-refresh-token"
)

// CookieProvider extracts authentication material from request cookies and
// resolves the upstream Perses origin.
type CookieProvider struct {
	// PersesURL is the statically configured upstream origin. When empty,
	// the origin is derived from the request's Origin header per request.
	PersesURL string
}

// NewCookieProvider creates a CookieProvider with an optional static
// upstream origin.
func NewCookieProvider(persesURL string) *CookieProvider {
	return &CookieProvider{PersesURL: persesURL}
}

// AuthInfoFromRequest extracts the complete authentication information from
// the request cookies. All three auth cookies must be present; a partial set
// is rejected before any upstream validation happens.
func (p *CookieProvider) AuthInfoFromRequest(r *http.Request) (*Info, error) {
	payloadPart := cookieValue(r, CookiePayloadPart)
	signaturePart := cookieValue(r, CookieSignaturePart)
	refreshToken := cookieValue(r, CookieRefreshToken)

	if payloadPart == "" || signaturePart == "" || refreshToken == "" {
		logging.Warn("Auth", "Rejecting request with incomplete auth cookies")
		return nil, api.NewCredentialsError("auth cookies not found or incomplete")
	}

	persesURL, err := p.ResolvePersesURL(r)
	if err != nil {
		return nil, err
	}

	// The payload-part cookie carries "header.payload"; joining it with the
	// signature part reassembles the full token.
	authToken := fmt.Sprintf("%s.%s", payloadPart, signaturePart)

	claims, err := ParseJWTPayload(authToken)
	if err != nil {
		return nil, err
	}

	return &Info{
		AuthToken:    authToken,
		RefreshToken: refreshToken,
		PersesURL:    persesURL,
		Claims:       claims,
	}, nil
}

// ResolvePersesURL resolves the upstream origin: the configured URL wins,
// otherwise the request's Origin header is used. Failing both is a
// deployment problem, not a client error.
func (p *CookieProvider) ResolvePersesURL(r *http.Request) (string, error) {
	if p.PersesURL != "" {
		return p.PersesURL, nil
	}

	if origin := r.Header.Get("Origin"); origin != "" {
		parsed, err := url.Parse(origin)
		if err == nil && parsed.Scheme != "" && parsed.Host != "" {
			return fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host), nil
		}
		logging.Warn("Auth", "Ignoring unparseable Origin header %q", origin)
	}

	return "", api.NewConfigurationError(
		"unable to construct Perses URL: PERSES_API_URL not set and no Origin header found")
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
