package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"persai/pkg/logging"
)

// ValidationCacheTTL is how long a validation outcome (positive or negative)
// is reused before the session is re-checked upstream.
const ValidationCacheTTL = time.Hour

// ValidationResult is the outcome of one session validation attempt.
// Results are immutable once created; re-validation stores a fresh entry.
type ValidationResult struct {
	// IsValid reports whether the upstream still accepts the session.
	IsValid bool

	// ValidatedAt is when this result was produced. TTL is measured from
	// here, not from any token expiry.
	ValidatedAt time.Time

	// ExpiresAt is the upstream-reported access-token expiry at validation
	// time. Informational only; zero when unknown.
	ExpiresAt time.Time

	// Error holds the failure reason when IsValid is false.
	Error string
}

// TokenValidator decides whether an inbound request's session is currently
// acceptable by probing the upstream with the session's refresh token. The
// local exp claim alone cannot see server-side revocation; the probe can.
//
// Outcomes are cached by a hash of the refresh token. Negative results are
// cached too, so a client that keeps retrying with a dead session does not
// hammer the upstream.
//
// Construct one at startup and share it between handlers; the cache is
// process-wide state and the zero value is not usable.
type TokenValidator struct {
	mu    sync.Mutex
	cache map[string]ValidationResult

	ttl       time.Duration
	refresher *Refresher
	metrics   *ValidatorMetrics

	// now is injected for tests.
	now func() time.Time
}

// NewTokenValidator creates a TokenValidator probing through the given
// Refresher. metrics may be nil.
func NewTokenValidator(refresher *Refresher, metrics *ValidatorMetrics) *TokenValidator {
	return &TokenValidator{
		cache:     make(map[string]ValidationResult),
		ttl:       ValidationCacheTTL,
		refresher: refresher,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Validate checks whether the session behind info is still accepted
// upstream, consulting the cache first.
func (v *TokenValidator) Validate(ctx context.Context, info *Info) ValidationResult {
	v.mu.Lock()
	v.purgeExpiredLocked()

	if info == nil || info.RefreshToken == "" {
		v.mu.Unlock()
		// Nothing to key a cache entry on.
		return ValidationResult{
			IsValid:     false,
			ValidatedAt: v.now(),
			Error:       "No refresh token provided",
		}
	}

	key := cacheKey(info.RefreshToken)

	if cached, ok := v.cache[key]; ok && v.now().Sub(cached.ValidatedAt) < v.ttl {
		v.mu.Unlock()
		v.metrics.recordCacheHit()
		logging.Debug("TokenValidator", "Using cached validation result for key=%s", key[:8])
		return cached
	}
	v.mu.Unlock()

	v.metrics.recordCacheMiss()
	logging.Debug("TokenValidator", "Cache miss, performing session validation for key=%s", key[:8])

	// The upstream probe runs without the lock held; validation is an HTTP
	// round trip and must not block unrelated requests. Last writer wins if
	// two requests race for the same key, which is harmless: entries are
	// immutable and both describe the same session.
	result := v.validateViaRefresh(ctx, info)

	v.mu.Lock()
	v.cache[key] = result
	v.mu.Unlock()

	return result
}

// validateViaRefresh probes session liveness by performing the refresh-token
// exchange. Exchange success means the session is valid; any failure,
// including transport errors, means it is not.
//
// NOTE: the exchange is a mutating operation upstream. Perses may rotate the
// refresh token as a side effect, which can invalidate a refresh token the
// browser still holds. This mirrors the upstream-probing behavior the
// service has always had; treat with care before "optimizing" it.
func (v *TokenValidator) validateViaRefresh(ctx context.Context, info *Info) ValidationResult {
	updated, err := v.refresher.Refresh(ctx, info)
	if err != nil {
		logging.Debug("TokenValidator", "Session validation failed via refresh: %v", err)
		v.metrics.recordValidation(false)
		return ValidationResult{
			IsValid:     false,
			ValidatedAt: v.now(),
			Error:       "Validation request failed: " + err.Error(),
		}
	}

	var expiresAt time.Time
	if exp, err := updated.Claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}

	v.metrics.recordValidation(true)
	return ValidationResult{
		IsValid:     true,
		ValidatedAt: v.now(),
		ExpiresAt:   expiresAt,
	}
}

// purgeExpiredLocked drops entries older than the TTL. Runs opportunistically
// on every validation call; there is no separate timer. Caller holds v.mu.
func (v *TokenValidator) purgeExpiredLocked() {
	removed := 0
	for key, result := range v.cache {
		if v.now().Sub(result.ValidatedAt) >= v.ttl {
			delete(v.cache, key)
			removed++
		}
	}
	if removed > 0 {
		logging.Debug("TokenValidator", "Cleaned up %d expired cache entries", removed)
	}
}

// cacheKey hashes the refresh token so the raw secret is not retained in a
// readable form for the lifetime of the cache entry.
func cacheKey(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return hex.EncodeToString(sum[:])
}
