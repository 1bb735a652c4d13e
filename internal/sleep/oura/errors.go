package oura

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited is returned when the provider responds 429. Callers may
	// retry later; the client never retries on its own.
	ErrRateLimited = errors.New("oura: rate limited by provider")

	// ErrInvalidToken is returned when a stored token cannot be decrypted or
	// is implausibly short. The stored material is unusable; the only way
	// forward is re-authorization.
	ErrInvalidToken = errors.New("oura: stored token is unusable")
)

// AuthExchangeError is a non-2xx response from the token endpoint during the
// authorization-code exchange.
type AuthExchangeError struct {
	Status int
}

func (e *AuthExchangeError) Error() string {
	return fmt.Sprintf("oura: code exchange failed with status %d", e.Status)
}

// RefreshFailedError is a non-2xx response from the token endpoint during a
// refresh-token grant. A 4xx here generally means the refresh token was
// revoked upstream.
type RefreshFailedError struct {
	Status int
}

func (e *RefreshFailedError) Error() string {
	return fmt.Sprintf("oura: token refresh failed with status %d", e.Status)
}

// AuthError is a 401/403 from a data endpoint: the access token was rejected.
type AuthError struct {
	Status int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("oura: provider rejected access token with status %d", e.Status)
}

// APIError covers every other non-2xx data response and malformed bodies.
type APIError struct {
	Status int
	Reason string
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("oura: api error (status %d): %s", e.Status, e.Reason)
	}
	return fmt.Sprintf("oura: api error (status %d)", e.Status)
}
