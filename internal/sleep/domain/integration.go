package domain

import "time"

// OuraIntegration is the per-user stored state of the Oura connection.
// AccessToken and RefreshToken hold ciphertext produced by the secret box;
// they are never logged or returned to clients.
//
// Connected implies both tokens are present (possibly stale). TokenInvalid
// is advisory: it does not imply Connected == false, it means "do not call
// the provider without re-authorization".
type OuraIntegration struct {
	UserID        string
	Connected     bool
	AccessToken   string // ciphertext
	RefreshToken  string // ciphertext
	ExpiresAt     time.Time
	LastRefreshed time.Time
	LastSyncDate  *time.Time
	TokenInvalid  bool
	ConnectedAt   time.Time
	OuraUserID    string // provider's own identifier, informational only
	UpdatedAt     time.Time
}

// OAuthState is the ephemeral CSRF binding between an authorization request
// and its callback. Keyed by the fingerprint of the opaque state token and
// consumed exactly once.
type OAuthState struct {
	StateHash string
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
