package service

import (
	"context"
	"errors"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/oura"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/cryptox"
	"github.com/somnuslabs/somnus/pkg/idx"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

const (
	// DefaultSafetyMargin is subtracted from the provider's stated token
	// lifetime so refresh happens before the token actually dies.
	DefaultSafetyMargin = 5 * time.Minute

	// DefaultStateTTL bounds how long an authorization redirect may dangle
	// before its CSRF state stops being accepted.
	DefaultStateTTL = 10 * time.Minute

	stateTokenBytes = 32
)

var (
	// ErrInvalidState rejects a callback whose state is missing, unknown,
	// expired, or already consumed.
	ErrInvalidState = errors.New("invalid_state")
)

// SyncSkip says a sync run has nothing to do and why. It is a result, not an
// error: disconnected users and dead tokens are expected states.
type SyncSkip struct {
	Reason string
}

// TokenLifecycle owns the provider connection state machine: authorization,
// callback handling, proactive refresh, and disconnect.
type TokenLifecycle struct {
	Store    store.Store
	Provider *oura.Client

	SafetyMargin time.Duration // defaults to DefaultSafetyMargin
	StateTTL     time.Duration // defaults to DefaultStateTTL
}

func (s *TokenLifecycle) margin() time.Duration {
	if s.SafetyMargin > 0 {
		return s.SafetyMargin
	}
	return DefaultSafetyMargin
}

func (s *TokenLifecycle) stateTTL() time.Duration {
	if s.StateTTL > 0 {
		return s.StateTTL
	}
	return DefaultStateTTL
}

// BeginAuthorization mints a CSRF state token, stores its fingerprint bound
// to the user, and returns the provider authorization URL to redirect to.
func (s *TokenLifecycle) BeginAuthorization(ctx context.Context, userID string) (string, error) {
	state, err := cryptox.GenerateToken(stateTokenBytes)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	err = s.Store.OAuthStates().CreateState(ctx, domain.OAuthState{
		StateHash: cryptox.FingerprintToken(state),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.stateTTL()),
	})
	if err != nil {
		return "", err
	}

	return s.Provider.AuthorizationURL(state), nil
}

// HandleCallback consumes the one-time state, exchanges the code and persists
// the resulting tokens. The state record is deleted as soon as it is looked
// at, so a replayed callback fails with ErrInvalidState.
func (s *TokenLifecycle) HandleCallback(ctx context.Context, state, code string) error {
	if state == "" || code == "" {
		return ErrInvalidState
	}

	hash := cryptox.FingerprintToken(state)
	st, err := s.Store.OAuthStates().GetState(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidState
		}
		return err
	}

	// One-time use: gone before we do anything with it.
	if err := s.Store.OAuthStates().DeleteState(ctx, hash); err != nil {
		return err
	}

	now := time.Now().UTC()
	if now.After(st.ExpiresAt) {
		return ErrInvalidState
	}

	// The stored userID is only trusted if it parses as one of our ids.
	if _, err := idx.Parse(st.UserID); err != nil {
		return ErrInvalidState
	}

	pair, err := s.Provider.ExchangeCode(ctx, code)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		existing, err := tx.Integrations().GetIntegration(ctx, st.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		in := domain.OuraIntegration{
			UserID:        st.UserID,
			Connected:     true,
			AccessToken:   pair.AccessToken,
			RefreshToken:  pair.RefreshToken,
			ExpiresAt:     expiryFrom(now, pair.ExpiresIn, s.margin()),
			LastRefreshed: now,
			LastSyncDate:  existing.LastSyncDate, // reconnect keeps sync position
			TokenInvalid:  false,
			ConnectedAt:   now,
			OuraUserID:    pair.OuraUserID,
		}
		return tx.Integrations().UpsertIntegration(ctx, in)
	})
}

// EnsureUsableToken returns an access token (still encrypted) that is good
// for at least the safety margin, refreshing at most once. Expected dead ends
// come back as a SyncSkip, never an error.
func (s *TokenLifecycle) EnsureUsableToken(ctx context.Context, userID string) (string, *SyncSkip, error) {
	in, err := s.Store.Integrations().GetIntegration(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", &SyncSkip{Reason: domain.SkipNotConnected}, nil
		}
		return "", nil, err
	}

	if !in.Connected {
		return "", &SyncSkip{Reason: domain.SkipNotConnected}, nil
	}
	if in.TokenInvalid {
		return "", &SyncSkip{Reason: domain.SkipNeedsReconnect}, nil
	}

	now := time.Now().UTC()
	if now.Before(in.ExpiresAt) {
		return in.AccessToken, nil, nil
	}

	pair, err := s.Provider.RefreshToken(ctx, in.RefreshToken)
	if err != nil {
		slogx.FromContext(ctx).Warn("provider token refresh failed; reconnect required",
			"user_id", userID, "error", err)

		if setErr := s.Store.Integrations().SetTokenInvalid(ctx, userID, true); setErr != nil {
			return "", nil, setErr
		}
		return "", &SyncSkip{Reason: domain.SkipNeedsReconnect}, nil
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		current, err := tx.Integrations().GetIntegration(ctx, userID)
		if err != nil {
			return err
		}
		current.AccessToken = pair.AccessToken
		current.RefreshToken = pair.RefreshToken
		current.ExpiresAt = expiryFrom(now, pair.ExpiresIn, s.margin())
		current.LastRefreshed = now
		current.TokenInvalid = false
		return tx.Integrations().UpsertIntegration(ctx, current)
	})
	if err != nil {
		return "", nil, err
	}

	return pair.AccessToken, nil, nil
}

// Disconnect removes the stored integration. Tokens are gone after this;
// reconnecting starts a fresh authorization.
func (s *TokenLifecycle) Disconnect(ctx context.Context, userID string) error {
	return s.Store.Integrations().DeleteIntegration(ctx, userID)
}

// expiryFrom applies the safety margin to the provider's stated lifetime.
func expiryFrom(now time.Time, expiresInSeconds int, margin time.Duration) time.Time {
	return now.Add(time.Duration(expiresInSeconds)*time.Second - margin)
}
