package sqlite

import (
	"context"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
)

type oauthStatesRepo struct {
	q dbtx
}

func (r *oauthStatesRepo) CreateState(ctx context.Context, s domain.OAuthState) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO oauth_states (state_hash, user_id, issued_at, expires_at)
		 VALUES (?, ?, ?, ?)`,
		s.StateHash, s.UserID, s.IssuedAt, s.ExpiresAt)
	return err
}

func (r *oauthStatesRepo) GetState(ctx context.Context, stateHash string) (domain.OAuthState, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT state_hash, user_id, issued_at, expires_at
		 FROM oauth_states WHERE state_hash = ?`, stateHash)

	var s domain.OAuthState
	if err := row.Scan(&s.StateHash, &s.UserID, &s.IssuedAt, &s.ExpiresAt); err != nil {
		return domain.OAuthState{}, mapNotFound(err)
	}
	return s, nil
}

func (r *oauthStatesRepo) DeleteState(ctx context.Context, stateHash string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE state_hash = ?`, stateHash)
	return err
}

func (r *oauthStatesRepo) DeleteExpiredStates(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM oauth_states WHERE expires_at <= ?`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
