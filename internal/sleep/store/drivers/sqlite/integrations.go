package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
)

type integrationsRepo struct {
	q dbtx
}

const integrationColumns = `user_id, connected, access_token, refresh_token, expires_at,
	last_refreshed, last_sync_date, token_invalid, connected_at, oura_user_id, updated_at`

func (r *integrationsRepo) GetIntegration(ctx context.Context, userID string) (domain.OuraIntegration, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+integrationColumns+` FROM oura_integrations WHERE user_id = ?`, userID)

	var (
		in                        domain.OuraIntegration
		expiresAt, lastRefreshed  sql.NullTime
		lastSyncDate, connectedAt sql.NullTime
	)
	err := row.Scan(
		&in.UserID, &in.Connected, &in.AccessToken, &in.RefreshToken, &expiresAt,
		&lastRefreshed, &lastSyncDate, &in.TokenInvalid, &connectedAt, &in.OuraUserID, &in.UpdatedAt,
	)
	if err != nil {
		return domain.OuraIntegration{}, mapNotFound(err)
	}

	in.ExpiresAt = mapNullTime(expiresAt)
	in.LastRefreshed = mapNullTime(lastRefreshed)
	in.LastSyncDate = mapNullTimePtr(lastSyncDate)
	in.ConnectedAt = mapNullTime(connectedAt)
	return in, nil
}

// UpsertIntegration replaces the full integration row for a user. Connecting,
// reconnecting and refreshing all funnel through here.
func (r *integrationsRepo) UpsertIntegration(ctx context.Context, in domain.OuraIntegration) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO oura_integrations (
			user_id, connected, access_token, refresh_token, expires_at,
			last_refreshed, last_sync_date, token_invalid, connected_at, oura_user_id, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			connected      = excluded.connected,
			access_token   = excluded.access_token,
			refresh_token  = excluded.refresh_token,
			expires_at     = excluded.expires_at,
			last_refreshed = excluded.last_refreshed,
			last_sync_date = excluded.last_sync_date,
			token_invalid  = excluded.token_invalid,
			connected_at   = excluded.connected_at,
			oura_user_id   = excluded.oura_user_id,
			updated_at     = CURRENT_TIMESTAMP`,
		in.UserID, in.Connected, in.AccessToken, in.RefreshToken, mapZeroTime(in.ExpiresAt),
		mapZeroTime(in.LastRefreshed), mapOptionalTime(in.LastSyncDate), in.TokenInvalid,
		mapZeroTime(in.ConnectedAt), in.OuraUserID)
	return err
}

func (r *integrationsRepo) UpdateLastSyncDate(ctx context.Context, userID string, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE oura_integrations
		 SET last_sync_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`, at, userID)
	return err
}

func (r *integrationsRepo) SetTokenInvalid(ctx context.Context, userID string, invalid bool) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE oura_integrations
		 SET token_invalid = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`, invalid, userID)
	return err
}

func (r *integrationsRepo) DeleteIntegration(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM oura_integrations WHERE user_id = ?`, userID)
	return err
}
