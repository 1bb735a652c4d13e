package sqlite

import (
	"context"
	"encoding/json"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
)

type summariesRepo struct {
	q dbtx
}

func (r *summariesRepo) GetSummary(ctx context.Context, userID string) (domain.SleepSummary, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT payload FROM sleep_summaries WHERE user_id = ?`, userID)

	var payload string
	if err := row.Scan(&payload); err != nil {
		return domain.SleepSummary{}, mapNotFound(err)
	}

	var summary domain.SleepSummary
	if err := json.Unmarshal([]byte(payload), &summary); err != nil {
		return domain.SleepSummary{}, err
	}
	return summary, nil
}

// ReplaceSummary overwrites the stored summary document whole. Summaries are
// derived from sleep_records so partial updates would only invite drift.
func (r *summariesRepo) ReplaceSummary(ctx context.Context, userID string, summary domain.SleepSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx,
		`INSERT INTO sleep_summaries (user_id, payload, computed_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			payload     = excluded.payload,
			computed_at = excluded.computed_at`,
		userID, string(payload), summary.ComputedAt)
	return err
}
