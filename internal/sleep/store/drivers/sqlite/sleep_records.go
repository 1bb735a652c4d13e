package sqlite

import (
	"context"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/store"
)

type sleepRecordsRepo struct {
	q dbtx
}

const sleepRecordColumns = `user_id, day, score,
	total_sleep_seconds, efficiency_percent, deep_sleep_seconds, rem_sleep_seconds,
	light_sleep_seconds, latency_seconds, heart_rate_avg, heart_rate_lowest, hrv,
	respiratory_rate, tags, notes, source_provider, source_type, source_id,
	created_at, updated_at`

func (r *sleepRecordsRepo) GetRecord(ctx context.Context, userID, day string) (domain.SleepRecord, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+sleepRecordColumns+` FROM sleep_records WHERE user_id = ? AND day = ?`,
		userID, day)
	return scanSleepRecord(row)
}

// ListRange returns all records for a user with day in [fromDay, toDay],
// ordered by day ascending. Day strings sort lexically in date order.
func (r *sleepRecordsRepo) ListRange(ctx context.Context, userID, fromDay, toDay string) ([]domain.SleepRecord, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+sleepRecordColumns+` FROM sleep_records
		 WHERE user_id = ? AND day >= ? AND day <= ?
		 ORDER BY day ASC`,
		userID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.SleepRecord
	for rows.Next() {
		rec, err := scanSleepRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpsertBatch writes a batch of records, overwriting provider-sourced fields
// on conflict while leaving user annotations (tags, notes) untouched.
func (r *sleepRecordsRepo) UpsertBatch(ctx context.Context, records []domain.SleepRecord) error {
	for _, rec := range records {
		_, err := r.q.ExecContext(ctx,
			`INSERT INTO sleep_records (
				user_id, day, score,
				total_sleep_seconds, efficiency_percent, deep_sleep_seconds, rem_sleep_seconds,
				light_sleep_seconds, latency_seconds, heart_rate_avg, heart_rate_lowest, hrv,
				respiratory_rate, tags, notes, source_provider, source_type, source_id
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(user_id, day) DO UPDATE SET
				score               = excluded.score,
				total_sleep_seconds = excluded.total_sleep_seconds,
				efficiency_percent  = excluded.efficiency_percent,
				deep_sleep_seconds  = excluded.deep_sleep_seconds,
				rem_sleep_seconds   = excluded.rem_sleep_seconds,
				light_sleep_seconds = excluded.light_sleep_seconds,
				latency_seconds     = excluded.latency_seconds,
				heart_rate_avg      = excluded.heart_rate_avg,
				heart_rate_lowest   = excluded.heart_rate_lowest,
				hrv                 = excluded.hrv,
				respiratory_rate    = excluded.respiratory_rate,
				source_provider     = excluded.source_provider,
				source_type         = excluded.source_type,
				source_id           = excluded.source_id,
				updated_at          = CURRENT_TIMESTAMP`,
			rec.UserID, rec.Day, rec.Score,
			rec.Metrics.TotalSleepSeconds, rec.Metrics.EfficiencyPercent,
			rec.Metrics.DeepSleepSeconds, rec.Metrics.RemSleepSeconds,
			rec.Metrics.LightSleepSeconds, rec.Metrics.LatencySeconds,
			rec.Metrics.HeartRateAvg, rec.Metrics.HeartRateLowest,
			rec.Metrics.HRV, rec.Metrics.RespiratoryRate,
			encodeTags(rec.Tags), rec.Notes,
			rec.Source.Provider, rec.Source.SourceType, rec.Source.SourceID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *sleepRecordsRepo) UpdateAnnotations(ctx context.Context, userID, day string, tags []string, notes string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE sleep_records
		 SET tags = ?, notes = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND day = ?`,
		encodeTags(tags), notes, userID, day)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanSleepRecord(row rowScanner) (domain.SleepRecord, error) {
	var (
		rec  domain.SleepRecord
		tags string
	)
	err := row.Scan(
		&rec.UserID, &rec.Day, &rec.Score,
		&rec.Metrics.TotalSleepSeconds, &rec.Metrics.EfficiencyPercent,
		&rec.Metrics.DeepSleepSeconds, &rec.Metrics.RemSleepSeconds,
		&rec.Metrics.LightSleepSeconds, &rec.Metrics.LatencySeconds,
		&rec.Metrics.HeartRateAvg, &rec.Metrics.HeartRateLowest,
		&rec.Metrics.HRV, &rec.Metrics.RespiratoryRate,
		&tags, &rec.Notes,
		&rec.Source.Provider, &rec.Source.SourceType, &rec.Source.SourceID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return domain.SleepRecord{}, mapNotFound(err)
	}
	rec.Tags = decodeTags(tags)
	return rec, nil
}
