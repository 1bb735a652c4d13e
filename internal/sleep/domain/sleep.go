package domain

import "time"

// Day strings use this layout everywhere (ISO calendar date, UTC).
const DayLayout = "2006-01-02"

// SleepMetrics are the normalized per-night measurements.
type SleepMetrics struct {
	TotalSleepSeconds int     `json:"total_sleep_seconds"`
	EfficiencyPercent float64 `json:"efficiency_percent"`
	DeepSleepSeconds  int     `json:"deep_sleep_seconds"`
	RemSleepSeconds   int     `json:"rem_sleep_seconds"`
	LightSleepSeconds int     `json:"light_sleep_seconds"`
	LatencySeconds    int     `json:"latency_seconds"`
	HeartRateAvg      float64 `json:"heart_rate_avg"`
	HeartRateLowest   float64 `json:"heart_rate_lowest"`
	HRV               float64 `json:"hrv"`
	RespiratoryRate   float64 `json:"respiratory_rate"`
}

// SourceData records where a sleep record came from.
type SourceData struct {
	Provider   string `json:"provider"`
	SourceType string `json:"source_type"`
	SourceID   string `json:"source_id"`
}

// Source type values. Estimated records derive stage durations from
// contributor percentages rather than direct measurements.
const (
	SourceProviderOura  = "oura"
	SourceTypeExact     = "oura_exact"
	SourceTypeEstimated = "oura_estimated"
	SourceTypeManual    = "manual"
)

// SleepRecord is one user's normalized sleep data for one calendar day,
// keyed by (UserID, Day). Tags and Notes are user-owned: sync carries them
// forward and must never reset them.
type SleepRecord struct {
	UserID    string       `json:"user_id"`
	Day       string       `json:"day"` // DayLayout
	Score     int          `json:"score"`
	Metrics   SleepMetrics `json:"metrics"`
	Tags      []string     `json:"tags"`
	Notes     string       `json:"notes"`
	Source    SourceData   `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
