package domain

import "time"

// MonthAverage is one point of the trailing per-month trend.
type MonthAverage struct {
	Month   string  `json:"month"` // "2006-01"
	Average float64 `json:"average"`
	Days    int     `json:"days"`
}

// ScoreOnDay pairs a score with the day it happened.
type ScoreOnDay struct {
	Day   string `json:"day"`
	Score int    `json:"score"`
}

// SleepSummary is fully derived from a user's daily records. It is
// recomputed wholesale after every sync and written as a full replace,
// never patched.
type SleepSummary struct {
	UserID string `json:"user_id"`

	CurrentMonthAverage  float64 `json:"current_month_average"`
	PreviousMonthAverage float64 `json:"previous_month_average"`
	OverallAverage       float64 `json:"overall_average"`
	TotalDays            int     `json:"total_days"`

	Best  ScoreOnDay `json:"best"`
	Worst ScoreOnDay `json:"worst"`

	// Streaks of consecutive days at or above the good (75) and excellent
	// (85) thresholds. Current streaks are zero when the most recent record
	// misses the threshold.
	LongestGoodStreak      int `json:"longest_good_streak"`
	CurrentGoodStreak      int `json:"current_good_streak"`
	LongestExcellentStreak int `json:"longest_excellent_streak"`
	CurrentExcellentStreak int `json:"current_excellent_streak"`

	Trend []MonthAverage `json:"trend"` // trailing 6 months

	ComputedAt time.Time `json:"computed_at"`
}
