package sleepsdk

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginRequest exchanges credentials for an access token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// LoginResponse carries a signed bearer token for subsequent requests.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"` // always "Bearer"
	ExpiresIn   int          `json:"expires_in"` // seconds
	User        UserResponse `json:"user"`
}

// ConnectResponse tells the client where to send the user to authorize the
// wearable provider.
type ConnectResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// SyncResponse mirrors the reconciler's result. A skipped run is still a 200.
type SyncResponse struct {
	Processed      int    `json:"processed"`
	Failed         int    `json:"failed"`
	TotalFetched   int    `json:"total_fetched"`
	SkippedReason  string `json:"skipped_reason,omitempty"`
	NeedsReconnect bool   `json:"needs_reconnect,omitempty"`
}

// AnnotateRequest replaces the user's tags and notes on one day's record.
type AnnotateRequest struct {
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
}

// SleepMetrics mirrors the stored per-night measurements.
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

// SleepRecord is one day's normalized sleep data.
type SleepRecord struct {
	Day     string       `json:"day"`
	Score   int          `json:"score"`
	Metrics SleepMetrics `json:"metrics"`
	Tags    []string     `json:"tags"`
	Notes   string       `json:"notes"`
	Source  struct {
		Provider   string `json:"provider"`
		SourceType string `json:"source_type"`
		SourceID   string `json:"source_id"`
	} `json:"source"`
}

// SleepListResponse wraps a range query.
type SleepListResponse struct {
	Records []SleepRecord `json:"records"`
}

// MonthAverage is one point of the summary's per-month trend.
type MonthAverage struct {
	Month   string  `json:"month"`
	Average float64 `json:"average"`
	Days    int     `json:"days"`
}

// ScoreOnDay pairs a score with its day.
type ScoreOnDay struct {
	Day   string `json:"day"`
	Score int    `json:"score"`
}

// SummaryResponse is the derived aggregate document.
type SummaryResponse struct {
	CurrentMonthAverage    float64        `json:"current_month_average"`
	PreviousMonthAverage   float64        `json:"previous_month_average"`
	OverallAverage         float64        `json:"overall_average"`
	TotalDays              int            `json:"total_days"`
	Best                   ScoreOnDay     `json:"best"`
	Worst                  ScoreOnDay     `json:"worst"`
	LongestGoodStreak      int            `json:"longest_good_streak"`
	CurrentGoodStreak      int            `json:"current_good_streak"`
	LongestExcellentStreak int            `json:"longest_excellent_streak"`
	CurrentExcellentStreak int            `json:"current_excellent_streak"`
	Trend                  []MonthAverage `json:"trend"`
	ComputedAt             string         `json:"computed_at"`
}

// HealthChecks reports per-dependency health in readiness responses.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is shared by the liveness and readiness endpoints.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
