package oura

// TokenPair is the outcome of a code exchange or refresh. Token values are
// ciphertext: the client seals them with its secret box before returning, so
// plaintext provider tokens never leave this package.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int // seconds, as stated by the provider
	OuraUserID   string
}

// tokenResponse is the provider token endpoint's wire shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	UserID       string `json:"user_id"`
}

// DailySleepResponse is the provider's daily sleep collection payload.
type DailySleepResponse struct {
	Data      []DailySleepRecord `json:"data"`
	NextToken *string            `json:"next_token"`
}

// DailySleepRecord is one raw provider record. Nearly everything is optional:
// which fields are populated varies across provider API versions, so all
// metric fields are pointers and the mapper decides what is usable.
type DailySleepRecord struct {
	ID        string `json:"id"`
	Day       string `json:"day"`
	Timestamp string `json:"timestamp"`

	Score      *int `json:"score"`
	SleepScore *int `json:"sleep_score"` // older payloads

	// Direct duration fields, present on newer payloads.
	TotalSleepDuration *int     `json:"total_sleep_duration"` // seconds
	DeepSleepDuration  *int     `json:"deep_sleep_duration"`
	RemSleepDuration   *int     `json:"rem_sleep_duration"`
	LightSleepDuration *int     `json:"light_sleep_duration"`
	Latency            *int     `json:"latency"`
	Efficiency         *float64 `json:"efficiency"`

	AverageHeartRate *float64 `json:"average_heart_rate"`
	LowestHeartRate  *float64 `json:"lowest_heart_rate"`
	AverageHRV       *float64 `json:"average_hrv"`
	AverageBreath    *float64 `json:"average_breath"`

	Contributors Contributors `json:"contributors"`
}

// Contributors are 0-100 percentage scores; some API versions expose only
// these, with no raw durations at all.
type Contributors struct {
	TotalSleep  *int `json:"total_sleep"`
	DeepSleep   *int `json:"deep_sleep"`
	RemSleep    *int `json:"rem_sleep"`
	Efficiency  *int `json:"efficiency"`
	Latency     *int `json:"latency"`
	Restfulness *int `json:"restfulness"`
	Timing      *int `json:"timing"`
}
