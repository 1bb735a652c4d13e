package domain

// Skip reasons surfaced in SyncResult when a run did no provider work.
const (
	SkipNotConnected   = "not_connected"
	SkipNeedsReconnect = "needs_reconnect"
	SkipRateLimited    = "rate_limited"
	SkipProviderError  = "provider_error"
	SkipUpToDate       = "up_to_date"
)

// SyncResult describes what one sync run did. Provider-side and partial-data
// failures are reported here, not as errors; callers treat sync as
// best-effort and return this shape with a 200.
type SyncResult struct {
	Processed      int    `json:"processed"`
	Failed         int    `json:"failed"`
	TotalFetched   int    `json:"total_fetched"`
	SkippedReason  string `json:"skipped_reason,omitempty"`
	NeedsReconnect bool   `json:"needs_reconnect,omitempty"`
}
