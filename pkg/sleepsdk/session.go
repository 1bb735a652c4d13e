package sleepsdk

import (
	"context"
	"net/http"
	"net/url"
)

// Session is an authenticated view of the API, bound to one user's token.
type Session struct {
	client      *SDKClient
	accessToken string
	user        UserResponse
}

// User returns the profile captured at login.
func (s *Session) User() UserResponse { return s.user }

// AccessToken exposes the raw bearer token, e.g. for storage.
func (s *Session) AccessToken() string { return s.accessToken }

// ConnectOura starts the provider authorization flow.
func (s *Session) ConnectOura(ctx context.Context) (*ConnectResponse, error) {
	var resp ConnectResponse
	err := s.client.doJSON(ctx, http.MethodGet, "/v1/oura/connect", s.accessToken, nil, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncOura triggers a reconciliation run.
func (s *Session) SyncOura(ctx context.Context) (*SyncResponse, error) {
	var resp SyncResponse
	err := s.client.doJSON(ctx, http.MethodPost, "/v1/oura/sync", s.accessToken, nil, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// DisconnectOura removes the stored provider connection.
func (s *Session) DisconnectOura(ctx context.Context) error {
	return s.client.doJSON(ctx, http.MethodDelete, "/v1/oura/connection", s.accessToken, nil, nil, http.StatusNoContent)
}

// ListSleep fetches records in [startDay, endDay]; empty strings use the
// server's default window.
func (s *Session) ListSleep(ctx context.Context, startDay, endDay string) (*SleepListResponse, error) {
	q := url.Values{}
	if startDay != "" {
		q.Set("start", startDay)
	}
	if endDay != "" {
		q.Set("end", endDay)
	}
	path := "/v1/sleep"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp SleepListResponse
	if err := s.client.doJSON(ctx, http.MethodGet, path, s.accessToken, nil, &resp, http.StatusOK); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSleepDay fetches a single day's record.
func (s *Session) GetSleepDay(ctx context.Context, day string) (*SleepRecord, error) {
	var rec SleepRecord
	err := s.client.doJSON(ctx, http.MethodGet, "/v1/sleep/"+day, s.accessToken, nil, &rec, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Annotate replaces tags and notes on one day's record.
func (s *Session) Annotate(ctx context.Context, day string, req AnnotateRequest) (*SleepRecord, error) {
	var rec SleepRecord
	err := s.client.doJSON(ctx, http.MethodPatch, "/v1/sleep/"+day+"/annotations", s.accessToken, req, &rec, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Summary fetches the derived aggregate document.
func (s *Session) Summary(ctx context.Context) (*SummaryResponse, error) {
	var resp SummaryResponse
	err := s.client.doJSON(ctx, http.MethodGet, "/v1/sleep/summary", s.accessToken, nil, &resp, http.StatusOK)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
