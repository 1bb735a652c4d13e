package oura

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/somnuslabs/somnus/pkg/cryptox"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

const (
	// DefaultAuthBase hosts the user-facing authorization page.
	DefaultAuthBase = "https://cloud.ouraring.com"
	// DefaultAPIBase hosts the token and data endpoints.
	DefaultAPIBase = "https://api.ouraring.com"

	// Scopes requested during authorization. "daily" covers the daily sleep
	// collection; "personal" gives us the provider's user identifier.
	authorizationScope = "daily personal"

	requestTimeout = 10 * time.Second

	// Anything shorter than this cannot be a real provider token.
	minPlausibleTokenLength = 8
)

// Client talks to the Oura OAuth and data APIs. Stored tokens are ciphertext;
// the client unseals them with Box at request time and seals fresh tokens
// before handing them back, so plaintext never crosses the package boundary.
type Client struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// AuthBase and APIBase default to the public Oura endpoints; tests point
	// them at a local httptest server.
	AuthBase string
	APIBase  string

	Box        *cryptox.SecretBox
	HTTPClient *http.Client
}

// NewClient creates a provider client with the default endpoints and timeout.
func NewClient(clientID, clientSecret, redirectURI string, box *cryptox.SecretBox) *Client {
	return &Client{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURI:  redirectURI,
		AuthBase:     DefaultAuthBase,
		APIBase:      DefaultAPIBase,
		Box:          box,
		HTTPClient:   &http.Client{Timeout: requestTimeout},
	}
}

// AuthorizationURL builds the provider authorization page URL for the given
// CSRF state token. Deterministic, no side effects.
func (c *Client) AuthorizationURL(state string) string {
	q := url.Values{
		"response_type": {"code"},
		"client_id":     {c.ClientID},
		"redirect_uri":  {c.RedirectURI},
		"scope":         {authorizationScope},
		"state":         {state},
	}
	return c.AuthBase + "/oauth/authorize?" + q.Encode()
}

// ExchangeCode trades an authorization code for a token pair.
func (c *Client) ExchangeCode(ctx context.Context, code string) (TokenPair, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {c.RedirectURI},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
	}

	pair, status, err := c.requestToken(ctx, data)
	if err != nil {
		return TokenPair{}, err
	}
	if status != http.StatusOK {
		return TokenPair{}, &AuthExchangeError{Status: status}
	}
	return pair, nil
}

// RefreshToken trades a stored (encrypted) refresh token for a fresh pair.
// Decryption failures fail fast with ErrInvalidToken before any network call.
func (c *Client) RefreshToken(ctx context.Context, encryptedRefresh string) (TokenPair, error) {
	refresh, err := c.Box.Decrypt(encryptedRefresh)
	if err != nil || len(refresh) < minPlausibleTokenLength {
		return TokenPair{}, ErrInvalidToken
	}

	data := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refresh},
		"client_id":     {c.ClientID},
		"client_secret": {c.ClientSecret},
	}

	pair, status, err := c.requestToken(ctx, data)
	if err != nil {
		return TokenPair{}, err
	}
	if status != http.StatusOK {
		return TokenPair{}, &RefreshFailedError{Status: status}
	}
	return pair, nil
}

// FetchDailySleep pulls the daily sleep collection for [startDay, endDay]
// (inclusive, "2006-01-02" day strings) using a stored encrypted access token.
func (c *Client) FetchDailySleep(ctx context.Context, encryptedAccess, startDay, endDay string) (*DailySleepResponse, error) {
	access, err := c.Box.Decrypt(encryptedAccess)
	if err != nil || len(access) < minPlausibleTokenLength {
		return nil, ErrInvalidToken
	}

	q := url.Values{
		"start_date": {startDay},
		"end_date":   {endDay},
	}
	endpoint := c.APIBase + "/v2/usercollection/daily_sleep?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+access)

	traceID := uuid.NewString()
	req.Header.Set("X-Request-Id", traceID)

	log := slogx.FromContext(ctx)
	started := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		log.Error("oura fetch failed",
			"trace_id", traceID,
			"window", startDay+".."+endDay,
			"duration", time.Since(started),
			"error", err)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	log.Info("oura fetch",
		"trace_id", traceID,
		"window", startDay+".."+endDay,
		"status", resp.StatusCode,
		"duration", time.Since(started))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		return nil, &APIError{Status: resp.StatusCode}
	}

	var payload DailySleepResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Reason: "malformed response body"}
	}
	return &payload, nil
}

// requestToken posts a form-encoded grant to the token endpoint and seals the
// returned tokens. Non-2xx statuses are returned for the caller to classify.
func (c *Client) requestToken(ctx context.Context, data url.Values) (TokenPair, int, error) {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.APIBase+"/oauth/token",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		return TokenPair{}, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return TokenPair{}, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return TokenPair{}, resp.StatusCode, nil
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return TokenPair{}, 0, fmt.Errorf("failed to decode token response: %w", err)
	}

	sealedAccess, err := c.Box.Encrypt(tr.AccessToken)
	if err != nil {
		return TokenPair{}, 0, fmt.Errorf("failed to seal access token: %w", err)
	}
	sealedRefresh, err := c.Box.Encrypt(tr.RefreshToken)
	if err != nil {
		return TokenPair{}, 0, fmt.Errorf("failed to seal refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:  sealedAccess,
		RefreshToken: sealedRefresh,
		ExpiresIn:    tr.ExpiresIn,
		OuraUserID:   tr.UserID,
	}, http.StatusOK, nil
}
