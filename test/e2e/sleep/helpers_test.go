package sleep_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	sleephttp "github.com/somnuslabs/somnus/internal/sleep/http"
	"github.com/somnuslabs/somnus/internal/sleep/oura"
	"github.com/somnuslabs/somnus/internal/sleep/service"
	"github.com/somnuslabs/somnus/internal/sleep/store/drivers/sqlite"
	"github.com/somnuslabs/somnus/pkg/cryptox"
	"github.com/somnuslabs/somnus/pkg/jwtx"
	"github.com/somnuslabs/somnus/pkg/sleepsdk"
)

/*
 * Common helpers for sleep service end-to-end tests. Each test gets a fully
 * wired in-process stack: an in-memory database, a stubbed Oura provider and
 * the real router behind an httptest server, driven through the public SDK.
 */

const (
	testIssuer   = "somnus-sleep"
	testAudience = "somnus-api"

	testEmail       = "alice@example.com"
	testDisplayName = "Alice"
	testPassword    = "Sleepy123!"
)

// providerStub stands in for the Oura cloud. It serves the token endpoint and
// the daily sleep collection, and records what the service asked for.
type providerStub struct {
	mu sync.Mutex

	tokenStatus int // 0 means 200
	dataStatus  int
	records     []oura.DailySleepRecord

	tokenCalls int
	lastStart  string
	lastEnd    string
}

func (p *providerStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.tokenCalls++
		status := p.tokenStatus
		p.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"access_token": "provider-access-%d",
			"refresh_token": "provider-refresh-%d",
			"expires_in": 86400,
			"token_type": "Bearer",
			"user_id": "oura-user-1"
		}`, p.tokenCalls, p.tokenCalls)
	})
	mux.HandleFunc("GET /v2/usercollection/daily_sleep", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.lastStart = r.URL.Query().Get("start_date")
		p.lastEnd = r.URL.Query().Get("end_date")
		status := p.dataStatus
		records := p.records
		p.mu.Unlock()

		if status != 0 && status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(oura.DailySleepResponse{Data: records})
	})
	return mux
}

func (p *providerStub) setRecords(records []oura.DailySleepRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = records
}

func (p *providerStub) setDataStatus(status int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dataStatus = status
}

// nightlyRecords builds n plausible provider records for consecutive days
// ending today, each with the given score and full direct durations.
func nightlyRecords(n, score int) []oura.DailySleepRecord {
	records := make([]oura.DailySleepRecord, 0, n)
	today := time.Now().UTC()
	for i := range n {
		day := today.AddDate(0, 0, -(n - 1 - i)).Format("2006-01-02")
		s := score
		total := 27000
		deep := 5400
		rem := 5940
		light := 15660
		latency := 600
		eff := 92.0
		records = append(records, oura.DailySleepRecord{
			ID:                 "sleep-" + day,
			Day:                day,
			Score:              &s,
			TotalSleepDuration: &total,
			DeepSleepDuration:  &deep,
			RemSleepDuration:   &rem,
			LightSleepDuration: &light,
			Latency:            &latency,
			Efficiency:         &eff,
		})
	}
	return records
}

// testEnv is one fully wired in-process deployment of the sleep service.
type testEnv struct {
	server   *httptest.Server
	provider *providerStub
	sdk      *sleepsdk.SDKClient
	store    *sqlite.Store
}

// newTestEnv builds a fresh stack for one test. Rate limiter state lives in
// the router, so a fresh env also means a clean rate limit budget.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	box, err := cryptox.NewSecretBox("e2e-token-secret-for-tests-only")
	require.NoError(t, err)

	// Empty path: ephemeral signing key, fine for a per-test stack.
	key, err := jwtx.LoadOrGenerateKey("")
	require.NoError(t, err)
	signer := jwtx.NewSigner("test-1", key)
	verifier := jwtx.NewVerifier(signer.KID(), signer.Public(), testIssuer, []string{testAudience})

	stub := &providerStub{}
	providerServer := httptest.NewServer(stub.handler())
	t.Cleanup(providerServer.Close)

	client := oura.NewClient("client-id", "client-secret", "http://localhost/v1/oura/callback", box)
	client.AuthBase = providerServer.URL
	client.APIBase = providerServer.URL

	tokens := &service.TokenLifecycle{Store: st, Provider: client}
	summaries := &service.SummaryService{Store: st}

	router := sleephttp.NewRouter(verifier, "test", st, slog.New(slog.DiscardHandler))
	router.UserService = &service.UserService{
		Store:    st,
		Signer:   signer,
		Issuer:   testIssuer,
		Audience: []string{testAudience},
	}
	router.TokenLifecycle = tokens
	router.SyncService = &service.SyncService{
		Store:     st,
		Provider:  client,
		Tokens:    tokens,
		Summaries: summaries,
	}
	router.RecordsService = &service.RecordsService{Store: st, Summaries: summaries}
	router.ApplyRoutes()

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{
		server:   server,
		provider: stub,
		sdk:      sleepsdk.NewSDKClient(server.URL),
		store:    st,
	}
}

// rewindLastSync moves a user's sync position back so the next sync has a
// fresh window instead of short-circuiting on "already synced today".
func rewindLastSync(t *testing.T, env *testEnv, userID string) {
	t.Helper()
	at := time.Now().UTC().AddDate(0, 0, -8)
	require.NoError(t, env.store.Integrations().UpdateLastSyncDate(context.Background(), userID, at))
}

// registerAndLogin creates the default test user and returns a live session.
func registerAndLogin(t *testing.T, env *testEnv) *sleepsdk.Session {
	t.Helper()
	ctx := context.Background()

	_, err := env.sdk.Register(ctx, sleepsdk.RegisterRequest{
		Email:       testEmail,
		DisplayName: testDisplayName,
		Password:    testPassword,
	})
	require.NoError(t, err)

	session, err := env.sdk.Login(ctx, testEmail, testPassword)
	require.NoError(t, err)
	return session
}

// completeOuraFlow drives the full authorization dance: connect, then follow
// the returned URL's state straight into the callback as the browser would.
func completeOuraFlow(t *testing.T, env *testEnv, session *sleepsdk.Session) {
	t.Helper()

	connect, err := session.ConnectOura(context.Background())
	require.NoError(t, err)

	authURL, err := url.Parse(connect.AuthorizationURL)
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)

	resp, err := http.Get(env.server.URL + "/v1/oura/callback?code=test-code&state=" + url.QueryEscape(state))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	require.Equal(t, http.StatusOK, resp.StatusCode, "callback failed: %s", body)
}

// requireAPIError asserts err is an APIError with the given status and code.
func requireAPIError(t *testing.T, err error, status int, code string) {
	t.Helper()
	var apiErr *sleepsdk.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, status, apiErr.StatusCode)
	require.Equal(t, code, apiErr.Code)
}
