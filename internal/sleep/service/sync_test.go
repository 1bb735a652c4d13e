package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/stretchr/testify/require"
)

// dailySleepStub serves /v2/usercollection/daily_sleep with canned records
// and /oauth/token for refreshes.
type dailySleepStub struct {
	status  int
	records []map[string]any

	lastStart string
	lastEnd   string
}

func (h *dailySleepStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/oauth/token" {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"expires_in":    3600,
		})
		return
	}

	h.lastStart = r.URL.Query().Get("start_date")
	h.lastEnd = r.URL.Query().Get("end_date")

	if h.status != http.StatusOK {
		w.WriteHeader(h.status)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"data": h.records})
}

func providerRecords(days int, startDay string, score int) []map[string]any {
	start, _ := time.Parse(domain.DayLayout, startDay)
	records := make([]map[string]any, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i).Format(domain.DayLayout)
		records = append(records, map[string]any{
			"id":    "rec-" + day,
			"day":   day,
			"score": score,
		})
	}
	return records
}

func newSyncService(t *testing.T, s store.Store, stub *dailySleepStub) *SyncService {
	t.Helper()

	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	lc, provider := newLifecycle(t, s, &tokenEndpointStub{status: http.StatusOK, expiresIn: 3600})
	provider.APIBase = srv.URL
	provider.HTTPClient = srv.Client()

	return &SyncService{
		Store:     s,
		Provider:  provider,
		Tokens:    lc,
		Summaries: &SummaryService{Store: s},
	}
}

func connectSyncUser(t *testing.T, s store.Store, svc *SyncService, lastSync *time.Time) string {
	t.Helper()

	userID := seedUser(t, s)

	access, err := svc.Provider.Box.Encrypt("stored-access")
	require.NoError(t, err)
	refresh, err := svc.Provider.Box.Encrypt("stored-refresh")
	require.NoError(t, err)

	require.NoError(t, s.Integrations().UpsertIntegration(context.Background(), domain.OuraIntegration{
		UserID:       userID,
		Connected:    true,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
		LastSyncDate: lastSync,
		ConnectedAt:  time.Now().UTC(),
	}))
	return userID
}

func TestSyncWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("incremental sync starts the day after the last one", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK}
		svc := newSyncService(t, s, stub)

		now := time.Now().UTC()
		lastSync := dayOf(now.AddDate(0, 0, -5))
		userID := connectSyncUser(t, s, svc, &lastSync)

		_, err := svc.Sync(ctx, userID)
		require.NoError(t, err)

		require.Equal(t, lastSync.AddDate(0, 0, 1).Format(domain.DayLayout), stub.lastStart)
		require.Equal(t, now.Format(domain.DayLayout), stub.lastEnd)
	})

	t.Run("first sync covers the trailing six months", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK}
		svc := newSyncService(t, s, stub)
		userID := connectSyncUser(t, s, svc, nil)

		_, err := svc.Sync(ctx, userID)
		require.NoError(t, err)

		now := time.Now().UTC()
		require.Equal(t, dayOf(now.AddDate(0, -6, 0)).Format(domain.DayLayout), stub.lastStart)
		require.Equal(t, now.Format(domain.DayLayout), stub.lastEnd)
	})

	t.Run("stale last sync is floored at the lookback horizon", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK}
		svc := newSyncService(t, s, stub)

		lastSync := time.Now().UTC().AddDate(-1, 0, 0)
		userID := connectSyncUser(t, s, svc, &lastSync)

		_, err := svc.Sync(ctx, userID)
		require.NoError(t, err)

		require.Equal(t, dayOf(time.Now().UTC().AddDate(0, -6, 0)).Format(domain.DayLayout), stub.lastStart)
	})

	t.Run("already synced today short-circuits without a fetch", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK}
		svc := newSyncService(t, s, stub)

		today := dayOf(time.Now().UTC())
		userID := connectSyncUser(t, s, svc, &today)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, domain.SkipUpToDate, result.SkippedReason)
		require.Empty(t, stub.lastStart)
	})
}

func TestSyncSkips(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("disconnected user", func(t *testing.T) {
		s := newServiceStore(t)
		svc := newSyncService(t, s, &dailySleepStub{status: http.StatusOK})
		userID := seedUser(t, s)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, domain.SkipNotConnected, result.SkippedReason)
		require.False(t, result.NeedsReconnect)
	})

	t.Run("provider 401 marks reconnect", func(t *testing.T) {
		s := newServiceStore(t)
		svc := newSyncService(t, s, &dailySleepStub{status: http.StatusUnauthorized})
		userID := connectSyncUser(t, s, svc, nil)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, domain.SkipNeedsReconnect, result.SkippedReason)
		require.True(t, result.NeedsReconnect)

		in, err := s.Integrations().GetIntegration(ctx, userID)
		require.NoError(t, err)
		require.True(t, in.TokenInvalid)
		require.Nil(t, in.LastSyncDate) // never reached the bookkeeping stage
	})

	t.Run("provider 429 reports rate limiting", func(t *testing.T) {
		s := newServiceStore(t)
		svc := newSyncService(t, s, &dailySleepStub{status: http.StatusTooManyRequests})
		userID := connectSyncUser(t, s, svc, nil)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, domain.SkipRateLimited, result.SkippedReason)
	})

	t.Run("provider 500 is a soft failure", func(t *testing.T) {
		s := newServiceStore(t)
		svc := newSyncService(t, s, &dailySleepStub{status: http.StatusInternalServerError})
		userID := connectSyncUser(t, s, svc, nil)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, domain.SkipProviderError, result.SkippedReason)
		require.Zero(t, result.Processed)
	})
}

func TestSyncMerge(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("processes fetched records and advances the sync position", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK, records: providerRecords(4, "2026-03-01", 82)}
		svc := newSyncService(t, s, stub)
		userID := connectSyncUser(t, s, svc, nil)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, 4, result.TotalFetched)
		require.Equal(t, 4, result.Processed)
		require.Zero(t, result.Failed)

		in, err := s.Integrations().GetIntegration(ctx, userID)
		require.NoError(t, err)
		require.NotNil(t, in.LastSyncDate)
		require.Equal(t, dayOf(time.Now().UTC()), in.LastSyncDate.UTC())
	})

	t.Run("annotations survive a re-sync", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK, records: providerRecords(1, "2026-01-01", 70)}
		svc := newSyncService(t, s, stub)
		userID := connectSyncUser(t, s, svc, nil)

		_, err := svc.Sync(ctx, userID)
		require.NoError(t, err)

		require.NoError(t, s.SleepRecords().UpdateAnnotations(ctx, userID, "2026-01-01",
			[]string{"great"}, "felt rested"))

		// Provider revises the score; annotations must be untouched.
		stub.records = providerRecords(1, "2026-01-01", 91)
		require.NoError(t, s.Integrations().UpdateLastSyncDate(ctx, userID,
			dayOf(time.Now().UTC().AddDate(0, 0, -1))))

		_, err = svc.Sync(ctx, userID)
		require.NoError(t, err)

		rec, err := s.SleepRecords().GetRecord(ctx, userID, "2026-01-01")
		require.NoError(t, err)
		require.Equal(t, 91, rec.Score)
		require.Equal(t, []string{"great"}, rec.Tags)
		require.Equal(t, "felt rested", rec.Notes)
	})

	t.Run("unmappable records count as failed", func(t *testing.T) {
		s := newServiceStore(t)
		stub := &dailySleepStub{status: http.StatusOK, records: []map[string]any{
			{"id": "good", "day": "2026-03-01", "score": 80},
			{"id": "no-score", "day": "2026-03-02"},
		}}
		svc := newSyncService(t, s, stub)
		userID := connectSyncUser(t, s, svc, nil)

		result, err := svc.Sync(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, 2, result.TotalFetched)
		require.Equal(t, 1, result.Processed)
		require.Equal(t, 1, result.Failed)
	})
}

// failingRecords injects write failures for specific days.
type failingRecords struct {
	store.SleepRecords
	failDays map[string]bool
}

func (f *failingRecords) UpsertBatch(ctx context.Context, records []domain.SleepRecord) error {
	for _, rec := range records {
		if f.failDays[rec.Day] {
			return fmt.Errorf("injected write failure for %s", rec.Day)
		}
	}
	return f.SleepRecords.UpsertBatch(ctx, records)
}

type failingStore struct {
	store.Store
	failDays map[string]bool
}

func (f *failingStore) SleepRecords() store.SleepRecords {
	return &failingRecords{SleepRecords: f.Store.SleepRecords(), failDays: f.failDays}
}

func TestSyncPartialBatchFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	inner := newServiceStore(t)

	// 6 records in batches of 2; the middle batch (days 3 and 4) fails.
	wrapped := &failingStore{
		Store: inner,
		failDays: map[string]bool{
			"2026-03-03": true,
		},
	}

	stub := &dailySleepStub{status: http.StatusOK, records: providerRecords(6, "2026-03-01", 85)}
	svc := newSyncService(t, inner, stub)
	svc.Store = wrapped
	svc.BatchSize = 2
	userID := connectSyncUser(t, inner, svc, nil)

	result, err := svc.Sync(ctx, userID)
	require.NoError(t, err)

	require.Equal(t, 6, result.TotalFetched)
	require.Equal(t, 4, result.Processed) // batches 1 and 3
	require.Equal(t, 2, result.Failed)    // batch 2

	// Batches around the failure landed.
	_, err = inner.SleepRecords().GetRecord(ctx, userID, "2026-03-02")
	require.NoError(t, err)
	_, err = inner.SleepRecords().GetRecord(ctx, userID, "2026-03-06")
	require.NoError(t, err)
	_, err = inner.SleepRecords().GetRecord(ctx, userID, "2026-03-03")
	require.ErrorIs(t, err, store.ErrNotFound)

	// The run reached the provider, so the position still advances.
	in, err := inner.Integrations().GetIntegration(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, in.LastSyncDate)
}

func TestSyncStoreErrorSurfaces(t *testing.T) {
	t.Parallel()

	// A closed store is an infrastructure failure: Sync must error, not skip.
	s := newServiceStore(t)
	svc := newSyncService(t, s, &dailySleepStub{status: http.StatusOK})
	userID := seedUser(t, s)
	require.NoError(t, s.Close())

	_, err := svc.Sync(context.Background(), userID)
	require.Error(t, err)
	require.NotErrorIs(t, err, store.ErrNotFound)
}
