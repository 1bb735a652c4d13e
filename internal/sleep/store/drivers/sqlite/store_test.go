package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func createTestUser(t *testing.T, s *Store, email string) domain.User {
	t.Helper()

	u := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		DisplayName:  "Test User",
		PasswordHash: "hash",
		RoleID:       "role_user",
	}
	require.NoError(t, s.Users().CreateUser(context.Background(), u))
	return u
}

func TestUsersRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	u := createTestUser(t, s, "alice@example.com")

	t.Run("get by id", func(t *testing.T) {
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, got.Email)
		require.Equal(t, "role_user", got.RoleID)
		require.False(t, got.CreatedAt.IsZero())
	})

	t.Run("email lookup is case-insensitive", func(t *testing.T) {
		got, err := s.Users().GetUserByEmail(ctx, "Alice@Example.com")
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		dup := domain.User{
			ID:           idx.New().String(),
			Email:        "alice@example.com",
			DisplayName:  "Other",
			PasswordHash: "hash",
			RoleID:       "role_user",
		}
		err := s.Users().CreateUser(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
	})

	t.Run("missing user maps to ErrNotFound", func(t *testing.T) {
		_, err := s.Users().GetUserByID(ctx, "nope")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("update display name", func(t *testing.T) {
		require.NoError(t, s.Users().UpdateDisplayName(ctx, u.ID, "Alice Prime"))
		got, err := s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "Alice Prime", got.DisplayName)
	})
}

func TestRolesRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	t.Run("seeded roles are present", func(t *testing.T) {
		roles, err := s.Roles().ListAll(ctx)
		require.NoError(t, err)
		require.Len(t, roles, 2)
	})

	t.Run("user role carries sleep scopes", func(t *testing.T) {
		role, err := s.Roles().GetRoleByName(ctx, domain.RoleUser)
		require.NoError(t, err)
		require.Contains(t, role.Scopes, "sleep:read")
		require.Contains(t, role.Scopes, "sleep:write")
		require.Contains(t, role.Scopes, "oura:manage")
		require.NotContains(t, role.Scopes, "admin:read")
	})

	t.Run("admin role extends user role", func(t *testing.T) {
		role, err := s.Roles().GetRoleByID(ctx, "role_admin")
		require.NoError(t, err)
		require.Contains(t, role.Scopes, "admin:read")
	})
}

func TestIntegrationsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "bob@example.com")

	t.Run("missing integration maps to ErrNotFound", func(t *testing.T) {
		_, err := s.Integrations().GetIntegration(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	now := time.Now().UTC().Truncate(time.Second)
	in := domain.OuraIntegration{
		UserID:        u.ID,
		Connected:     true,
		AccessToken:   "ct-access",
		RefreshToken:  "ct-refresh",
		ExpiresAt:     now.Add(time.Hour),
		LastRefreshed: now,
		ConnectedAt:   now,
		OuraUserID:    "oura-123",
	}

	t.Run("upsert and read back", func(t *testing.T) {
		require.NoError(t, s.Integrations().UpsertIntegration(ctx, in))

		got, err := s.Integrations().GetIntegration(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.Connected)
		require.Equal(t, "ct-access", got.AccessToken)
		require.Equal(t, "ct-refresh", got.RefreshToken)
		require.Equal(t, in.ExpiresAt, got.ExpiresAt.UTC())
		require.Nil(t, got.LastSyncDate)
		require.False(t, got.TokenInvalid)
		require.Equal(t, "oura-123", got.OuraUserID)
	})

	t.Run("upsert overwrites tokens on reconnect", func(t *testing.T) {
		in2 := in
		in2.AccessToken = "ct-access-2"
		in2.TokenInvalid = false
		require.NoError(t, s.Integrations().UpsertIntegration(ctx, in2))

		got, err := s.Integrations().GetIntegration(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, "ct-access-2", got.AccessToken)
	})

	t.Run("advance last sync date", func(t *testing.T) {
		day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
		require.NoError(t, s.Integrations().UpdateLastSyncDate(ctx, u.ID, day))

		got, err := s.Integrations().GetIntegration(ctx, u.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastSyncDate)
		require.Equal(t, day, got.LastSyncDate.UTC())
	})

	t.Run("mark token invalid", func(t *testing.T) {
		require.NoError(t, s.Integrations().SetTokenInvalid(ctx, u.ID, true))
		got, err := s.Integrations().GetIntegration(ctx, u.ID)
		require.NoError(t, err)
		require.True(t, got.TokenInvalid)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		require.NoError(t, s.Integrations().DeleteIntegration(ctx, u.ID))
		_, err := s.Integrations().GetIntegration(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestOAuthStatesRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC()

	fresh := domain.OAuthState{
		StateHash: "hash-fresh",
		UserID:    idx.New().String(),
		IssuedAt:  now,
		ExpiresAt: now.Add(10 * time.Minute),
	}
	stale := domain.OAuthState{
		StateHash: "hash-stale",
		UserID:    idx.New().String(),
		IssuedAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(-50 * time.Minute),
	}
	require.NoError(t, s.OAuthStates().CreateState(ctx, fresh))
	require.NoError(t, s.OAuthStates().CreateState(ctx, stale))

	t.Run("lookup by hash", func(t *testing.T) {
		got, err := s.OAuthStates().GetState(ctx, "hash-fresh")
		require.NoError(t, err)
		require.Equal(t, fresh.UserID, got.UserID)
	})

	t.Run("expired sweep only removes stale states", func(t *testing.T) {
		n, err := s.OAuthStates().DeleteExpiredStates(ctx, now)
		require.NoError(t, err)
		require.EqualValues(t, 1, n)

		_, err = s.OAuthStates().GetState(ctx, "hash-stale")
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.OAuthStates().GetState(ctx, "hash-fresh")
		require.NoError(t, err)
	})

	t.Run("delete consumes the state", func(t *testing.T) {
		require.NoError(t, s.OAuthStates().DeleteState(ctx, "hash-fresh"))
		_, err := s.OAuthStates().GetState(ctx, "hash-fresh")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSleepRecordsRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "carol@example.com")

	record := func(day string, score int) domain.SleepRecord {
		return domain.SleepRecord{
			UserID: u.ID,
			Day:    day,
			Score:  score,
			Metrics: domain.SleepMetrics{
				TotalSleepSeconds: 27000,
				EfficiencyPercent: 92.5,
				DeepSleepSeconds:  5400,
				RemSleepSeconds:   6000,
				LightSleepSeconds: 15600,
				LatencySeconds:    480,
				HeartRateAvg:      54.2,
				HeartRateLowest:   48,
				HRV:               62,
				RespiratoryRate:   14.1,
			},
			Source: domain.SourceData{
				Provider:   domain.SourceProviderOura,
				SourceType: domain.SourceTypeExact,
				SourceID:   "src-" + day,
			},
		}
	}

	t.Run("batch upsert and range listing", func(t *testing.T) {
		batch := []domain.SleepRecord{
			record("2026-03-12", 81),
			record("2026-03-10", 74),
			record("2026-03-11", 88),
		}
		require.NoError(t, s.SleepRecords().UpsertBatch(ctx, batch))

		got, err := s.SleepRecords().ListRange(ctx, u.ID, "2026-03-10", "2026-03-12")
		require.NoError(t, err)
		require.Len(t, got, 3)
		require.Equal(t, "2026-03-10", got[0].Day)
		require.Equal(t, "2026-03-11", got[1].Day)
		require.Equal(t, "2026-03-12", got[2].Day)
		require.Equal(t, 88, got[1].Score)
		require.InDelta(t, 92.5, got[0].Metrics.EfficiencyPercent, 0.001)
	})

	t.Run("range excludes days outside the window", func(t *testing.T) {
		got, err := s.SleepRecords().ListRange(ctx, u.ID, "2026-03-11", "2026-03-11")
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, "2026-03-11", got[0].Day)
	})

	t.Run("annotations survive a re-sync upsert", func(t *testing.T) {
		require.NoError(t, s.SleepRecords().UpdateAnnotations(ctx, u.ID, "2026-03-11",
			[]string{"late caffeine", "travel"}, "slept badly"))

		updated := record("2026-03-11", 90)
		require.NoError(t, s.SleepRecords().UpsertBatch(ctx, []domain.SleepRecord{updated}))

		got, err := s.SleepRecords().GetRecord(ctx, u.ID, "2026-03-11")
		require.NoError(t, err)
		require.Equal(t, 90, got.Score)
		require.Equal(t, []string{"late caffeine", "travel"}, got.Tags)
		require.Equal(t, "slept badly", got.Notes)
	})

	t.Run("annotating a missing day maps to ErrNotFound", func(t *testing.T) {
		err := s.SleepRecords().UpdateAnnotations(ctx, u.ID, "2000-01-01", nil, "")
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("records cascade with the user", func(t *testing.T) {
		victim := createTestUser(t, s, "gone@example.com")
		require.NoError(t, s.SleepRecords().UpsertBatch(ctx, []domain.SleepRecord{
			{UserID: victim.ID, Day: "2026-03-01", Score: 70, Source: domain.SourceData{Provider: domain.SourceProviderOura, SourceType: domain.SourceTypeExact}},
		}))
		require.NoError(t, s.Users().DeleteUser(ctx, victim.ID))

		_, err := s.SleepRecords().GetRecord(ctx, victim.ID, "2026-03-01")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestSummariesRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	u := createTestUser(t, s, "dave@example.com")

	summary := domain.SleepSummary{
		UserID:               u.ID,
		CurrentMonthAverage:  82.4,
		PreviousMonthAverage: 79.1,
		OverallAverage:       80.2,
		TotalDays:            40,
		Best:                 domain.ScoreOnDay{Day: "2026-03-04", Score: 95},
		Worst:                domain.ScoreOnDay{Day: "2026-02-11", Score: 55},
		LongestGoodStreak:    9,
		CurrentGoodStreak:    3,
		Trend: []domain.MonthAverage{
			{Month: "2026-02", Average: 79.1, Days: 28},
			{Month: "2026-03", Average: 82.4, Days: 12},
		},
		ComputedAt: time.Now().UTC().Truncate(time.Second),
	}

	t.Run("replace and read back", func(t *testing.T) {
		require.NoError(t, s.Summaries().ReplaceSummary(ctx, u.ID, summary))

		got, err := s.Summaries().GetSummary(ctx, u.ID)
		require.NoError(t, err)
		require.InDelta(t, summary.CurrentMonthAverage, got.CurrentMonthAverage, 0.001)
		require.Equal(t, summary.Best, got.Best)
		require.Equal(t, summary.TotalDays, got.TotalDays)
		require.Equal(t, summary.Trend, got.Trend)
	})

	t.Run("replace overwrites whole document", func(t *testing.T) {
		next := summary
		next.TotalDays = 41
		next.CurrentGoodStreak = 4
		require.NoError(t, s.Summaries().ReplaceSummary(ctx, u.ID, next))

		got, err := s.Summaries().GetSummary(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, 41, got.TotalDays)
		require.Equal(t, 4, got.CurrentGoodStreak)
	})

	t.Run("missing summary maps to ErrNotFound", func(t *testing.T) {
		_, err := s.Summaries().GetSummary(ctx, "nobody")
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestWithTx(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	t.Run("commit persists writes", func(t *testing.T) {
		u := domain.User{
			ID:           idx.New().String(),
			Email:        "tx@example.com",
			DisplayName:  "Tx",
			PasswordHash: "hash",
			RoleID:       "role_user",
		}
		err := s.WithTx(ctx, func(tx store.Tx) error {
			return tx.Users().CreateUser(ctx, u)
		})
		require.NoError(t, err)

		_, err = s.Users().GetUserByID(ctx, u.ID)
		require.NoError(t, err)
	})

	t.Run("error rolls back writes", func(t *testing.T) {
		u := domain.User{
			ID:           idx.New().String(),
			Email:        "rollback@example.com",
			DisplayName:  "Rollback",
			PasswordHash: "hash",
			RoleID:       "role_user",
		}
		sentinel := errors.New("boom")
		err := s.WithTx(ctx, func(tx store.Tx) error {
			if err := tx.Users().CreateUser(ctx, u); err != nil {
				return err
			}
			return sentinel
		})
		require.ErrorIs(t, err, sentinel)

		_, err = s.Users().GetUserByID(ctx, u.ID)
		require.ErrorIs(t, err, store.ErrNotFound)
	})
}
