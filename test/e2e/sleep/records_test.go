package sleep_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/somnuslabs/somnus/pkg/sleepsdk"
)

func TestSleepRecordLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := registerAndLogin(t, env)
	completeOuraFlow(t, env, session)

	env.provider.setRecords(nightlyRecords(5, 82))
	result, err := session.SyncOura(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, result.Processed)

	today := time.Now().UTC().Format("2006-01-02")

	t.Run("list default window", func(t *testing.T) {
		list, err := session.ListSleep(ctx, "", "")
		require.NoError(t, err)
		require.Len(t, list.Records, 5)
		// Ascending by day, ending today.
		require.Equal(t, today, list.Records[4].Day)
		require.True(t, list.Records[0].Day < list.Records[1].Day)
	})

	t.Run("list explicit range", func(t *testing.T) {
		start := time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
		list, err := session.ListSleep(ctx, start, today)
		require.NoError(t, err)
		require.Len(t, list.Records, 2)
	})

	t.Run("list rejects malformed range", func(t *testing.T) {
		_, err := session.ListSleep(ctx, "yesterday", today)
		requireAPIError(t, err, http.StatusBadRequest, "invalid_day")

		_, err = session.ListSleep(ctx, today, "2020-01-01")
		requireAPIError(t, err, http.StatusBadRequest, "invalid_range")
	})

	t.Run("get single day", func(t *testing.T) {
		record, err := session.GetSleepDay(ctx, today)
		require.NoError(t, err)
		require.Equal(t, today, record.Day)
		require.Equal(t, 82, record.Score)
		require.Equal(t, "oura", record.Source.Provider)
		require.Equal(t, "oura_exact", record.Source.SourceType)
	})

	t.Run("get missing day", func(t *testing.T) {
		_, err := session.GetSleepDay(ctx, "2020-01-01")
		requireAPIError(t, err, http.StatusNotFound, "not_found")
	})
}

func TestAnnotationsSurviveResync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := registerAndLogin(t, env)
	completeOuraFlow(t, env, session)

	env.provider.setRecords(nightlyRecords(1, 75))
	_, err := session.SyncOura(ctx)
	require.NoError(t, err)

	today := time.Now().UTC().Format("2006-01-02")

	annotated, err := session.Annotate(ctx, today, sleepsdk.AnnotateRequest{
		Tags:  []string{"caffeine", "late-workout"},
		Notes: "espresso at 9pm, regretted it",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"caffeine", "late-workout"}, annotated.Tags)

	// Force a fresh sync over the same day with a changed score. The sync
	// position has to be rewound first or the run short-circuits as
	// up-to-date. The metrics update but the user's annotations stay.
	rewindLastSync(t, env, session.User().UserID)
	env.provider.setRecords(nightlyRecords(2, 91))
	result, err := session.SyncOura(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, result.Processed)

	record, err := session.GetSleepDay(ctx, today)
	require.NoError(t, err)
	require.Equal(t, 91, record.Score)
	require.Equal(t, []string{"caffeine", "late-workout"}, record.Tags)
	require.Equal(t, "espresso at 9pm, regretted it", record.Notes)
}

func TestAnnotateValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := registerAndLogin(t, env)
	completeOuraFlow(t, env, session)

	env.provider.setRecords(nightlyRecords(1, 75))
	_, err := session.SyncOura(ctx)
	require.NoError(t, err)

	today := time.Now().UTC().Format("2006-01-02")

	_, err = session.Annotate(ctx, "not-a-day", sleepsdk.AnnotateRequest{})
	requireAPIError(t, err, http.StatusBadRequest, "invalid_day")

	_, err = session.Annotate(ctx, "2020-01-01", sleepsdk.AnnotateRequest{Tags: []string{"x"}})
	requireAPIError(t, err, http.StatusNotFound, "not_found")

	tags := make([]string, 21)
	for i := range tags {
		tags[i] = "tag"
	}
	_, err = session.Annotate(ctx, today, sleepsdk.AnnotateRequest{Tags: tags})
	requireAPIError(t, err, http.StatusBadRequest, "invalid_tags")
}

func TestSummaryEndpoint(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	session := registerAndLogin(t, env)

	t.Run("before any sync", func(t *testing.T) {
		_, err := session.Summary(ctx)
		requireAPIError(t, err, http.StatusNotFound, "not_found")
	})

	completeOuraFlow(t, env, session)
	env.provider.setRecords(nightlyRecords(4, 90))
	result, err := session.SyncOura(ctx)
	require.NoError(t, err)
	require.Equal(t, 4, result.Processed)

	t.Run("after sync", func(t *testing.T) {
		// The recompute is asynchronous; give it a moment.
		var summary *sleepsdk.SummaryResponse
		require.Eventually(t, func() bool {
			s, err := session.Summary(ctx)
			if err != nil {
				return false
			}
			summary = s
			return true
		}, 5*time.Second, 20*time.Millisecond)

		require.Equal(t, 4, summary.TotalDays)
		require.InDelta(t, 90.0, summary.OverallAverage, 0.01)
		require.Equal(t, 90, summary.Best.Score)
		require.Equal(t, 4, summary.CurrentExcellentStreak)
		require.Equal(t, 4, summary.LongestGoodStreak)
		require.NotEmpty(t, summary.Trend)
	})
}
