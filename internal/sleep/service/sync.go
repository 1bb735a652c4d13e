package service

import (
	"context"
	"errors"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/oura"
	"github.com/somnuslabs/somnus/internal/sleep/store"
	"github.com/somnuslabs/somnus/pkg/slogx"
)

const (
	// DefaultSyncBatchSize bounds merge-upsert batches so one bad batch does
	// not take unrelated records down with it.
	DefaultSyncBatchSize = 25

	// DefaultLookbackMonths is how far back a sync will ever reach. The
	// provider retains little beyond this, and older nights no longer move
	// the competition.
	DefaultLookbackMonths = 6
)

// SyncService reconciles provider data into stored daily records. Provider
// failures and partial write failures are reported in the SyncResult, never
// as errors; an error from Sync means the datastore itself misbehaved.
type SyncService struct {
	Store     store.Store
	Provider  *oura.Client
	Tokens    *TokenLifecycle
	Summaries *SummaryService

	BatchSize      int // defaults to DefaultSyncBatchSize
	LookbackMonths int // defaults to DefaultLookbackMonths
}

func (s *SyncService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return DefaultSyncBatchSize
}

func (s *SyncService) lookbackMonths() int {
	if s.LookbackMonths > 0 {
		return s.LookbackMonths
	}
	return DefaultLookbackMonths
}

func (s *SyncService) Sync(ctx context.Context, userID string) (domain.SyncResult, error) {
	log := slogx.FromContext(ctx)

	access, skip, err := s.Tokens.EnsureUsableToken(ctx, userID)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if skip != nil {
		return skipResult(skip.Reason), nil
	}

	now := time.Now().UTC()
	startDay, endDay, ok, err := s.window(ctx, userID, now)
	if err != nil {
		return domain.SyncResult{}, err
	}
	if !ok {
		return skipResult(domain.SkipUpToDate), nil
	}

	resp, err := s.Provider.FetchDailySleep(ctx, access, startDay, endDay)
	if err != nil {
		return s.classifyFetchFailure(ctx, userID, err)
	}

	records, mappingErrors := MapRecords(resp.Data, userID)
	for _, me := range mappingErrors {
		log.Warn("unusable provider record dropped",
			"user_id", userID, "source_id", me.SourceID, "reason", me.Reason)
	}

	result := domain.SyncResult{
		TotalFetched: len(resp.Data),
		Failed:       len(mappingErrors),
	}

	for _, batch := range inBatches(records, s.batchSize()) {
		if err := s.Store.SleepRecords().UpsertBatch(ctx, batch); err != nil {
			log.Error("sleep record batch write failed",
				"user_id", userID, "batch_size", len(batch), "error", err)
			result.Failed += len(batch)
			continue
		}
		result.Processed += len(batch)
	}

	// The run reached the provider, so it counts as attempted even when some
	// writes failed: advance the sync position and clear the invalid flag.
	syncedThrough := dayOf(now)
	if err := s.Store.Integrations().UpdateLastSyncDate(ctx, userID, syncedThrough); err != nil {
		return domain.SyncResult{}, err
	}
	if err := s.Store.Integrations().SetTokenInvalid(ctx, userID, false); err != nil {
		return domain.SyncResult{}, err
	}

	if result.Processed > 0 {
		s.recomputeSummaryAsync(ctx, userID)
	}

	log.Info("sync completed",
		"user_id", userID,
		"window", startDay+".."+endDay,
		"fetched", result.TotalFetched,
		"processed", result.Processed,
		"failed", result.Failed)

	return result, nil
}

// window computes the UTC day range to fetch: the trailing lookback for a
// first sync, otherwise from the day after the last sync, floored at the
// lookback horizon. ok is false when there is nothing new to fetch.
func (s *SyncService) window(ctx context.Context, userID string, now time.Time) (startDay, endDay string, ok bool, err error) {
	in, err := s.Store.Integrations().GetIntegration(ctx, userID)
	if err != nil {
		return "", "", false, err
	}

	end := dayOf(now)
	start := dayOf(now.AddDate(0, -s.lookbackMonths(), 0))

	if in.LastSyncDate != nil {
		candidate := dayOf(*in.LastSyncDate).AddDate(0, 0, 1)
		if candidate.After(start) {
			start = candidate
		}
	}

	if start.After(end) {
		return "", "", false, nil
	}
	return start.Format(domain.DayLayout), end.Format(domain.DayLayout), true, nil
}

func (s *SyncService) classifyFetchFailure(ctx context.Context, userID string, err error) (domain.SyncResult, error) {
	log := slogx.FromContext(ctx)

	var authErr *oura.AuthError
	switch {
	case errors.As(err, &authErr):
		log.Warn("provider rejected access token; reconnect required",
			"user_id", userID, "status", authErr.Status)
		if setErr := s.Store.Integrations().SetTokenInvalid(ctx, userID, true); setErr != nil {
			return domain.SyncResult{}, setErr
		}
		return skipResult(domain.SkipNeedsReconnect), nil

	case errors.Is(err, oura.ErrRateLimited):
		log.Warn("provider rate limited sync", "user_id", userID)
		return skipResult(domain.SkipRateLimited), nil

	default:
		log.Error("provider fetch failed", "user_id", userID, "error", err)
		return skipResult(domain.SkipProviderError), nil
	}
}

// recomputeSummaryAsync fires summary recomputation without holding up the
// sync response. The recompute runs detached from the request's deadline and
// its failure only logs.
func (s *SyncService) recomputeSummaryAsync(ctx context.Context, userID string) {
	log := slogx.FromContext(ctx)
	detached := context.WithoutCancel(ctx)

	go func() {
		if _, err := s.Summaries.Recompute(detached, userID); err != nil {
			log.Error("summary recompute failed", "user_id", userID, "error", err)
		}
	}()
}

func skipResult(reason string) domain.SyncResult {
	return domain.SyncResult{
		SkippedReason:  reason,
		NeedsReconnect: reason == domain.SkipNeedsReconnect,
	}
}

func inBatches(records []domain.SleepRecord, size int) [][]domain.SleepRecord {
	if len(records) == 0 {
		return nil
	}
	batches := make([][]domain.SleepRecord, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// dayOf truncates to a UTC calendar day.
func dayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
