package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/store"
)

const (
	// DefaultListDays is the range served when the caller gives no window.
	DefaultListDays = 30

	maxTags       = 20
	maxTagLength  = 64
	maxNotesBytes = 2000
)

var (
	ErrInvalidDay   = errors.New("invalid_day")
	ErrInvalidRange = errors.New("invalid_range")
	ErrInvalidTags  = errors.New("invalid_tags")
	ErrNotesTooLong = errors.New("notes_too_long")
)

// RecordsService serves stored daily records and user annotations on them.
type RecordsService struct {
	Store     store.Store
	Summaries *SummaryService
}

// List returns records in [startDay, endDay], both optional. An empty window
// defaults to the trailing DefaultListDays days.
func (s *RecordsService) List(ctx context.Context, userID, startDay, endDay string) ([]domain.SleepRecord, error) {
	now := time.Now().UTC()

	if endDay == "" {
		endDay = now.Format(domain.DayLayout)
	}
	if startDay == "" {
		startDay = now.AddDate(0, 0, -DefaultListDays).Format(domain.DayLayout)
	}

	start, err := time.Parse(domain.DayLayout, startDay)
	if err != nil {
		return nil, ErrInvalidDay
	}
	end, err := time.Parse(domain.DayLayout, endDay)
	if err != nil {
		return nil, ErrInvalidDay
	}
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	return s.Store.SleepRecords().ListRange(ctx, userID, startDay, endDay)
}

// Get returns a single day's record; store.ErrNotFound when the day has none.
func (s *RecordsService) Get(ctx context.Context, userID, day string) (domain.SleepRecord, error) {
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return domain.SleepRecord{}, ErrInvalidDay
	}
	return s.Store.SleepRecords().GetRecord(ctx, userID, day)
}

// Annotate replaces the user's tags and notes on an existing day. Provider
// metrics are untouched; annotations are the one part of a record users own.
func (s *RecordsService) Annotate(ctx context.Context, userID, day string, tags []string, notes string) (domain.SleepRecord, error) {
	if _, err := time.Parse(domain.DayLayout, day); err != nil {
		return domain.SleepRecord{}, ErrInvalidDay
	}

	cleaned, err := cleanTags(tags)
	if err != nil {
		return domain.SleepRecord{}, err
	}
	if len(notes) > maxNotesBytes {
		return domain.SleepRecord{}, ErrNotesTooLong
	}

	if err := s.Store.SleepRecords().UpdateAnnotations(ctx, userID, day, cleaned, notes); err != nil {
		return domain.SleepRecord{}, err
	}
	return s.Store.SleepRecords().GetRecord(ctx, userID, day)
}

// Summary returns the stored summary document. A miss triggers one
// recomputation, covering summaries lost to a failed async recompute;
// store.ErrNotFound still comes back when the user has no records at all.
func (s *RecordsService) Summary(ctx context.Context, userID string) (domain.SleepSummary, error) {
	summary, err := s.Store.Summaries().GetSummary(ctx, userID)
	if err == nil || !errors.Is(err, store.ErrNotFound) || s.Summaries == nil {
		return summary, err
	}

	recomputed, err := s.Summaries.Recompute(ctx, userID)
	if err != nil {
		return domain.SleepSummary{}, err
	}
	if recomputed == nil {
		return domain.SleepSummary{}, store.ErrNotFound
	}
	return *recomputed, nil
}

func cleanTags(tags []string) ([]string, error) {
	if len(tags) > maxTags {
		return nil, ErrInvalidTags
	}

	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > maxTagLength {
			return nil, ErrInvalidTags
		}
		cleaned = append(cleaned, tag)
	}
	return cleaned, nil
}
