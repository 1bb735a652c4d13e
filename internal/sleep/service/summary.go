package service

import (
	"context"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/store"
)

const (
	// DefaultGoodThreshold and DefaultExcellentThreshold are the streak
	// cutoffs. Product-tunable, not physiology.
	DefaultGoodThreshold      = 75
	DefaultExcellentThreshold = 85

	// Summaries only ever look at the trailing two years of records.
	summaryWindowYears = 2

	// The per-month trend covers the trailing six months.
	trendMonths = 6
)

// SummaryService derives per-user aggregate statistics from daily records.
// The summary is written as a whole document; it is never patched.
type SummaryService struct {
	Store store.Store

	GoodThreshold      int // defaults to DefaultGoodThreshold
	ExcellentThreshold int // defaults to DefaultExcellentThreshold
}

func (s *SummaryService) goodThreshold() int {
	if s.GoodThreshold > 0 {
		return s.GoodThreshold
	}
	return DefaultGoodThreshold
}

func (s *SummaryService) excellentThreshold() int {
	if s.ExcellentThreshold > 0 {
		return s.ExcellentThreshold
	}
	return DefaultExcellentThreshold
}

// Recompute rebuilds and stores the summary. Returns nil (and writes
// nothing) when the user has no records in the window.
func (s *SummaryService) Recompute(ctx context.Context, userID string) (*domain.SleepSummary, error) {
	now := time.Now().UTC()
	fromDay := now.AddDate(-summaryWindowYears, 0, 0).Format(domain.DayLayout)
	toDay := now.Format(domain.DayLayout)

	records, err := s.Store.SleepRecords().ListRange(ctx, userID, fromDay, toDay)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	summary := s.compute(userID, records, now)
	if err := s.Store.Summaries().ReplaceSummary(ctx, userID, summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// compute does the arithmetic over date-sorted records.
func (s *SummaryService) compute(userID string, records []domain.SleepRecord, now time.Time) domain.SleepSummary {
	monthTotals := make(monthTotalsByKey)

	best := domain.ScoreOnDay{Score: -1}
	worst := domain.ScoreOnDay{Score: 101}
	overall := 0

	for _, rec := range records {
		overall += rec.Score

		month := rec.Day[:len("2006-01")]
		acc, found := monthTotals[month]
		if !found {
			acc = &monthAccumulator{}
			monthTotals[month] = acc
		}
		acc.total += rec.Score
		acc.days++

		if rec.Score > best.Score {
			best = domain.ScoreOnDay{Day: rec.Day, Score: rec.Score}
		}
		if rec.Score < worst.Score {
			worst = domain.ScoreOnDay{Day: rec.Day, Score: rec.Score}
		}
	}

	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	currentMonth := firstOfMonth.Format("2006-01")
	previousMonth := firstOfMonth.AddDate(0, -1, 0).Format("2006-01")

	trend := make([]domain.MonthAverage, 0, trendMonths)
	for i := trendMonths - 1; i >= 0; i-- {
		month := firstOfMonth.AddDate(0, -i, 0).Format("2006-01")
		if acc, found := monthTotals[month]; found {
			trend = append(trend, domain.MonthAverage{
				Month:   month,
				Average: acc.average(),
				Days:    acc.days,
			})
		}
	}

	longestGood, currentGood := streaks(records, s.goodThreshold())
	longestExcellent, currentExcellent := streaks(records, s.excellentThreshold())

	return domain.SleepSummary{
		UserID:                 userID,
		CurrentMonthAverage:    monthTotals.averageOf(currentMonth),
		PreviousMonthAverage:   monthTotals.averageOf(previousMonth),
		OverallAverage:         float64(overall) / float64(len(records)),
		TotalDays:              len(records),
		Best:                   best,
		Worst:                  worst,
		LongestGoodStreak:      longestGood,
		CurrentGoodStreak:      currentGood,
		LongestExcellentStreak: longestExcellent,
		CurrentExcellentStreak: currentExcellent,
		Trend:                  trend,
		ComputedAt:             now,
	}
}

type monthAccumulator struct {
	total int
	days  int
}

type monthTotalsByKey map[string]*monthAccumulator

func (m monthTotalsByKey) averageOf(month string) float64 {
	if acc, found := m[month]; found {
		return acc.average()
	}
	return 0
}

func (a *monthAccumulator) average() float64 {
	if a.days == 0 {
		return 0
	}
	return float64(a.total) / float64(a.days)
}

// streaks computes the longest and current runs of consecutive calendar days
// at or above threshold. A date gap breaks a run. The current streak is zero
// unless the most recent record meets the threshold; records must be sorted
// by day ascending.
func streaks(records []domain.SleepRecord, threshold int) (longest, current int) {
	run := 0
	var prevDay time.Time

	for i, rec := range records {
		day, err := time.Parse(domain.DayLayout, rec.Day)
		if err != nil {
			continue
		}

		if rec.Score < threshold {
			run = 0
		} else if i > 0 && run > 0 && day.Sub(prevDay) == 24*time.Hour {
			run++
		} else {
			run = 1
		}

		if run > longest {
			longest = run
		}
		prevDay = day
	}

	return longest, run
}
