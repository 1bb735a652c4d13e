package service

import (
	"fmt"
	"time"

	"github.com/somnuslabs/somnus/internal/sleep/domain"
	"github.com/somnuslabs/somnus/internal/sleep/oura"
)

// Estimation constants, used when a payload carries only 0-100 contributor
// percentages and no raw durations. The baseline assumes an 8 hour night;
// stage shares follow typical physiology (deep ~20%, REM ~22% of total).
// Latency is derived inversely: a perfect latency contributor means no
// measurable latency, a zero contributor maps to half an hour.
const (
	estimatedTotalBaselineSeconds = 8 * 60 * 60 // 28800
	deepShareOfTotal              = 0.20
	remShareOfTotal               = 0.22
	maxEstimatedLatencySeconds    = 1800
)

// MappingError records one raw record that could not be normalized and why.
// Rejected records are counted, never silently dropped.
type MappingError struct {
	SourceID string
	Reason   string
}

func (e MappingError) String() string {
	return fmt.Sprintf("%s: %s", e.SourceID, e.Reason)
}

// MapRecords normalizes raw provider records into daily sleep records. Pure:
// no I/O, no clock. Output order is whatever the provider sent; callers sort
// if they care.
//
// Field extraction is a fixed strategy order: direct duration fields when the
// payload has them, contributor-percentage estimation otherwise. The two
// paths are distinguished through SourceType so consumers know which numbers
// are measurements and which are guesses.
func MapRecords(raw []oura.DailySleepRecord, userID string) ([]domain.SleepRecord, []MappingError) {
	records := make([]domain.SleepRecord, 0, len(raw))
	var mappingErrors []MappingError

	reject := func(rec oura.DailySleepRecord, reason string) {
		mappingErrors = append(mappingErrors, MappingError{SourceID: rec.ID, Reason: reason})
	}

	for _, rec := range raw {
		if rec.Day == "" {
			reject(rec, "missing day")
			continue
		}
		if _, err := time.Parse(domain.DayLayout, rec.Day); err != nil {
			reject(rec, "unparseable day")
			continue
		}

		score, ok := extractScore(rec)
		if !ok {
			reject(rec, "missing score")
			continue
		}

		metrics, sourceType := extractMetrics(rec)

		records = append(records, domain.SleepRecord{
			UserID:  userID,
			Day:     rec.Day,
			Score:   score,
			Metrics: metrics,
			Source: domain.SourceData{
				Provider:   domain.SourceProviderOura,
				SourceType: sourceType,
				SourceID:   rec.ID,
			},
		})
	}

	return records, mappingErrors
}

// extractScore tries the current field first, then the legacy one. A record
// without any score is not usable.
func extractScore(rec oura.DailySleepRecord) (int, bool) {
	switch {
	case rec.Score != nil:
		return *rec.Score, true
	case rec.SleepScore != nil:
		return *rec.SleepScore, true
	default:
		return 0, false
	}
}

func extractMetrics(rec oura.DailySleepRecord) (domain.SleepMetrics, string) {
	if rec.TotalSleepDuration != nil {
		return exactMetrics(rec), domain.SourceTypeExact
	}
	return estimatedMetrics(rec.Contributors), domain.SourceTypeEstimated
}

func exactMetrics(rec oura.DailySleepRecord) domain.SleepMetrics {
	return domain.SleepMetrics{
		TotalSleepSeconds: intOrZero(rec.TotalSleepDuration),
		EfficiencyPercent: floatOrZero(rec.Efficiency),
		DeepSleepSeconds:  intOrZero(rec.DeepSleepDuration),
		RemSleepSeconds:   intOrZero(rec.RemSleepDuration),
		LightSleepSeconds: intOrZero(rec.LightSleepDuration),
		LatencySeconds:    intOrZero(rec.Latency),
		HeartRateAvg:      floatOrZero(rec.AverageHeartRate),
		HeartRateLowest:   floatOrZero(rec.LowestHeartRate),
		HRV:               floatOrZero(rec.AverageHRV),
		RespiratoryRate:   floatOrZero(rec.AverageBreath),
	}
}

// estimatedMetrics apportions the 8h baseline by contributor percentages.
// A missing contributor is treated as 100 (no penalty applied).
func estimatedMetrics(c oura.Contributors) domain.SleepMetrics {
	total := int(float64(estimatedTotalBaselineSeconds) * contributorShare(c.TotalSleep))
	deep := int(float64(total) * deepShareOfTotal * contributorShare(c.DeepSleep))
	rem := int(float64(total) * remShareOfTotal * contributorShare(c.RemSleep))

	light := total - deep - rem
	if light < 0 {
		light = 0
	}

	latency := int(float64(maxEstimatedLatencySeconds) * (1 - contributorShare(c.Latency)))

	return domain.SleepMetrics{
		TotalSleepSeconds: total,
		EfficiencyPercent: 100 * contributorShare(c.Efficiency),
		DeepSleepSeconds:  deep,
		RemSleepSeconds:   rem,
		LightSleepSeconds: light,
		LatencySeconds:    latency,
	}
}

// contributorShare converts a 0-100 contributor to [0,1], clamping junk.
func contributorShare(v *int) float64 {
	if v == nil {
		return 1
	}
	switch {
	case *v <= 0:
		return 0
	case *v >= 100:
		return 1
	default:
		return float64(*v) / 100
	}
}

func intOrZero(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func floatOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
