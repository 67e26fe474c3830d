// Package trigger implements the deviation-detection core of SleepEMA.
//
// Normalize turns raw provider sessions into nightly totals; Evaluate applies
// the deviation rule to decide whether an assessment should be sent. Both are
// pure functions with no side effects.
package trigger

import (
	"fmt"

	"github.com/BTreeMap/SleepEMA/internal/models"
)

// secondsPerHour converts the provider's duration unit to hours.
const secondsPerHour = 3600.0

// Normalize converts raw sleep sessions into nightly total-sleep hours,
// oldest to newest. Only long-sleep sessions carrying a duration qualify;
// malformed records are excluded, never an error. At most the last
// models.WindowNights entries are retained; shorter input is returned
// unchanged with no padding.
func Normalize(records []models.SleepSession) []float64 {
	hours := make([]float64, 0, len(records))
	for _, rec := range records {
		if !rec.Qualifies() {
			continue
		}
		hours = append(hours, *rec.TotalSleepDuration/secondsPerHour)
	}
	if len(hours) > models.WindowNights {
		hours = hours[len(hours)-models.WindowNights:]
	}
	return hours
}

// Evaluate applies the deviation rule to a normalized nightly series.
//
// The series must hold exactly models.BaselineNights prior nights plus the
// most recent night; anything shorter fails with models.ErrInsufficientData
// and no partial computation. The trigger is a plain OR of two independent
// conditions: the most recent night fell below the absolute floor minHours,
// or it deviated from the 7-night baseline mean by more than deviationPct
// percent. A zero baseline defines the percent change as 0 rather than
// dividing by zero.
func Evaluate(hours []float64, deviationPct, minHours float64) (models.TriggerDecision, error) {
	if len(hours) < models.WindowNights {
		return models.TriggerDecision{}, fmt.Errorf("%w: need %d nights, have %d",
			models.ErrInsufficientData, models.WindowNights, len(hours))
	}

	window := hours[len(hours)-models.WindowNights:]
	last := window[len(window)-1]
	baseline := mean(window[:len(window)-1])

	pctChange := 0.0
	if baseline > 0 {
		pctChange = abs(last-baseline) / baseline * 100
	}

	return models.TriggerDecision{
		LastNightHours:    last,
		BaselineMeanHours: baseline,
		PercentChange:     pctChange,
		Triggered:         last < minHours || pctChange > deviationPct,
	}, nil
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
