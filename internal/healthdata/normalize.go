package healthdata

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/2beens/healthdash/internal/healthplanet"
)

// metricTags maps the innerscan tag codes to metrics. Tags outside this
// table are skipped without error, the upstream account may track metrics
// this dashboard does not show.
var metricTags = map[string]Metric{
	healthplanet.TagWeight:  MetricWeight,
	healthplanet.TagBodyFat: MetricBodyFat,
}

// Normalize merges raw innerscan samples into canonical per-day observations.
// Multiple samples for the same (day, metric) collapse last-write-wins in
// input order, matching how the API reports re-measurements. A malformed
// date or keydata anywhere in the batch fails the whole call: a partially
// corrupt series is worse than no series.
func Normalize(raw []healthplanet.Measurement) ([]Observation, error) {
	byDay := make(map[CalendarDay]*Observation, len(raw))

	for _, m := range raw {
		day, err := ParseCalendarDay(m.Date)
		if err != nil {
			return nil, fmt.Errorf("measurement date [%s]: %w", m.Date, err)
		}

		obs, seen := byDay[day]
		if !seen {
			obs = &Observation{Date: day}
			byDay[day] = obs
		}

		value, err := strconv.ParseFloat(m.KeyData, 64)
		if err != nil {
			return nil, fmt.Errorf("measurement keydata [%s]: %w", m.KeyData, err)
		}

		metric, known := metricTags[m.Tag]
		if !known {
			continue
		}

		obs.setMetricValue(metric, value)
	}

	observations := make([]Observation, 0, len(byDay))
	for _, obs := range byDay {
		observations = append(observations, *obs)
	}
	sort.Slice(observations, func(i, j int) bool {
		return observations[i].Date.Before(observations[j].Date)
	})

	return observations, nil
}

// ParseCalendarDay reads the first 8 digits of an innerscan date string
// (YYYYMMDD or YYYYMMDDHHMMSS) as a calendar day.
func ParseCalendarDay(dateStr string) (CalendarDay, error) {
	if len(dateStr) != 8 && len(dateStr) != 14 {
		return CalendarDay{}, fmt.Errorf("date string must be 8 or 14 digits, got %d", len(dateStr))
	}
	for _, r := range dateStr {
		if r < '0' || r > '9' {
			return CalendarDay{}, fmt.Errorf("date string contains a non-digit: %q", r)
		}
	}

	year, _ := strconv.Atoi(dateStr[:4])
	month, _ := strconv.Atoi(dateStr[4:6])
	day, _ := strconv.Atoi(dateStr[6:8])

	if month < 1 || month > 12 {
		return CalendarDay{}, fmt.Errorf("month out of range: %d", month)
	}
	if day < 1 || day > daysInMonth(time.Month(month), year) {
		return CalendarDay{}, fmt.Errorf("day out of range: %d", day)
	}

	return CalendarDay{Year: year, Month: time.Month(month), Day: day}, nil
}

func daysInMonth(month time.Month, year int) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
