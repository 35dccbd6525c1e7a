package healthdata

import (
	"time"
)

type RangeKind string

const (
	RangeWeek        RangeKind = "week"
	RangeMonth       RangeKind = "month"
	RangeThreeMonths RangeKind = "3months"
)

// ParseRangeKind maps the frontend's range selector value. The third
// option was labeled "year" in older frontend revisions, so that spelling
// is kept as an alias; anything unrecognized falls back to month, the
// dashboard's default view.
func ParseRangeKind(s string) RangeKind {
	switch s {
	case "week":
		return RangeWeek
	case "3months", "year":
		return RangeThreeMonths
	case "month":
		return RangeMonth
	default:
		return RangeMonth
	}
}

// DateRangeFilter is a closed [StartDate, EndDate] day interval.
type DateRangeFilter struct {
	Kind      RangeKind   `json:"kind"`
	StartDate CalendarDay `json:"startDate"`
	EndDate   CalendarDay `json:"endDate"`
}

// ComputeDateRange anchors a range at the base date: end is the base day
// itself, start is 7 days / 1 calendar month / 3 calendar months back.
// An unknown kind gets the month arithmetic, same as ParseRangeKind.
func ComputeDateRange(base time.Time, kind RangeKind) DateRangeFilter {
	var start time.Time
	switch kind {
	case RangeWeek:
		start = base.AddDate(0, 0, -7)
	case RangeThreeMonths:
		start = subtractMonths(base, 3)
	default:
		start = subtractMonths(base, 1)
	}

	return DateRangeFilter{
		Kind:      kind,
		StartDate: DayOf(start),
		EndDate:   DayOf(base),
	}
}

// subtractMonths goes back whole calendar months, clamping the day of
// month to the target month's last valid day: Mar 31 minus one month is
// Feb 28 (29 in a leap year), not Mar 2/3. time.AddDate normalizes
// overflow by rolling into the next month, which is exactly the behavior
// a "last month of data" range must not have.
func subtractMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()

	monthIndex := int(month) - 1 - months
	for monthIndex < 0 {
		monthIndex += 12
		year--
	}
	targetMonth := time.Month(monthIndex + 1)

	if maxDay := daysInMonth(targetMonth, year); day > maxDay {
		day = maxDay
	}

	return time.Date(year, targetMonth, day, 0, 0, 0, 0, t.Location())
}
