package healthdata

import (
	"fmt"
	"time"
)

type Metric string

const (
	MetricWeight  Metric = "weight"
	MetricBodyFat Metric = "bodyFat"
)

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricWeight:
		return MetricWeight, nil
	case MetricBodyFat:
		return MetricBodyFat, nil
	default:
		return "", fmt.Errorf("unknown metric: %s", s)
	}
}

// CalendarDay is a date with the time-of-day discarded; two samples taken
// on the same day compare equal regardless of when they were taken
type CalendarDay struct {
	Year  int
	Month time.Month
	Day   int
}

func DayOf(t time.Time) CalendarDay {
	return CalendarDay{
		Year:  t.Year(),
		Month: t.Month(),
		Day:   t.Day(),
	}
}

func (d CalendarDay) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.Local)
}

func (d CalendarDay) Before(other CalendarDay) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d CalendarDay) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// APIDate is the zero-padded YYYYMMDD form the health planet API expects
func (d CalendarDay) APIDate() string {
	return fmt.Sprintf("%04d%02d%02d", d.Year, d.Month, d.Day)
}

func (d CalendarDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *CalendarDay) UnmarshalJSON(data []byte) error {
	t, err := time.Parse(`"2006-01-02"`, string(data))
	if err != nil {
		return fmt.Errorf("unmarshal calendar day %s: %w", data, err)
	}
	*d = DayOf(t)
	return nil
}

// Observation is the canonical per-day record: all samples of one calendar
// day merged into at most one weight and one body fat value, plus the
// moving average annotations for the currently selected metric. Absent
// values stay nil and are omitted from JSON, never rendered as zero.
type Observation struct {
	Date            CalendarDay `json:"date"`
	Weight          *float64    `json:"weight,omitempty"`
	BodyFat         *float64    `json:"bodyFat,omitempty"`
	MovingAverage5  *float64    `json:"movingAverage5,omitempty"`
	MovingAverage15 *float64    `json:"movingAverage15,omitempty"`
	MovingAverage30 *float64    `json:"movingAverage30,omitempty"`
}

func (o *Observation) metricValue(metric Metric) *float64 {
	if metric == MetricBodyFat {
		return o.BodyFat
	}
	return o.Weight
}

func (o *Observation) setMetricValue(metric Metric, value float64) {
	if metric == MetricBodyFat {
		o.BodyFat = &value
		return
	}
	o.Weight = &value
}

func (o *Observation) movingAverage(window Window) *float64 {
	switch window {
	case Window5:
		return o.MovingAverage5
	case Window15:
		return o.MovingAverage15
	default:
		return o.MovingAverage30
	}
}

func (o *Observation) setMovingAverage(window Window, value float64) {
	switch window {
	case Window5:
		o.MovingAverage5 = &value
	case Window15:
		o.MovingAverage15 = &value
	case Window30:
		o.MovingAverage30 = &value
	}
}
