package healthdata

import (
	"math"
	"sort"
)

// Window is the trailing number of days a moving average covers.
type Window int

const (
	Window5  Window = 5
	Window15 Window = 15
	Window30 Window = 30
)

var Windows = []Window{Window5, Window15, Window30}

// MovingAverage annotates each observation with the trailing simple average
// of the given metric over the given window, attached at the window's right
// edge. Days whose metric is absent are skipped inside the window; an
// average only exists when at least one value is present. The first
// window-1 observations never get one. Input order does not matter, the
// series is sorted by day first. The input slice is not modified.
func MovingAverage(series []Observation, window Window, metric Metric) []Observation {
	out := make([]Observation, len(series))
	copy(out, series)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})

	w := int(window)
	for i := range out {
		if i < w-1 {
			continue
		}

		var sum float64
		var count int
		for j := i - w + 1; j <= i; j++ {
			if v := out[j].metricValue(metric); v != nil {
				sum += *v
				count++
			}
		}
		if count == 0 {
			continue
		}

		out[i].setMovingAverage(window, round2(sum/float64(count)))
	}

	return out
}

// AllMovingAverages computes the 5, 15 and 30 day averages for one metric
// in a single annotated series. Equivalent to three MovingAverage calls
// merged by index - and implemented as exactly that, so the windows cannot
// interact.
func AllMovingAverages(series []Observation, metric Metric) []Observation {
	out := MovingAverage(series, Windows[0], metric)
	for _, window := range Windows[1:] {
		annotated := MovingAverage(series, window, metric)
		for i := range out {
			if avg := annotated[i].movingAverage(window); avg != nil {
				out[i].setMovingAverage(window, *avg)
			}
		}
	}
	return out
}

// round half away from zero to 2 decimal places
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
