package services

import (
	"sort"
	"time"
)

// Work-session reconstruction constants. A ping opens a session worth
// SessionBaseline; consecutive pings closer than SessionGap extend it by the
// actual gap; a larger gap starts a new session.
const (
	SessionBaseline = 30 * time.Second
	SessionGap      = 120 * time.Second
)

// EstimateWorkTime reconstructs worked time from raw activity pings. The
// input need not be sorted; duplicates contribute nothing.
//
// Reference values: pings at 0/30/90/300 seconds yield 150s (30 baseline +
// 30 gap + 60 gap + 30 new-session baseline).
func EstimateWorkTime(pings []time.Time) time.Duration {
	if len(pings) == 0 {
		return 0
	}
	sorted := make([]time.Time, len(pings))
	copy(sorted, pings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	total := SessionBaseline
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].Sub(sorted[i-1])
		switch {
		case gap <= 0:
			// duplicate ping
		case gap <= SessionGap:
			total += gap
		default:
			total += SessionBaseline
		}
	}
	return total
}

// EstimateWorkMinutes sums EstimateWorkTime across profiles and rounds to
// whole minutes.
func EstimateWorkMinutes(pingsByProfile map[string][]time.Time) int64 {
	var total time.Duration
	for _, pings := range pingsByProfile {
		total += EstimateWorkTime(pings)
	}
	return int64(total.Round(time.Minute) / time.Minute)
}
