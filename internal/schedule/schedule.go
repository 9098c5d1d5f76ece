package schedule

import (
	"slices"
	"time"
)

// IsQuiet reports whether t falls in one of the quiet UTC hours.
func IsQuiet(t time.Time, quietHours []int) bool {
	return slices.Contains(quietHours, t.UTC().Hour())
}

// NextWindow returns the next suitable interaction time avoiding quiet hours.
func NextWindow(now time.Time, quietHours []int) time.Time {
	for i := 0; i < 48; i++ { // search up to 2 days ahead
		cand := now.Add(time.Duration(i) * time.Hour)
		if !IsQuiet(cand, quietHours) {
			if i == 0 {
				return cand
			}
			return cand.Truncate(time.Hour)
		}
	}
	return now.Add(15 * time.Minute)
}
