// Package analytics summarizes the action log for the stats command.
package analytics

import (
	"sort"
	"time"

	"herald/internal/model"
)

// HourlyActivity buckets records into UTC hours keyed by action type.
func HourlyActivity(records []model.ActionRecord) map[time.Time]map[model.ActionKind]int {
	buckets := make(map[time.Time]map[model.ActionKind]int)
	for _, r := range records {
		ts := r.Timestamp.UTC()
		key := time.Date(ts.Year(), ts.Month(), ts.Day(), ts.Hour(), 0, 0, 0, time.UTC)
		if _, ok := buckets[key]; !ok {
			buckets[key] = make(map[model.ActionKind]int)
		}
		buckets[key][r.ActionType]++
	}
	return buckets
}

// SortedBucketKeys returns the hour keys oldest first.
func SortedBucketKeys[V any](m map[time.Time]V) []time.Time {
	keys := make([]time.Time, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })
	return keys
}

// Totals aggregates a window of the action log.
type Totals struct {
	Records   int                      `json:"records"`
	Executed  int                      `json:"executed"`
	Succeeded int                      `json:"succeeded"`
	Failed    int                      `json:"failed"`
	ByType    map[model.ActionKind]int `json:"by_type"`
	ByMethod  map[model.Method]int     `json:"by_method"`
	Users     int                      `json:"distinct_users"`
}

// SuccessRate is succeeded over executed, 0 when nothing was executed.
func (t Totals) SuccessRate() float64 {
	if t.Executed == 0 {
		return 0
	}
	return float64(t.Succeeded) / float64(t.Executed)
}

// Summarize counts records by type and channel. Ignore records count toward
// Records and ByType only.
func Summarize(records []model.ActionRecord) Totals {
	t := Totals{ByType: map[model.ActionKind]int{}, ByMethod: map[model.Method]int{}}
	users := map[string]struct{}{}
	for _, r := range records {
		t.Records++
		t.ByType[r.ActionType]++
		if !r.Executed() {
			continue
		}
		t.Executed++
		t.ByMethod[r.Method]++
		users[r.TargetUser] = struct{}{}
		if r.Success {
			t.Succeeded++
		} else {
			t.Failed++
		}
	}
	t.Users = len(users)
	return t
}
