package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/model"
)

func TestHourlyActivityAndSummary(t *testing.T) {
	base := time.Date(2025, 5, 2, 9, 15, 0, 0, time.UTC)
	recs := []model.ActionRecord{
		{ActionType: model.KindLike, Method: model.MethodAPI, Success: true, TargetUser: "a", Timestamp: base},
		{ActionType: model.KindReply, Method: model.MethodBrowser, Success: true, TargetUser: "b", Timestamp: base.Add(20 * time.Minute)},
		{ActionType: model.KindIgnore, Method: model.MethodNone, TargetUser: "c", Timestamp: base.Add(30 * time.Minute)},
		{ActionType: model.KindLike, Method: model.MethodNone, Success: false, TargetUser: "a", Timestamp: base.Add(2 * time.Hour)},
	}

	hourly := HourlyActivity(recs)
	keys := SortedBucketKeys(hourly)
	require.Len(t, keys, 2)
	assert.Equal(t, time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC), keys[0])
	assert.Equal(t, 1, hourly[keys[0]][model.KindLike])
	assert.Equal(t, 1, hourly[keys[0]][model.KindIgnore])
	assert.Equal(t, 1, hourly[keys[1]][model.KindLike])

	tot := Summarize(recs)
	assert.Equal(t, 4, tot.Records)
	assert.Equal(t, 3, tot.Executed)
	assert.Equal(t, 2, tot.Succeeded)
	assert.Equal(t, 1, tot.Failed)
	assert.Equal(t, 2, tot.Users)
	assert.Equal(t, 1, tot.ByMethod[model.MethodNone])
	assert.InDelta(t, 2.0/3.0, tot.SuccessRate(), 1e-9)
	assert.Zero(t, Summarize(nil).SuccessRate())
}
