package model

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"herald/internal/util"
)

// ParseCount converts a displayed metric ("842", "1,204", "1.2K", "3M") into an
// integer. Anything unparseable counts as zero.
func ParseCount(s string) int {
	s = strings.ToUpper(util.NormalizeWhitespace(s))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0
	}
	mult := 1.0
	switch {
	case strings.HasSuffix(s, "K"):
		mult, s = 1e3, strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		mult, s = 1e6, strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "B"):
		mult, s = 1e9, strings.TrimSuffix(s, "B")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(math.Round(f * mult))
}

// TotalEngagement is likes + retweets + views/1000.
func (p CandidatePost) TotalEngagement() float64 {
	return float64(ParseCount(p.Likes)) + float64(ParseCount(p.Retweets)) + float64(ParseCount(p.Views))/1000
}

// RankByEngagement sorts posts by TotalEngagement, highest first. Ties keep
// discovery order.
func RankByEngagement(posts []CandidatePost) []CandidatePost {
	out := make([]CandidatePost, len(posts))
	copy(out, posts)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalEngagement() > out[j].TotalEngagement()
	})
	return out
}
