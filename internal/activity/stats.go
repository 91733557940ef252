package activity

import (
	"math"
	"time"
)

// Statistics holds the scalar dashboard metrics computed over the full,
// unfiltered contents of both collections.
type Statistics struct {
	TotalComments       int     `json:"total_comments"`
	TotalDMsSent        int     `json:"total_dms_sent"`
	ActiveRules         int     `json:"active_rules"`
	TodayComments       int     `json:"today_comments"`
	TodayDMsSent        int     `json:"today_dms_sent"`
	WeekComments        int     `json:"week_comments"`
	WeekDMsSent         int     `json:"week_dms_sent"`
	SuccessRateComments float64 `json:"success_rate_comments"`
	SuccessRateDMs      float64 `json:"success_rate_dms"`
	MostActiveRule      string  `json:"most_active_rule,omitempty"`
	MostActiveAccount   string  `json:"most_active_account,omitempty"`
}

// DailyBucket is one day's event counts.
type DailyBucket struct {
	Date     string `json:"date"`
	Comments int    `json:"comments"`
	DMs      int    `json:"dms"`
	Total    int    `json:"total"`
}

// DailySeries is an oldest-to-newest sequence of per-day buckets.
type DailySeries struct {
	DailyStats []DailyBucket `json:"daily_stats"`
	Days       int           `json:"days"`
}

// RuleStats is the per-rule rollup entry.
type RuleStats struct {
	RuleName           string  `json:"rule_name"`
	RuleID             string  `json:"rule_id"`
	TotalComments      int     `json:"total_comments"`
	SuccessfulComments int     `json:"successful_comments"`
	TotalDMs           int     `json:"total_dms"`
	SuccessfulDMs      int     `json:"successful_dms"`
	CommentSuccessRate float64 `json:"comment_success_rate"`
	DMSuccessRate      float64 `json:"dm_success_rate"`
}

// RuleRollup groups both collections by rule name.
type RuleRollup struct {
	RuleStats  []RuleStats `json:"rule_stats"`
	TotalRules int         `json:"total_rules"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// successRate returns successful/total as a percentage, 0 when total is 0.
func successRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(successful) / float64(total) * 100)
}

// countSince counts records whose timestamp is at or after the cutoff.
// Unparsable timestamps are skipped, never fatal.
func countSince[E event](events []E, cutoff time.Time) int {
	n := 0
	for _, e := range events {
		ts, err := parseTimestamp(e.when())
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// mostFrequent returns the key with the highest occurrence count. Ties are
// broken by earliest first appearance, so the result is deterministic for a
// given snapshot order.
func mostFrequent(keys []string) string {
	counts := make(map[string]int, len(keys))
	firstSeen := make(map[string]int, len(keys))
	for i, k := range keys {
		if _, ok := firstSeen[k]; !ok {
			firstSeen[k] = i
		}
		counts[k]++
	}

	best := ""
	bestCount := 0
	for k, c := range counts {
		if c > bestCount || (c == bestCount && firstSeen[k] < firstSeen[best]) {
			best = k
			bestCount = c
		}
	}
	return best
}

// Statistics computes the dashboard metrics from a snapshot of both
// collections. Most-active rollups run over the combined comments-then-DMs
// sequence in insertion order.
func (s *Service) Statistics() Statistics {
	comments := s.store.SnapshotComments()
	dms := s.store.SnapshotDMs()

	now := s.now()
	todayStart, _ := dateCutoff(now, DateToday)
	weekStart, _ := dateCutoff(now, DateWeek)

	successfulComments := 0
	for _, e := range comments {
		if e.ReplySent {
			successfulComments++
		}
	}
	successfulDMs := 0
	for _, e := range dms {
		if e.Status == DMDelivered {
			successfulDMs++
		}
	}

	ruleNames := make([]string, 0, len(comments)+len(dms))
	accounts := make([]string, 0, len(comments)+len(dms))
	distinctRules := make(map[string]struct{})
	for _, e := range comments {
		ruleNames = append(ruleNames, e.RuleName)
		accounts = append(accounts, e.TargetAccount)
		distinctRules[e.RuleName] = struct{}{}
	}
	for _, e := range dms {
		ruleNames = append(ruleNames, e.RuleName)
		accounts = append(accounts, e.TargetAccount)
		distinctRules[e.RuleName] = struct{}{}
	}

	return Statistics{
		TotalComments:       len(comments),
		TotalDMsSent:        len(dms),
		ActiveRules:         len(distinctRules),
		TodayComments:       countSince(comments, todayStart),
		TodayDMsSent:        countSince(dms, todayStart),
		WeekComments:        countSince(comments, weekStart),
		WeekDMsSent:         countSince(dms, weekStart),
		SuccessRateComments: successRate(successfulComments, len(comments)),
		SuccessRateDMs:      successRate(successfulDMs, len(dms)),
		MostActiveRule:      mostFrequent(ruleNames),
		MostActiveAccount:   mostFrequent(accounts),
	}
}

const (
	minSeriesDays = 1
	maxSeriesDays = 90
)

// DailyStats buckets both collections into days day-windows anchored at
// "now". Each bucket is the half-open interval [start-of-day, start-of-day
// + 1 day). The series is returned oldest to newest.
func (s *Service) DailyStats(days int) DailySeries {
	if days < minSeriesDays {
		days = minSeriesDays
	}
	if days > maxSeriesDays {
		days = maxSeriesDays
	}

	comments := s.store.SnapshotComments()
	dms := s.store.SnapshotDMs()
	now := s.now()

	buckets := make([]DailyBucket, 0, days)
	for i := 0; i < days; i++ {
		day := now.AddDate(0, 0, -i)
		y, m, d := day.Date()
		start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
		end := start.AddDate(0, 0, 1)

		b := DailyBucket{Date: start.Format("2006-01-02")}
		for _, e := range comments {
			if inBucket(e.Timestamp, start, end) {
				b.Comments++
			}
		}
		for _, e := range dms {
			if inBucket(e.SentAt, start, end) {
				b.DMs++
			}
		}
		b.Total = b.Comments + b.DMs
		buckets = append(buckets, b)
	}

	// Built newest first; callers expect chronological order.
	for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
		buckets[i], buckets[j] = buckets[j], buckets[i]
	}

	return DailySeries{DailyStats: buckets, Days: days}
}

func inBucket(timestamp string, start, end time.Time) bool {
	ts, err := parseTimestamp(timestamp)
	if err != nil {
		return false
	}
	return !ts.Before(start) && ts.Before(end)
}

// RuleStats groups both collections by rule name. Entries appear in
// first-seen order across the combined comments-then-DMs sequence.
func (s *Service) RuleStats() RuleRollup {
	comments := s.store.SnapshotComments()
	dms := s.store.SnapshotDMs()

	byRule := make(map[string]*RuleStats)
	order := make([]string, 0)

	get := func(ruleName, ruleID string) *RuleStats {
		if rs, ok := byRule[ruleName]; ok {
			return rs
		}
		rs := &RuleStats{RuleName: ruleName, RuleID: ruleID}
		byRule[ruleName] = rs
		order = append(order, ruleName)
		return rs
	}

	for _, e := range comments {
		rs := get(e.RuleName, e.RuleID)
		rs.TotalComments++
		if e.ReplySent {
			rs.SuccessfulComments++
		}
	}
	for _, e := range dms {
		rs := get(e.RuleName, e.RuleID)
		rs.TotalDMs++
		if e.Status == DMDelivered {
			rs.SuccessfulDMs++
		}
	}

	out := make([]RuleStats, 0, len(order))
	for _, name := range order {
		rs := byRule[name]
		rs.CommentSuccessRate = successRate(rs.SuccessfulComments, rs.TotalComments)
		rs.DMSuccessRate = successRate(rs.SuccessfulDMs, rs.TotalDMs)
		out = append(out, *rs)
	}

	return RuleRollup{RuleStats: out, TotalRules: len(out)}
}
