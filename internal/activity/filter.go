package activity

import (
	"strings"
	"time"
)

// DateFilter narrows records to a trailing time window anchored at "now".
type DateFilter string

const (
	DateAll   DateFilter = "all"
	DateToday DateFilter = "today"
	DateWeek  DateFilter = "week"
	DateMonth DateFilter = "month"
)

// StatusFilter narrows records by outcome.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusSuccess StatusFilter = "success"
	StatusPending StatusFilter = "pending"
	StatusFailed  StatusFilter = "failed"
)

// maxSearchLength caps the free-text query. Longer queries are treated as a
// no-op rather than an error, so an oversized query cannot be used to burn
// CPU across the whole collection.
const maxSearchLength = 100

// event is the common view the filter pipeline needs over both record kinds.
type event interface {
	when() string
	searchFields() []string
}

// dateCutoff computes the window's lower bound. The second return is false
// when no bound applies ("all" or an unrecognized value).
func dateCutoff(now time.Time, filter DateFilter) (time.Time, bool) {
	switch filter {
	case DateToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()), true
	case DateWeek:
		return now.AddDate(0, 0, -7), true
	case DateMonth:
		return now.AddDate(0, 0, -30), true
	default:
		return time.Time{}, false
	}
}

// filterByDate keeps records whose timestamp is at or after the window's
// lower bound. Records with unparsable timestamps are skipped for any
// non-"all" window; they still appear when no date filter is applied.
func filterByDate[E event](events []E, filter DateFilter, now time.Time) []E {
	cutoff, ok := dateCutoff(now, filter)
	if !ok {
		return events
	}

	filtered := make([]E, 0, len(events))
	for _, e := range events {
		ts, err := parseTimestamp(e.when())
		if err != nil {
			continue
		}
		if !ts.Before(cutoff) {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// filterCommentsByStatus maps the status filter onto the comment outcome
// model: success means the reply went out, failed means an error was
// recorded, pending means neither.
func filterCommentsByStatus(events []CommentEvent, filter StatusFilter) []CommentEvent {
	if filter == StatusAll {
		return events
	}

	filtered := make([]CommentEvent, 0, len(events))
	for _, e := range events {
		switch filter {
		case StatusSuccess:
			if e.ReplySent {
				filtered = append(filtered, e)
			}
		case StatusPending:
			if !e.ReplySent && e.ErrorMessage == "" {
				filtered = append(filtered, e)
			}
		case StatusFailed:
			if e.ErrorMessage != "" {
				filtered = append(filtered, e)
			}
		}
	}
	return filtered
}

// filterDMsByStatus reads the delivery state directly off the record.
func filterDMsByStatus(events []DMEvent, filter StatusFilter) []DMEvent {
	if filter == StatusAll {
		return events
	}

	var want DMStatus
	switch filter {
	case StatusSuccess:
		want = DMDelivered
	case StatusPending:
		want = DMPending
	case StatusFailed:
		want = DMFailed
	default:
		return events
	}

	filtered := make([]DMEvent, 0, len(events))
	for _, e := range events {
		if e.Status == want {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// searchEvents keeps records where the query appears, case-insensitively, in
// any string field. An empty query or one over maxSearchLength leaves the
// set untouched.
func searchEvents[E event](events []E, query string) []E {
	if query == "" {
		return events
	}
	if len(query) > maxSearchLength {
		return events
	}

	q := strings.ToLower(query)
	filtered := make([]E, 0, len(events))
	for _, e := range events {
		for _, field := range e.searchFields() {
			if strings.Contains(strings.ToLower(field), q) {
				filtered = append(filtered, e)
				break
			}
		}
	}
	return filtered
}

func filterCommentsByAccount(events []CommentEvent, account string) []CommentEvent {
	if account == "" {
		return events
	}
	filtered := make([]CommentEvent, 0, len(events))
	for _, e := range events {
		if e.TargetAccount == account {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func filterCommentsByRule(events []CommentEvent, ruleID string) []CommentEvent {
	if ruleID == "" {
		return events
	}
	filtered := make([]CommentEvent, 0, len(events))
	for _, e := range events {
		if e.RuleID == ruleID {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func filterDMsByAccount(events []DMEvent, account string) []DMEvent {
	if account == "" {
		return events
	}
	filtered := make([]DMEvent, 0, len(events))
	for _, e := range events {
		if e.TargetAccount == account {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

func filterDMsByRule(events []DMEvent, ruleID string) []DMEvent {
	if ruleID == "" {
		return events
	}
	filtered := make([]DMEvent, 0, len(events))
	for _, e := range events {
		if e.RuleID == ruleID {
			filtered = append(filtered, e)
		}
	}
	return filtered
}
