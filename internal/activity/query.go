package activity

import (
	"sort"
	"time"
)

// SortOrder direction for query sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// commentSortFields is the allow-list for comment queries. The first entry
// is the deterministic fallback when an unknown field is requested.
var commentSortFields = []string{"timestamp", "commenter_username", "rule_name", "target_account", "reply_sent"}

// dmSortFields is the allow-list for DM queries.
var dmSortFields = []string{"sent_at", "recipient_username", "rule_name", "target_account", "status"}

// validateSortField clamps the requested field to the allow-list. Unknown
// fields fall back to the list's first entry instead of failing the request.
func validateSortField(field string, allowed []string) string {
	for _, f := range allowed {
		if f == field {
			return field
		}
	}
	return allowed[0]
}

func commentSortKey(field string) func(e CommentEvent) string {
	switch field {
	case "commenter_username":
		return func(e CommentEvent) string { return e.CommenterUsername }
	case "rule_name":
		return func(e CommentEvent) string { return e.RuleName }
	case "target_account":
		return func(e CommentEvent) string { return e.TargetAccount }
	case "reply_sent":
		// false sorts before true
		return func(e CommentEvent) string {
			if e.ReplySent {
				return "1"
			}
			return "0"
		}
	default:
		return func(e CommentEvent) string { return e.Timestamp }
	}
}

func dmSortKey(field string) func(e DMEvent) string {
	switch field {
	case "recipient_username":
		return func(e DMEvent) string { return e.RecipientUsername }
	case "rule_name":
		return func(e DMEvent) string { return e.RuleName }
	case "target_account":
		return func(e DMEvent) string { return e.TargetAccount }
	case "status":
		return func(e DMEvent) string { return string(e.Status) }
	default:
		return func(e DMEvent) string { return e.SentAt }
	}
}

// sortEvents performs a stable sort in place; ties keep their prior
// relative order.
func sortEvents[E event](events []E, key func(E) string, order SortOrder) {
	if order == SortDesc {
		sort.SliceStable(events, func(i, j int) bool { return key(events[j]) < key(events[i]) })
		return
	}
	sort.SliceStable(events, func(i, j int) bool { return key(events[i]) < key(events[j]) })
}

// paginate applies the skip/limit window and reports the pre-pagination
// total. Skip is clamped to non-negative, limit to [1,maxLimit].
func paginate[E event](events []E, skip, limit int) (page []E, total int, outSkip int, outLimit int, hasMore bool) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	total = len(events)
	start := skip
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return events[start:end], total, skip, limit, skip+limit < total
}

// QueryParams carries the filter, sort, and pagination inputs of one query.
type QueryParams struct {
	Skip         int
	Limit        int
	DateFilter   DateFilter
	StatusFilter StatusFilter
	Search       string
	Account      string
	RuleID       string
	SortBy       string
	SortOrder    SortOrder
}

// CommentPage is one page of comment events plus pagination metadata.
type CommentPage struct {
	Comments []CommentEvent `json:"comments"`
	Total    int            `json:"total"`
	Skip     int            `json:"skip"`
	Limit    int            `json:"limit"`
	HasMore  bool           `json:"has_more"`
}

// DMPage is one page of DM events plus pagination metadata.
type DMPage struct {
	DMs     []DMEvent `json:"dms"`
	Total   int       `json:"total"`
	Skip    int       `json:"skip"`
	Limit   int       `json:"limit"`
	HasMore bool      `json:"has_more"`
}

// Service is the query and analytics facade over a Store. The clock is
// injectable so date-window behavior is testable.
type Service struct {
	store *Store
	now   func() time.Time
}

// NewService creates a Service over the given store using the system clock.
func NewService(store *Store) *Service {
	return &Service{store: store, now: time.Now}
}

// QueryComments runs the full pipeline over a comment snapshot: date,
// status, search, account, and rule filters, then stable sort, then the
// pagination window.
func (s *Service) QueryComments(p QueryParams) CommentPage {
	events := s.store.SnapshotComments()

	events = filterByDate(events, p.DateFilter, s.now())
	events = filterCommentsByStatus(events, p.StatusFilter)
	events = searchEvents(events, p.Search)
	events = filterCommentsByAccount(events, p.Account)
	events = filterCommentsByRule(events, p.RuleID)

	field := validateSortField(p.SortBy, commentSortFields)
	sortEvents(events, commentSortKey(field), p.SortOrder)

	page, total, skip, limit, hasMore := paginate(events, p.Skip, p.Limit)
	return CommentPage{Comments: page, Total: total, Skip: skip, Limit: limit, HasMore: hasMore}
}

// QueryDMs runs the same pipeline over a DM snapshot.
func (s *Service) QueryDMs(p QueryParams) DMPage {
	events := s.store.SnapshotDMs()

	events = filterByDate(events, p.DateFilter, s.now())
	events = filterDMsByStatus(events, p.StatusFilter)
	events = searchEvents(events, p.Search)
	events = filterDMsByAccount(events, p.Account)
	events = filterDMsByRule(events, p.RuleID)

	field := validateSortField(p.SortBy, dmSortFields)
	sortEvents(events, dmSortKey(field), p.SortOrder)

	page, total, skip, limit, hasMore := paginate(events, p.Skip, p.Limit)
	return DMPage{DMs: page, Total: total, Skip: skip, Limit: limit, HasMore: hasMore}
}
