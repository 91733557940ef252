// Package rules holds the automation rule registry. Event records reference
// rules only by denormalized (id, name); the activity core never reads this
// registry directly.
package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a rule id does not exist.
var ErrNotFound = errors.New("rule not found")

// ContentType is the kind of content a rule targets.
type ContentType string

const (
	ContentPost  ContentType = "post"
	ContentReel  ContentType = "reel"
	ContentStory ContentType = "story"
	ContentAll   ContentType = "all-content"
)

func validContentType(t ContentType) bool {
	switch t {
	case ContentPost, ContentReel, ContentStory, ContentAll:
		return true
	}
	return false
}

// Toggle configures what a matching rule does beyond replying.
type Toggle struct {
	CommentOnly bool   `json:"comment_only"`
	SendDM      bool   `json:"send_dm"`
	DMMessage   string `json:"dm_message,omitempty"`
}

// Rule is one automation policy.
type Rule struct {
	ID                string      `json:"id"`
	RuleName          string      `json:"rule_name"`
	Keywords          []string    `json:"keywords"`
	CommentReply      string      `json:"comment_reply"`
	TargetAccount     string      `json:"target_account"`
	TargetContentType ContentType `json:"target_content_type"`
	TargetContentIDs  []string    `json:"target_content_ids"`
	Toggle            Toggle      `json:"toggle"`
	IsActive          bool        `json:"is_active"`
	CreatedAt         string      `json:"created_at"`
	UpdatedAt         string      `json:"updated_at"`
}

// Validate checks the constraints a rule must satisfy at creation time.
func (r *Rule) Validate() error {
	if r.RuleName == "" {
		return fmt.Errorf("rule_name is required")
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("at least one keyword is required")
	}
	if r.TargetAccount == "" {
		return fmt.Errorf("target_account is required")
	}
	if !validContentType(r.TargetContentType) {
		return fmt.Errorf("invalid content type %q: must be one of post, reel, story, all-content", r.TargetContentType)
	}
	if r.TargetContentType != ContentAll && len(r.TargetContentIDs) == 0 {
		return fmt.Errorf("at least one content item must be selected for specific content types")
	}
	return nil
}

// Update carries a partial rule update; nil fields are left untouched.
type Update struct {
	RuleName          *string      `json:"rule_name,omitempty"`
	Keywords          *[]string    `json:"keywords,omitempty"`
	CommentReply      *string      `json:"comment_reply,omitempty"`
	TargetAccount     *string      `json:"target_account,omitempty"`
	TargetContentType *ContentType `json:"target_content_type,omitempty"`
	TargetContentIDs  *[]string    `json:"target_content_ids,omitempty"`
	Toggle            *Toggle      `json:"toggle,omitempty"`
	IsActive          *bool        `json:"is_active,omitempty"`
}

// ListFilter narrows rule listings.
type ListFilter string

const (
	ListAll      ListFilter = "all"
	ListActive   ListFilter = "active"
	ListInactive ListFilter = "inactive"
)

// Summary aggregates registry-level counts.
type Summary struct {
	TotalRules    int            `json:"total_rules"`
	ActiveRules   int            `json:"active_rules"`
	InactiveRules int            `json:"inactive_rules"`
	ByContentType map[string]int `json:"by_content_type"`
	ByAccount     map[string]int `json:"by_account"`
}

// BulkDeleteResult reports the outcome of a bulk delete.
type BulkDeleteResult struct {
	DeletedCount  int      `json:"deleted_count"`
	NotFoundCount int      `json:"not_found_count"`
	NotFoundIDs   []string `json:"not_found_ids"`
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func newRuleID() string {
	return uuid.NewString()
}
