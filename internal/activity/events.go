package activity

import (
	"fmt"
	"strings"
	"time"
)

// DMStatus is the delivery state of a direct message attempt.
type DMStatus string

const (
	DMDelivered DMStatus = "delivered"
	DMPending   DMStatus = "pending"
	DMFailed    DMStatus = "failed"
)

// ValidDMStatus reports whether s is one of the known delivery states.
func ValidDMStatus(s DMStatus) bool {
	switch s {
	case DMDelivered, DMPending, DMFailed:
		return true
	}
	return false
}

// CommentEvent records one automated reply attempt to a comment.
type CommentEvent struct {
	ID                string `json:"id"`
	Timestamp         string `json:"timestamp"`
	PostURL           string `json:"post_url"`
	CommenterUsername string `json:"commenter_username"`
	CommenterUserID   string `json:"commenter_user_id"`
	CommentText       string `json:"comment_text"`
	ReplySent         bool   `json:"reply_sent"`
	ReplyText         string `json:"reply_text,omitempty"`
	RuleID            string `json:"rule_id"`
	RuleName          string `json:"rule_name"`
	TargetAccount     string `json:"target_account"`
	ErrorMessage      string `json:"error_message,omitempty"`
}

// DMEvent records one direct message send attempt.
type DMEvent struct {
	ID                string   `json:"id"`
	SentAt            string   `json:"sent_at"`
	RecipientUsername string   `json:"recipient_username"`
	RecipientUserID   string   `json:"recipient_user_id"`
	Message           string   `json:"message"`
	Status            DMStatus `json:"status"`
	RuleID            string   `json:"rule_id"`
	RuleName          string   `json:"rule_name"`
	TargetAccount     string   `json:"target_account"`
	ErrorMessage      string   `json:"error_message,omitempty"`
	RetryCount        int      `json:"retry_count"`
}

// ValidationError reports a rejected field on ingest.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func requireField(field, value string, max int) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Reason: "required"}
	}
	if len(value) > max {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("exceeds %d characters", max)}
	}
	return nil
}

// parseTimestamp accepts RFC 3339 timestamps, with or without sub-second
// precision or an explicit offset.
func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable timestamp %q", value)
}

// Validate checks field constraints. The timestamp may be empty here; the
// store defaults it to the current time before insert.
func (e *CommentEvent) Validate() error {
	if e.Timestamp != "" {
		if _, err := parseTimestamp(e.Timestamp); err != nil {
			return &ValidationError{Field: "timestamp", Reason: "not a valid RFC 3339 timestamp"}
		}
	}
	if err := requireField("post_url", e.PostURL, 500); err != nil {
		return err
	}
	if err := requireField("commenter_username", e.CommenterUsername, 100); err != nil {
		return err
	}
	if err := requireField("commenter_user_id", e.CommenterUserID, 100); err != nil {
		return err
	}
	if err := requireField("comment_text", e.CommentText, 5000); err != nil {
		return err
	}
	if len(e.ReplyText) > 5000 {
		return &ValidationError{Field: "reply_text", Reason: "exceeds 5000 characters"}
	}
	if err := requireField("rule_id", e.RuleID, 100); err != nil {
		return err
	}
	if err := requireField("rule_name", e.RuleName, 200); err != nil {
		return err
	}
	if err := requireField("target_account", e.TargetAccount, 100); err != nil {
		return err
	}
	if len(e.ErrorMessage) > 1000 {
		return &ValidationError{Field: "error_message", Reason: "exceeds 1000 characters"}
	}
	if e.ReplySent && e.ErrorMessage != "" {
		return &ValidationError{Field: "error_message", Reason: "must be empty when reply_sent is true"}
	}
	return nil
}

// Validate checks field constraints and clamps the retry count to [0,10].
func (e *DMEvent) Validate() error {
	if e.SentAt != "" {
		if _, err := parseTimestamp(e.SentAt); err != nil {
			return &ValidationError{Field: "sent_at", Reason: "not a valid RFC 3339 timestamp"}
		}
	}
	if err := requireField("recipient_username", e.RecipientUsername, 100); err != nil {
		return err
	}
	if err := requireField("recipient_user_id", e.RecipientUserID, 100); err != nil {
		return err
	}
	if err := requireField("message", e.Message, 1000); err != nil {
		return err
	}
	if !ValidDMStatus(e.Status) {
		return &ValidationError{Field: "status", Reason: "must be delivered, pending, or failed"}
	}
	if err := requireField("rule_id", e.RuleID, 100); err != nil {
		return err
	}
	if err := requireField("rule_name", e.RuleName, 200); err != nil {
		return err
	}
	if err := requireField("target_account", e.TargetAccount, 100); err != nil {
		return err
	}
	if len(e.ErrorMessage) > 1000 {
		return &ValidationError{Field: "error_message", Reason: "exceeds 1000 characters"}
	}
	if e.RetryCount < 0 {
		e.RetryCount = 0
	}
	if e.RetryCount > 10 {
		e.RetryCount = 10
	}
	return nil
}

// Failed reports whether the comment reply attempt ended in an error.
func (e CommentEvent) Failed() bool { return e.ErrorMessage != "" }

// when returns the record's relevant timestamp for date filtering.
func (e CommentEvent) when() string { return e.Timestamp }

func (e DMEvent) when() string { return e.SentAt }

// searchFields lists every string-valued field the free-text search scans.
func (e CommentEvent) searchFields() []string {
	return []string{
		e.ID, e.Timestamp, e.PostURL, e.CommenterUsername, e.CommenterUserID,
		e.CommentText, e.ReplyText, e.RuleID, e.RuleName, e.TargetAccount, e.ErrorMessage,
	}
}

func (e DMEvent) searchFields() []string {
	return []string{
		e.ID, e.SentAt, e.RecipientUsername, e.RecipientUserID, e.Message,
		string(e.Status), e.RuleID, e.RuleName, e.TargetAccount, e.ErrorMessage,
	}
}
