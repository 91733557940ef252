package activity

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ErrNotFound is returned when a delete targets an id that does not exist.
var ErrNotFound = errors.New("event not found")

// ClearScope selects which collections a Clear call empties.
type ClearScope string

const (
	ClearComments ClearScope = "comments"
	ClearDMs      ClearScope = "dms"
	ClearAll      ClearScope = "all"
)

// Store owns the two event collections. It is constructed once at process
// start and shared by reference across request handlers. Each collection has
// its own RWMutex; readers take a point-in-time copy under RLock so all
// filtering and aggregation runs lock-free on the snapshot.
type Store struct {
	commentsMu sync.RWMutex
	comments   []*CommentEvent

	dmsMu sync.RWMutex
	dms   []*DMEvent
}

// NewStore creates an empty event store.
func NewStore() *Store {
	return &Store{
		comments: make([]*CommentEvent, 0),
		dms:      make([]*DMEvent, 0),
	}
}

func nowTimestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// InsertComment validates the event, assigns a fresh id, defaults a missing
// timestamp to the current UTC time, and makes the record visible to
// subsequent snapshots. The stored record is a copy; the caller's value is
// not retained.
func (s *Store) InsertComment(e CommentEvent) (string, error) {
	if e.Timestamp == "" {
		e.Timestamp = nowTimestamp()
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	e.ID = uuid.NewString()

	s.commentsMu.Lock()
	s.comments = append(s.comments, &e)
	s.commentsMu.Unlock()

	log.Info().Str("id", e.ID).Str("rule", e.RuleName).Msg("Recorded comment event")
	return e.ID, nil
}

// InsertDM is the direct-message counterpart of InsertComment.
func (s *Store) InsertDM(e DMEvent) (string, error) {
	if e.SentAt == "" {
		e.SentAt = nowTimestamp()
	}
	if err := e.Validate(); err != nil {
		return "", err
	}
	e.ID = uuid.NewString()

	s.dmsMu.Lock()
	s.dms = append(s.dms, &e)
	s.dmsMu.Unlock()

	log.Info().Str("id", e.ID).Str("rule", e.RuleName).Msg("Recorded DM event")
	return e.ID, nil
}

// DeleteComment removes a comment event by id, reporting whether it existed.
func (s *Store) DeleteComment(id string) bool {
	s.commentsMu.Lock()
	defer s.commentsMu.Unlock()

	for i, e := range s.comments {
		if e.ID == id {
			s.comments = append(s.comments[:i], s.comments[i+1:]...)
			return true
		}
	}
	return false
}

// DeleteDM removes a DM event by id, reporting whether it existed.
func (s *Store) DeleteDM(id string) bool {
	s.dmsMu.Lock()
	defer s.dmsMu.Unlock()

	for i, e := range s.dms {
		if e.ID == id {
			s.dms = append(s.dms[:i], s.dms[i+1:]...)
			return true
		}
	}
	return false
}

// Clear empties the collections named by scope. Irreversible.
func (s *Store) Clear(scope ClearScope) {
	if scope == ClearComments || scope == ClearAll {
		s.commentsMu.Lock()
		s.comments = make([]*CommentEvent, 0)
		s.commentsMu.Unlock()
		log.Warn().Msg("Cleared all comment events")
	}
	if scope == ClearDMs || scope == ClearAll {
		s.dmsMu.Lock()
		s.dms = make([]*DMEvent, 0)
		s.dmsMu.Unlock()
		log.Warn().Msg("Cleared all DM events")
	}
}

// SnapshotComments returns a point-in-time copy, in insertion order. Both
// the slice and the records are copied, so callers may read and reorder
// freely without further synchronization.
func (s *Store) SnapshotComments() []CommentEvent {
	s.commentsMu.RLock()
	defer s.commentsMu.RUnlock()

	out := make([]CommentEvent, len(s.comments))
	for i, e := range s.comments {
		out[i] = *e
	}
	return out
}

// SnapshotDMs returns a point-in-time copy of the DM collection.
func (s *Store) SnapshotDMs() []DMEvent {
	s.dmsMu.RLock()
	defer s.dmsMu.RUnlock()

	out := make([]DMEvent, len(s.dms))
	for i, e := range s.dms {
		out[i] = *e
	}
	return out
}

// CountComments returns the current comment collection size.
func (s *Store) CountComments() int {
	s.commentsMu.RLock()
	defer s.commentsMu.RUnlock()
	return len(s.comments)
}

// CountDMs returns the current DM collection size.
func (s *Store) CountDMs() int {
	s.dmsMu.RLock()
	defer s.dmsMu.RUnlock()
	return len(s.dms)
}
