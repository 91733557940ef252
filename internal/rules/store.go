package rules

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Store owns all rules. Same discipline as the activity store: one RWMutex,
// insertion order preserved so listings are deterministic.
type Store struct {
	mu    sync.RWMutex
	rules map[string]*Rule
	order []string
}

// NewStore creates an empty rule registry.
func NewStore() *Store {
	return &Store{rules: make(map[string]*Rule)}
}

// Create validates and stores a new rule, assigning id and timestamps.
func (s *Store) Create(r Rule) (*Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	r.ID = newRuleID()
	now := nowTimestamp()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.TargetContentIDs == nil {
		r.TargetContentIDs = []string{}
	}

	s.mu.Lock()
	s.rules[r.ID] = &r
	s.order = append(s.order, r.ID)
	s.mu.Unlock()

	log.Info().Str("id", r.ID).Str("name", r.RuleName).Msg("Created rule")
	out := r
	return &out, nil
}

// Get returns a copy of the rule, or ErrNotFound.
func (s *Store) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

// List returns rules in creation order, optionally narrowed by active state
// and target account.
func (s *Store) List(filter ListFilter, account string) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Rule, 0, len(s.order))
	for _, id := range s.order {
		r := s.rules[id]
		if filter == ListActive && !r.IsActive {
			continue
		}
		if filter == ListInactive && r.IsActive {
			continue
		}
		if account != "" && r.TargetAccount != account {
			continue
		}
		out = append(out, *r)
	}
	return out
}

// Apply merges a partial update into an existing rule. Updated fields are
// re-validated as a whole; a failed validation leaves the rule unchanged.
func (s *Store) Apply(id string, u Update) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := *r
	if u.RuleName != nil {
		updated.RuleName = *u.RuleName
	}
	if u.Keywords != nil {
		updated.Keywords = *u.Keywords
	}
	if u.CommentReply != nil {
		updated.CommentReply = *u.CommentReply
	}
	if u.TargetAccount != nil {
		updated.TargetAccount = *u.TargetAccount
	}
	if u.TargetContentType != nil {
		updated.TargetContentType = *u.TargetContentType
	}
	if u.TargetContentIDs != nil {
		updated.TargetContentIDs = *u.TargetContentIDs
	}
	if u.Toggle != nil {
		updated.Toggle = *u.Toggle
	}
	if u.IsActive != nil {
		updated.IsActive = *u.IsActive
	}

	if err := updated.Validate(); err != nil {
		return nil, err
	}
	updated.UpdatedAt = nowTimestamp()
	*r = updated

	out := updated
	return &out, nil
}

// SetActive flips a rule's enabled state.
func (s *Store) SetActive(id string, active bool) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.IsActive = active
	r.UpdatedAt = nowTimestamp()

	out := *r
	return &out, nil
}

// Delete removes a rule, returning the deleted copy or ErrNotFound.
func (s *Store) Delete(id string) (*Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rules[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.rules, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	log.Info().Str("id", id).Msg("Deleted rule")
	out := *r
	return &out, nil
}

// BulkDelete removes every listed rule, reporting which ids were missing.
func (s *Store) BulkDelete(ids []string) BulkDeleteResult {
	result := BulkDeleteResult{NotFoundIDs: []string{}}
	for _, id := range ids {
		if _, err := s.Delete(id); err != nil {
			result.NotFoundCount++
			result.NotFoundIDs = append(result.NotFoundIDs, id)
			continue
		}
		result.DeletedCount++
	}
	return result
}

// Summary computes registry-level counts.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{
		ByContentType: make(map[string]int),
		ByAccount:     make(map[string]int),
	}
	for _, r := range s.rules {
		sum.TotalRules++
		if r.IsActive {
			sum.ActiveRules++
		} else {
			sum.InactiveRules++
		}
		sum.ByContentType[string(r.TargetContentType)]++
		sum.ByAccount[r.TargetAccount]++
	}
	return sum
}
