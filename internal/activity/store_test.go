package activity

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validComment() CommentEvent {
	return CommentEvent{
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		PostURL:           "https://instagram.com/p/abc123",
		CommenterUsername: "jane_doe",
		CommenterUserID:   "17841400000001",
		CommentText:       "love this, link please!",
		ReplySent:         true,
		ReplyText:         "Check your DMs!",
		RuleID:            "rule-1",
		RuleName:          "Link Requests",
		TargetAccount:     "mybrand",
	}
}

func validDM() DMEvent {
	return DMEvent{
		SentAt:            time.Now().UTC().Format(time.RFC3339),
		RecipientUsername: "jane_doe",
		RecipientUserID:   "17841400000001",
		Message:           "Here is the link you asked for",
		Status:            DMDelivered,
		RuleID:            "rule-1",
		RuleName:          "Link Requests",
		TargetAccount:     "mybrand",
	}
}

func TestInsertComment(t *testing.T) {
	store := NewStore()

	t.Run("assigns id and stores record", func(t *testing.T) {
		id, err := store.InsertComment(validComment())
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		snap := store.SnapshotComments()
		require.Len(t, snap, 1)
		assert.Equal(t, id, snap[0].ID)
	})

	t.Run("defaults missing timestamp", func(t *testing.T) {
		e := validComment()
		e.Timestamp = ""
		_, err := store.InsertComment(e)
		require.NoError(t, err)

		snap := store.SnapshotComments()
		got := snap[len(snap)-1]
		_, perr := time.Parse(time.RFC3339, got.Timestamp)
		assert.NoError(t, perr)
	})

	t.Run("rejects unparsable timestamp", func(t *testing.T) {
		e := validComment()
		e.Timestamp = "yesterday at noon"
		_, err := store.InsertComment(e)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "timestamp", verr.Field)
	})

	t.Run("rejects missing required fields", func(t *testing.T) {
		e := validComment()
		e.RuleName = ""
		_, err := store.InsertComment(e)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "rule_name", verr.Field)
	})

	t.Run("rejects error message on successful reply", func(t *testing.T) {
		e := validComment()
		e.ReplySent = true
		e.ErrorMessage = "rate limited"
		_, err := store.InsertComment(e)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "error_message", verr.Field)
	})
}

func TestInsertDM(t *testing.T) {
	store := NewStore()

	t.Run("rejects unknown status", func(t *testing.T) {
		e := validDM()
		e.Status = "bounced"
		_, err := store.InsertDM(e)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "status", verr.Field)
	})

	t.Run("clamps retry count", func(t *testing.T) {
		e := validDM()
		e.RetryCount = 25
		id, err := store.InsertDM(e)
		require.NoError(t, err)

		for _, got := range store.SnapshotDMs() {
			if got.ID == id {
				assert.Equal(t, 10, got.RetryCount)
				return
			}
		}
		t.Fatal("inserted DM not found in snapshot")
	})

	t.Run("rejects oversized message", func(t *testing.T) {
		e := validDM()
		long := make([]byte, 1001)
		for i := range long {
			long[i] = 'x'
		}
		e.Message = string(long)
		_, err := store.InsertDM(e)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "message", verr.Field)
	})
}

func TestDelete(t *testing.T) {
	store := NewStore()
	id, err := store.InsertComment(validComment())
	require.NoError(t, err)

	assert.True(t, store.DeleteComment(id))
	assert.False(t, store.DeleteComment(id), "second delete reports not found")
	assert.False(t, store.DeleteDM("no-such-id"))
	assert.Equal(t, 0, store.CountComments())
}

func TestClearScopes(t *testing.T) {
	store := NewStore()
	_, err := store.InsertComment(validComment())
	require.NoError(t, err)
	_, err = store.InsertDM(validDM())
	require.NoError(t, err)

	store.Clear(ClearComments)
	assert.Equal(t, 0, store.CountComments())
	assert.Equal(t, 1, store.CountDMs(), "DM collection unaffected by comment clear")

	store.Clear(ClearAll)
	assert.Equal(t, 0, store.CountDMs())
}

func TestSnapshotIsolation(t *testing.T) {
	store := NewStore()
	_, err := store.InsertComment(validComment())
	require.NoError(t, err)

	before := store.SnapshotComments()
	reference := store.SnapshotComments()

	// Mutating the snapshot and the store must not affect the other copy.
	before[0].CommentText = "tampered"
	_, err = store.InsertComment(validComment())
	require.NoError(t, err)

	after := store.SnapshotComments()
	assert.Len(t, after, 2)
	if diff := cmp.Diff(reference[0], after[0]); diff != "" {
		t.Errorf("stored record changed under snapshot mutation (-want +got):\n%s", diff)
	}
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	store := NewStore()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				e := validComment()
				e.CommentText = fmt.Sprintf("writer %d message %d", w, i)
				_, err := store.InsertComment(e)
				assert.NoError(t, err)
			}
		}(w)
	}
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				snap := store.SnapshotComments()
				// A snapshot is never torn: every record it contains is complete.
				for _, e := range snap {
					assert.NotEmpty(t, e.ID)
					assert.NotEmpty(t, e.CommentText)
				}
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 8*50, store.CountComments())
}
