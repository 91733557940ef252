// Package archive mirrors accepted events into Postgres, one row per event.
// The in-memory store stays authoritative; the archive is a write-behind
// copy for deployments that want history to survive a restart. Failures are
// logged and never surfaced to the ingest path.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/autogram/autogram/internal/activity"
)

// Archiver writes event rows to Postgres.
type Archiver struct {
	db *sql.DB
}

// New opens the database and ensures the event tables exist.
func New(databaseURL string) (*Archiver, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach archive database: %w", err)
	}

	a := &Archiver{db: db}
	if err := a.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the database handle.
func (a *Archiver) Close() error {
	return a.db.Close()
}

func (a *Archiver) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS comment_events (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
			post_url TEXT NOT NULL,
			commenter_username TEXT NOT NULL,
			commenter_user_id TEXT NOT NULL,
			comment_text TEXT NOT NULL,
			reply_sent BOOLEAN NOT NULL,
			reply_text TEXT,
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			target_account TEXT NOT NULL,
			error_message TEXT,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS dm_events (
			id TEXT PRIMARY KEY,
			sent_at TEXT NOT NULL,
			recipient_username TEXT NOT NULL,
			recipient_user_id TEXT NOT NULL,
			message TEXT NOT NULL,
			status TEXT NOT NULL,
			rule_id TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			target_account TEXT NOT NULL,
			error_message TEXT,
			retry_count INT NOT NULL,
			archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range statements {
		if _, err := a.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create archive table: %w", err)
		}
	}
	return nil
}

// ArchiveComment inserts a comment event row in the background. The request
// context is not reused: the mirror write should finish even if the client
// disconnects.
func (a *Archiver) ArchiveComment(_ context.Context, e activity.CommentEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := a.db.ExecContext(ctx, `
			INSERT INTO comment_events (id, ts, post_url, commenter_username, commenter_user_id,
				comment_text, reply_sent, reply_text, rule_id, rule_name, target_account, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.Timestamp, e.PostURL, e.CommenterUsername, e.CommenterUserID,
			e.CommentText, e.ReplySent, e.ReplyText, e.RuleID, e.RuleName, e.TargetAccount, e.ErrorMessage)

		if err != nil {
			log.Error().Err(err).Str("id", e.ID).Msg("Failed to archive comment event")
		}
	}()
}

// ArchiveDM inserts a DM event row in the background.
func (a *Archiver) ArchiveDM(_ context.Context, e activity.DMEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		_, err := a.db.ExecContext(ctx, `
			INSERT INTO dm_events (id, sent_at, recipient_username, recipient_user_id,
				message, status, rule_id, rule_name, target_account, error_message, retry_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.SentAt, e.RecipientUsername, e.RecipientUserID,
			e.Message, string(e.Status), e.RuleID, e.RuleName, e.TargetAccount, e.ErrorMessage, e.RetryCount)

		if err != nil {
			log.Error().Err(err).Str("id", e.ID).Msg("Failed to archive DM event")
		}
	}()
}
