package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// SQLiteStore is a MessageStore backed by SQLite. The insert-if-absent
// dedup relies on the primary key conflict clause, so two concurrent
// ingestions of the same id cannot both win.
type SQLiteStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

type messageRow struct {
	ID             string    `db:"id"`
	Subject        string    `db:"subject"`
	Body           string    `db:"body"`
	Sender         string    `db:"sender"`
	Recipient      string    `db:"recipient"`
	ReceivedAt     time.Time `db:"received_at"`
	Headers        []byte    `db:"headers"`
	Status         string    `db:"status"`
	Error          string    `db:"error"`
	Classification []byte    `db:"classification"`
	Actions        []byte    `db:"actions"`
	IngestedAt     time.Time `db:"ingested_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// NewSQLiteStore creates a new SQLite-backed message store.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		sender TEXT NOT NULL,
		recipient TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMP NOT NULL,
		headers TEXT NOT NULL DEFAULT '{}',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		classification TEXT,
		actions TEXT,
		ingested_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_status ON messages (status);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create messages table: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// InsertIfAbsent persists the record unless the id already exists.
func (s *SQLiteStore) InsertIfAbsent(ctx context.Context, rec *core.StoredMessage) (bool, error) {
	headers, err := json.Marshal(rec.Message.Headers)
	if err != nil {
		return false, fmt.Errorf("failed to marshal headers: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, subject, body, sender, recipient, received_at, headers, status, ingested_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		rec.ID,
		rec.Message.Subject,
		rec.Message.Body,
		rec.Message.Sender,
		rec.Message.Recipient,
		rec.Message.ReceivedAt,
		string(headers),
		string(rec.Status),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateClassification upserts the single current classification for the
// message and marks it processed.
func (s *SQLiteStore) UpdateClassification(ctx context.Context, id string, result *core.ClassificationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET classification = ?, status = ?, error = '', updated_at = ? WHERE id = ?`,
		string(payload), string(core.StatusProcessed), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}
	return s.requireRow(res)
}

// SetStatus moves the message to a new pipeline status.
func (s *SQLiteStore) SetStatus(ctx context.Context, id string, status core.MessageStatus, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), reason, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return s.requireRow(res)
}

// RecordActions appends the dispatch results to the message's action log.
func (s *SQLiteStore) RecordActions(ctx context.Context, id string, actions []core.ActionResult) error {
	var existing []byte
	err := s.db.GetContext(ctx, &existing, `SELECT COALESCE(actions, '') FROM messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read action log: %w", err)
	}

	var log []core.ActionResult
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &log); err != nil {
			return fmt.Errorf("failed to unmarshal action log: %w", err)
		}
	}
	log = append(log, actions...)

	payload, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("failed to marshal action log: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET actions = ?, updated_at = ? WHERE id = ?`,
		string(payload), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update action log: %w", err)
	}
	return s.requireRow(res)
}

// Get fetches a persisted message with its classification and action log.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*core.StoredMessage, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM messages WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}

	rec := &core.StoredMessage{
		ID: row.ID,
		Message: core.Message{
			ExternalID: row.ID,
			Subject:    row.Subject,
			Body:       row.Body,
			Sender:     row.Sender,
			Recipient:  row.Recipient,
			ReceivedAt: row.ReceivedAt,
		},
		Status:     core.MessageStatus(row.Status),
		Error:      row.Error,
		IngestedAt: row.IngestedAt,
		UpdatedAt:  row.UpdatedAt,
	}

	if len(row.Headers) > 0 {
		if err := json.Unmarshal(row.Headers, &rec.Message.Headers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal headers: %w", err)
		}
	}
	if len(row.Classification) > 0 {
		rec.Result = &core.ClassificationResult{}
		if err := json.Unmarshal(row.Classification, rec.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal classification: %w", err)
		}
	}
	if len(row.Actions) > 0 {
		if err := json.Unmarshal(row.Actions, &rec.Actions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal action log: %w", err)
		}
	}

	return rec, nil
}

// Stop closes the database connection.
func (s *SQLiteStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}

func (s *SQLiteStore) requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrMessageNotFound
	}
	return nil
}
