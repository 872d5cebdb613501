package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite implementation of the ResultCache port. Insertion
// order comes from the rowid, so FIFO eviction deletes the minimum rowid.
type SQLiteCache struct {
	db       *sql.DB
	capacity int
	logger   *zap.Logger
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, capacity int, logger *zap.Logger) (*SQLiteCache, error) {
	if capacity < 1 {
		capacity = 1000
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS result_cache (
			fingerprint TEXT PRIMARY KEY,
			category TEXT,
			confidence REAL,
			department TEXT,
			explanation TEXT,
			stage TEXT,
			probabilities TEXT,
			analyzed_at TIMESTAMP,
			last_seen TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &SQLiteCache{
		db:       db,
		capacity: capacity,
		logger:   logger,
	}, nil
}

// Get retrieves a cached result by fingerprint.
func (c *SQLiteCache) Get(ctx context.Context, fingerprint string) (*core.ClassificationResult, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT category, confidence, department, explanation, stage, probabilities, analyzed_at
		FROM result_cache WHERE fingerprint = ?
	`, fingerprint)

	var result core.ClassificationResult
	var probs string
	err := row.Scan(&result.Category, &result.Confidence, &result.Department,
		&result.Explanation, &result.Stage, &probs, &result.AnalyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query cache: %w", err)
	}

	if err := json.Unmarshal([]byte(probs), &result.Probabilities); err != nil {
		return nil, fmt.Errorf("failed to decode probabilities: %w", err)
	}

	// Refresh last seen; the cached value itself is left alone.
	if _, err := c.db.ExecContext(ctx, `
		UPDATE result_cache SET last_seen = ? WHERE fingerprint = ?
	`, time.Now(), fingerprint); err != nil {
		c.logger.Warn("Failed to refresh cache timestamp", zap.Error(err))
	}

	result.FromCache = true
	return &result, nil
}

// Set stores a result and evicts the oldest-inserted row when over capacity.
func (c *SQLiteCache) Set(ctx context.Context, fingerprint string, result *core.ClassificationResult) error {
	probs, err := json.Marshal(result.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to encode probabilities: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO result_cache
			(fingerprint, category, confidence, department, explanation, stage, probabilities, analyzed_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			category = excluded.category,
			confidence = excluded.confidence,
			department = excluded.department,
			explanation = excluded.explanation,
			stage = excluded.stage,
			probabilities = excluded.probabilities,
			analyzed_at = excluded.analyzed_at,
			last_seen = excluded.last_seen
	`, fingerprint, result.Category, result.Confidence, result.Department,
		result.Explanation, result.Stage, string(probs), result.AnalyzedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	// FIFO bound: drop the earliest-inserted rows while over capacity.
	n, err := c.Len(ctx)
	if err != nil {
		return err
	}
	if n > c.capacity {
		_, err = c.db.ExecContext(ctx, `
			DELETE FROM result_cache WHERE rowid IN (
				SELECT rowid FROM result_cache ORDER BY rowid ASC LIMIT ?
			)
		`, n-c.capacity)
		if err != nil {
			return fmt.Errorf("failed to evict cache entries: %w", err)
		}
	}

	return nil
}

// Len reports the number of live entries.
func (c *SQLiteCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM result_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Stop closes the database connection.
func (c *SQLiteCache) Stop() {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close SQLite cache", zap.Error(err))
	}
}
