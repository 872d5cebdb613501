package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// MySQLCache is a MySQL implementation of the ResultCache port. An
// auto-increment column records insertion order for FIFO eviction.
type MySQLCache struct {
	db       *sql.DB
	capacity int
	logger   *zap.Logger
}

// NewMySQLCache creates a new MySQL cache
func NewMySQLCache(dsn string, capacity int, logger *zap.Logger) (*MySQLCache, error) {
	if capacity < 1 {
		capacity = 1000
	}

	db, err := sql.Open("mysql", dsn+"?parseTime=true")
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Verify the connection works
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS result_cache (
			insert_seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			fingerprint VARCHAR(64) NOT NULL UNIQUE,
			category VARCHAR(64),
			confidence DOUBLE,
			department VARCHAR(64),
			explanation TEXT,
			stage VARCHAR(32),
			probabilities TEXT,
			analyzed_at TIMESTAMP NULL,
			last_seen TIMESTAMP NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLCache{
		db:       db,
		capacity: capacity,
		logger:   logger,
	}, nil
}

// Get retrieves a cached result by fingerprint.
func (c *MySQLCache) Get(ctx context.Context, fingerprint string) (*core.ClassificationResult, error) {
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

	if _, err := c.db.ExecContext(ctx, `
		UPDATE result_cache SET last_seen = ? WHERE fingerprint = ?
	`, time.Now(), fingerprint); err != nil {
		c.logger.Warn("Failed to refresh cache timestamp", zap.Error(err))
	}

	result.FromCache = true
	return &result, nil
}

// Set stores a result and evicts the oldest-inserted row when over capacity.
func (c *MySQLCache) Set(ctx context.Context, fingerprint string, result *core.ClassificationResult) error {
	probs, err := json.Marshal(result.Probabilities)
	if err != nil {
		return fmt.Errorf("failed to encode probabilities: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO result_cache
			(fingerprint, category, confidence, department, explanation, stage, probabilities, analyzed_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			category = VALUES(category),
			confidence = VALUES(confidence),
			department = VALUES(department),
			explanation = VALUES(explanation),
			stage = VALUES(stage),
			probabilities = VALUES(probabilities),
			analyzed_at = VALUES(analyzed_at),
			last_seen = VALUES(last_seen)
	`, fingerprint, result.Category, result.Confidence, result.Department,
		result.Explanation, result.Stage, string(probs), result.AnalyzedAt, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	n, err := c.Len(ctx)
	if err != nil {
		return err
	}
	if n > c.capacity {
		_, err = c.db.ExecContext(ctx, `
			DELETE FROM result_cache ORDER BY insert_seq ASC LIMIT ?
		`, n-c.capacity)
		if err != nil {
			return fmt.Errorf("failed to evict cache entries: %w", err)
		}
	}

	return nil
}

// Len reports the number of live entries.
func (c *MySQLCache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM result_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Stop closes the database connection.
func (c *MySQLCache) Stop() {
	if err := c.db.Close(); err != nil {
		c.logger.Error("Failed to close MySQL cache", zap.Error(err))
	}
}
