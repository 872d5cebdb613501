package store

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-process MessageStore for tests and store-less
// deployments. Insert-if-absent is atomic under the store mutex.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*core.StoredMessage
	logger  *zap.Logger
}

// NewMemoryStore creates a new in-memory message store.
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*core.StoredMessage),
		logger:  logger,
	}
}

// InsertIfAbsent persists the record unless the id already exists.
func (s *MemoryStore) InsertIfAbsent(ctx context.Context, rec *core.StoredMessage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return false, nil
	}

	stored := *rec
	now := time.Now()
	stored.IngestedAt = now
	stored.UpdatedAt = now
	s.records[rec.ID] = &stored
	return true, nil
}

// UpdateClassification upserts the message's classification and marks it
// processed.
func (s *MemoryStore) UpdateClassification(ctx context.Context, id string, result *core.ClassificationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return core.ErrMessageNotFound
	}
	rec.Result = result
	rec.Status = core.StatusProcessed
	rec.Error = ""
	rec.UpdatedAt = time.Now()
	return nil
}

// SetStatus moves the message to a new pipeline status.
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status core.MessageStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return core.ErrMessageNotFound
	}
	rec.Status = status
	rec.Error = reason
	rec.UpdatedAt = time.Now()
	return nil
}

// RecordActions appends the dispatch results to the message's action log.
func (s *MemoryStore) RecordActions(ctx context.Context, id string, actions []core.ActionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return core.ErrMessageNotFound
	}
	rec.Actions = append(rec.Actions, actions...)
	rec.UpdatedAt = time.Now()
	return nil
}

// Get fetches a persisted message.
func (s *MemoryStore) Get(ctx context.Context, id string) (*core.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.records[id]
	if !exists {
		return nil, core.ErrMessageNotFound
	}
	copied := *rec
	copied.Actions = append([]core.ActionResult(nil), rec.Actions...)
	return &copied, nil
}

// Len reports the number of persisted messages.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
