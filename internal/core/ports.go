package core

import (
	"context"
	"time"
)

// Classifier is one stage in the fallback chain. Implementations may use
// their own category vocabulary; the chain translates it into the canonical
// department vocabulary afterwards. A stage signals "no answer" by returning
// an error or a result with zero confidence / the unknown category.
type Classifier interface {
	// Name identifies the stage in logs and results.
	Name() string

	// Classify analyzes a message's content.
	Classify(ctx context.Context, subject, body, sender string) (*ClassificationResult, error)
}

// ResultCache memoizes classification results keyed by content fingerprint.
// Implementations are bounded and evict the oldest-inserted entry first
// (FIFO, not LRU).
type ResultCache interface {
	// Get retrieves a cached result. Returns ErrCacheMiss when absent.
	Get(ctx context.Context, fingerprint string) (*ClassificationResult, error)

	// Set stores a result, evicting the oldest entry when over capacity.
	Set(ctx context.Context, fingerprint string, result *ClassificationResult) error

	// Len reports the number of live entries.
	Len(ctx context.Context) (int, error)

	// Stop releases any background resources.
	Stop()
}

// MessageStore persists ingested messages and their classification records.
// Dedup relies on InsertIfAbsent being atomic on the external id.
type MessageStore interface {
	// InsertIfAbsent persists the record unless a message with the same id
	// already exists. Reports whether the insert happened.
	InsertIfAbsent(ctx context.Context, rec *StoredMessage) (bool, error)

	// UpdateClassification upserts the single current classification for a
	// message and marks it processed.
	UpdateClassification(ctx context.Context, id string, result *ClassificationResult) error

	// SetStatus moves the message to a new pipeline status.
	SetStatus(ctx context.Context, id string, status MessageStatus, reason string) error

	// RecordActions appends the dispatch log for a message.
	RecordActions(ctx context.Context, id string, actions []ActionResult) error

	// Get fetches a persisted message. Returns ErrMessageNotFound when absent.
	Get(ctx context.Context, id string) (*StoredMessage, error)
}

// ChainClassifier resolves a classification for message content, consulting
// the result cache. The second return value reports a cache hit. It never
// fails: stage errors are absorbed and a terminal stage always answers.
type ChainClassifier interface {
	Classify(ctx context.Context, subject, body, sender string) (*ClassificationResult, bool)
}

// Evaluation is the outcome of one pass over the routing rule set.
type Evaluation struct {
	Matched   []MatchedRule
	Actions   []Action
	Stopped   bool
	StoppedBy string
}

// RuleEngine evaluates the routing rule set against a message and its
// classification.
type RuleEngine interface {
	Evaluate(msg *Message, result *ClassificationResult) *Evaluation
}

// ActionDispatcher executes routing actions, isolating failures per action.
type ActionDispatcher interface {
	Dispatch(ctx context.Context, msg *Message, result *ClassificationResult, actions []Action) []ActionResult
}

// JobSupervisor tracks fire-and-forget background jobs so shutdown can
// drain them.
type JobSupervisor interface {
	// Go spawns fn as a tracked job. Reports false when rejected.
	Go(name string, fn func()) bool

	// Drain waits for outstanding jobs until the timeout elapses.
	Drain(timeout time.Duration) bool
}

// MailSource is an external mailbox the poll loop pulls batches from.
type MailSource interface {
	// Connect establishes the source connection.
	Connect(ctx context.Context, credentials map[string]string) error

	// IsConnected reports whether the source is usable.
	IsConnected() bool

	// FetchMessages pulls up to limit most-recent messages. The query string
	// is source-specific and may be empty.
	FetchMessages(ctx context.Context, limit int, query string) ([]Message, error)
}
