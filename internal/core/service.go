package core

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TriageService is the ingestion coordinator. It validates and dedupes
// inbound messages, persists them, and drives each through the
// classification chain, the rule engine and the action dispatcher, either
// inline or as a supervised background job.
type TriageService struct {
	chain      ChainClassifier
	engine     RuleEngine
	dispatcher ActionDispatcher
	store      MessageStore
	supervisor JobSupervisor
	async      bool
	logger     *zap.Logger
}

// NewTriageService creates a new ingestion coordinator. When async is set,
// Receive returns as soon as the raw message is persisted and
// classification runs as a background job.
func NewTriageService(
	chain ChainClassifier,
	engine RuleEngine,
	dispatcher ActionDispatcher,
	store MessageStore,
	supervisor JobSupervisor,
	async bool,
	logger *zap.Logger,
) *TriageService {
	return &TriageService{
		chain:      chain,
		engine:     engine,
		dispatcher: dispatcher,
		store:      store,
		supervisor: supervisor,
		async:      async,
		logger:     logger,
	}
}

// Receive ingests one message. Validation failures surface as a
// ValidationError with nothing persisted; a known external id returns a
// Skipped outcome without re-running classification. Everything downstream
// of persistence (classification, routing, dispatch) is absorbed
// internally and never propagates to the caller.
func (s *TriageService) Receive(ctx context.Context, msg *Message) (*TriageOutcome, error) {
	msg.Subject = strings.TrimSpace(msg.Subject)
	msg.Body = strings.TrimSpace(msg.Body)
	msg.Sender = strings.TrimSpace(msg.Sender)

	if msg.Subject == "" && msg.Body == "" {
		return nil, &ValidationError{Reason: "subject and body are both empty"}
	}

	id := msg.ExternalID
	if id == "" {
		// Synthetic id for API-submitted messages without one.
		id = uuid.NewString()
		msg.ExternalID = id
	}
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = time.Now()
	}

	inserted, err := s.store.InsertIfAbsent(ctx, &StoredMessage{
		ID:      id,
		Message: *msg,
		Status:  StatusPending,
	})
	if err != nil {
		return nil, err
	}
	if !inserted {
		s.logger.Debug("Duplicate message skipped", zap.String("external_id", id))
		return &TriageOutcome{
			Status:    TriageSkipped,
			Reason:    SkipReasonDuplicate,
			MessageID: id,
		}, nil
	}

	if s.async {
		queued := *msg
		spawned := s.supervisor.Go("classify "+id, func() {
			s.process(context.Background(), &queued, id)
		})
		if spawned {
			return &TriageOutcome{
				Status:    TriageReceived,
				MessageID: id,
				Queued:    true,
			}, nil
		}
		// Supervisor is draining; fall through to inline processing so the
		// message is not left pending forever.
	}

	result := s.process(ctx, msg, id)
	return &TriageOutcome{
		Status:         TriageReceived,
		MessageID:      id,
		Classification: result,
	}, nil
}

// process runs one persisted message through classify, route and dispatch.
// All failures are absorbed into the persisted record's status fields.
func (s *TriageService) process(ctx context.Context, msg *Message, id string) *ClassificationResult {
	if err := s.store.SetStatus(ctx, id, StatusProcessing, ""); err != nil {
		s.logger.Error("Failed to mark message processing",
			zap.String("external_id", id),
			zap.Error(err))
	}

	result, fromCache := s.chain.Classify(ctx, msg.Subject, msg.Body, msg.Sender)

	s.logger.Info("Message classified",
		zap.String("external_id", id),
		zap.String("category", result.Category),
		zap.String("department", result.Department),
		zap.Float64("confidence", result.Confidence),
		zap.String("stage", result.Stage),
		zap.Bool("from_cache", fromCache))

	if err := s.store.UpdateClassification(ctx, id, result); err != nil {
		s.logger.Error("Failed to persist classification",
			zap.String("external_id", id),
			zap.Error(err))
		if err := s.store.SetStatus(ctx, id, StatusFailed, err.Error()); err != nil {
			s.logger.Error("Failed to mark message failed",
				zap.String("external_id", id),
				zap.Error(err))
		}
	}

	eval := s.engine.Evaluate(msg, result)
	if eval.Stopped {
		s.logger.Info("Rule evaluation halted by override",
			zap.String("external_id", id),
			zap.String("rule_id", eval.StoppedBy))
	}

	actionResults := s.dispatcher.Dispatch(ctx, msg, result, eval.Actions)
	if err := s.store.RecordActions(ctx, id, actionResults); err != nil {
		s.logger.Error("Failed to persist action log",
			zap.String("external_id", id),
			zap.Error(err))
	}

	return result
}

// WaitForBackground blocks until outstanding classification jobs finish or
// the timeout elapses. Used at shutdown and for test determinism.
func (s *TriageService) WaitForBackground(timeout time.Duration) bool {
	return s.supervisor.Drain(timeout)
}
