package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey/mail-triage/internal/adapters/store"
	"github.com/mikey/mail-triage/internal/classifier"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/dispatch"
	"github.com/mikey/mail-triage/internal/engine"
	"github.com/mikey/mail-triage/internal/supervisor"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubChain is a scripted ChainClassifier that counts invocations.
type stubChain struct {
	mu     sync.Mutex
	calls  int
	result core.ClassificationResult
}

func (c *stubChain) Classify(ctx context.Context, subject, body, sender string) (*core.ClassificationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	out := c.result
	return &out, false
}

func (c *stubChain) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// failingStore wraps the in-memory store and fails classification updates
// on demand.
type failingStore struct {
	*store.MemoryStore
	updateErr error
}

func (s *failingStore) UpdateClassification(ctx context.Context, id string, result *core.ClassificationResult) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	return s.MemoryStore.UpdateClassification(ctx, id, result)
}

func logDispatcher(logger *zap.Logger) core.ActionDispatcher {
	return dispatch.NewDispatcher(
		dispatch.NewLogMailbox(logger),
		dispatch.NewLogNotifier(logger),
		dispatch.NewLogTaskTracker(logger),
		dispatch.NewLogSenderList(logger),
		logger,
	)
}

func newStubService(chain core.ChainClassifier, messageStore core.MessageStore, async bool) *core.TriageService {
	logger := zap.NewNop()
	return core.NewTriageService(
		chain,
		engine.NewEmptyEngine(logger),
		logDispatcher(logger),
		messageStore,
		supervisor.NewSupervisor(logger),
		async,
		logger,
	)
}

// newRealService wires the full pipeline: keyword and baseline classifier
// stages, the default rule set, and log-only sinks.
func newRealService(t *testing.T, async bool) (*core.TriageService, *store.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	tp := utils.NewTextProcessor(logger)
	chain := classifier.NewChain([]core.Classifier{
		classifier.NewDepartmentClassifier(tp, 0.12, 0.4, logger),
		classifier.NewBaselineClassifier(tp, logger),
	}, nil, false, tp, logger)
	messageStore := store.NewMemoryStore(logger)
	service := core.NewTriageService(
		chain,
		engine.NewEngine(logger),
		logDispatcher(logger),
		messageStore,
		supervisor.NewSupervisor(logger),
		async,
		logger,
	)
	return service, messageStore
}

func inboundMessage(id, subject, body string) *core.Message {
	return &core.Message{
		ExternalID: id,
		Subject:    subject,
		Body:       body,
		Sender:     "someone@example.com",
		ReceivedAt: time.Now(),
	}
}

func TestTriageService_RejectsEmptyMessage(t *testing.T) {
	messageStore := store.NewMemoryStore(zap.NewNop())
	service := newStubService(&stubChain{}, messageStore, false)

	outcome, err := service.Receive(context.Background(), inboundMessage("m1", "   ", "\t\n"))

	assert.Nil(t, outcome)
	require.Error(t, err)
	assert.True(t, core.IsValidationError(err))

	var verr *core.ValidationError
	assert.ErrorAs(t, err, &verr)

	// Nothing was persisted
	assert.Zero(t, messageStore.Len())
}

func TestTriageService_SubjectOnlyIsAccepted(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "updates", Confidence: 0.5}}
	service := newStubService(chain, store.NewMemoryStore(zap.NewNop()), false)

	outcome, err := service.Receive(context.Background(), inboundMessage("m1", "subject only", ""))
	require.NoError(t, err)
	assert.Equal(t, core.TriageReceived, outcome.Status)
}

func TestTriageService_DuplicateSkipped(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "updates", Confidence: 0.5}}
	messageStore := store.NewMemoryStore(zap.NewNop())
	service := newStubService(chain, messageStore, false)
	ctx := context.Background()

	first, err := service.Receive(ctx, inboundMessage("m1", "hello", "world"))
	require.NoError(t, err)
	assert.Equal(t, core.TriageReceived, first.Status)

	second, err := service.Receive(ctx, inboundMessage("m1", "hello", "world"))
	require.NoError(t, err)
	assert.Equal(t, core.TriageSkipped, second.Status)
	assert.Equal(t, core.SkipReasonDuplicate, second.Reason)
	assert.Equal(t, "m1", second.MessageID)
	assert.Nil(t, second.Classification)

	// The duplicate never reached the classifier
	assert.Equal(t, 1, chain.callCount())
	assert.Equal(t, 1, messageStore.Len())
}

func TestTriageService_SyntheticIDForAPISubmissions(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "updates", Confidence: 0.5}}
	service := newStubService(chain, store.NewMemoryStore(zap.NewNop()), false)
	ctx := context.Background()

	first, err := service.Receive(ctx, inboundMessage("", "no id", "body"))
	require.NoError(t, err)
	assert.NotEmpty(t, first.MessageID)

	// A second submission without an id gets its own id, not a duplicate
	second, err := service.Receive(ctx, inboundMessage("", "no id", "body"))
	require.NoError(t, err)
	assert.Equal(t, core.TriageReceived, second.Status)
	assert.NotEqual(t, first.MessageID, second.MessageID)
}

func TestTriageService_SyncReturnsClassification(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "important", Confidence: 0.9}}
	messageStore := store.NewMemoryStore(zap.NewNop())
	service := newStubService(chain, messageStore, false)

	outcome, err := service.Receive(context.Background(), inboundMessage("m1", "hello", "world"))
	require.NoError(t, err)

	assert.False(t, outcome.Queued)
	require.NotNil(t, outcome.Classification)
	assert.Equal(t, "important", outcome.Classification.Category)

	rec, err := messageStore.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessed, rec.Status)
	assert.NotEmpty(t, rec.Actions)
}

func TestTriageService_AsyncQueuesClassification(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "important", Confidence: 0.9}}
	messageStore := store.NewMemoryStore(zap.NewNop())
	service := newStubService(chain, messageStore, true)

	outcome, err := service.Receive(context.Background(), inboundMessage("m1", "hello", "world"))
	require.NoError(t, err)

	assert.Equal(t, core.TriageReceived, outcome.Status)
	assert.True(t, outcome.Queued)
	assert.Nil(t, outcome.Classification)

	require.True(t, service.WaitForBackground(2*time.Second))

	rec, err := messageStore.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessed, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "important", rec.Result.Category)
	assert.Equal(t, 1, chain.callCount())
}

func TestTriageService_AsyncFallsBackInlineWhenSupervisorStopped(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "updates", Confidence: 0.5}}
	logger := zap.NewNop()
	sup := supervisor.NewSupervisor(logger)
	sup.Stop()

	service := core.NewTriageService(
		chain,
		engine.NewEmptyEngine(logger),
		logDispatcher(logger),
		store.NewMemoryStore(logger),
		sup,
		true,
		logger,
	)

	outcome, err := service.Receive(context.Background(), inboundMessage("m1", "hello", "world"))
	require.NoError(t, err)

	// The job was rejected, so classification ran inline instead
	assert.False(t, outcome.Queued)
	require.NotNil(t, outcome.Classification)
}

func TestTriageService_StoreFailureAbsorbed(t *testing.T) {
	chain := &stubChain{result: core.ClassificationResult{Category: "updates", Confidence: 0.5}}
	messageStore := &failingStore{
		MemoryStore: store.NewMemoryStore(zap.NewNop()),
		updateErr:   errors.New("disk full"),
	}
	service := newStubService(chain, messageStore, false)

	// Persisting the classification fails, but ingestion already succeeded
	// so the caller still gets a result.
	outcome, err := service.Receive(context.Background(), inboundMessage("m1", "hello", "world"))
	require.NoError(t, err)
	require.NotNil(t, outcome.Classification)

	rec, err := messageStore.Get(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, rec.Status)
	assert.Equal(t, "disk full", rec.Error)
}

func TestTriageService_UrgentOutageEscalates(t *testing.T) {
	service, messageStore := newRealService(t, false)

	outcome, err := service.Receive(context.Background(),
		inboundMessage("m1", "URGENT: server down", "The production server is not responding, total outage"))
	require.NoError(t, err)

	require.NotNil(t, outcome.Classification)
	assert.Equal(t, "it_support", outcome.Classification.Department)

	rec, err := messageStore.Get(context.Background(), "m1")
	require.NoError(t, err)

	// The urgent keyword rule escalated the message
	assert.True(t, hasAction(rec.Actions, core.ActionPriority, "high"))
	assert.True(t, hasAction(rec.Actions, core.ActionNotify, "urgent"))
	assert.False(t, hasAction(rec.Actions, core.ActionArchive, "true"))
}

func TestTriageService_PromotionArchived(t *testing.T) {
	service, messageStore := newRealService(t, false)

	outcome, err := service.Receive(context.Background(),
		inboundMessage("m1", "50% off sale this weekend", "Buy now and save on your next order"))
	require.NoError(t, err)

	require.NotNil(t, outcome.Classification)
	assert.Equal(t, "sales", outcome.Classification.Department)

	rec, err := messageStore.Get(context.Background(), "m1")
	require.NoError(t, err)

	assert.True(t, hasAction(rec.Actions, core.ActionRoute, "promotions"))
	assert.True(t, hasAction(rec.Actions, core.ActionArchive, "true"))
	assert.False(t, hasAction(rec.Actions, core.ActionPriority, "high"))
}

func TestTriageService_LegalHoldOverridesEverything(t *testing.T) {
	service, messageStore := newRealService(t, false)

	outcome, err := service.Receive(context.Background(),
		inboundMessage("m1", "Litigation hold notice", "A litigation hold applies, preserve all documents"))
	require.NoError(t, err)
	require.NotNil(t, outcome.Classification)

	rec, err := messageStore.Get(context.Background(), "m1")
	require.NoError(t, err)

	// Only the failsafe's actions ran; rules below it never contributed
	require.Len(t, rec.Actions, 4)
	assert.True(t, hasAction(rec.Actions, core.ActionRoute, "legal"))
	assert.True(t, hasAction(rec.Actions, core.ActionNotify, "legal"))
}

func hasAction(results []core.ActionResult, actionType core.ActionType, value string) bool {
	for _, r := range results {
		if r.Action.Type == actionType && r.Action.Value == value {
			return true
		}
	}
	return false
}
