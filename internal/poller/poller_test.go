package poller

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
	"github.com/mikey/mail-triage/internal/prefilter"
	"github.com/mikey/mail-triage/internal/supervisor"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// scriptedSource is an in-memory MailSource for poll loop tests.
type scriptedSource struct {
	mu         sync.Mutex
	messages   []core.Message
	connectErr error
	fetchErr   error
	connected  bool
	fetches    int
}

func (s *scriptedSource) Connect(ctx context.Context, credentials map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connectErr != nil {
		return s.connectErr
	}
	s.connected = true
	return nil
}

func (s *scriptedSource) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *scriptedSource) FetchMessages(ctx context.Context, limit int, query string) ([]core.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if limit > len(s.messages) {
		limit = len(s.messages)
	}
	return append([]core.Message(nil), s.messages[:limit]...), nil
}

func (s *scriptedSource) fetchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetches
}

func newPipeline(t *testing.T) (*core.TriageService, *store.MemoryStore) {
	t.Helper()
	logger := zap.NewNop()
	tp := utils.NewTextProcessor(logger)
	chain := classifier.NewChain([]core.Classifier{
		classifier.NewDepartmentClassifier(tp, 0.12, 0.4, logger),
		classifier.NewBaselineClassifier(tp, logger),
	}, nil, false, tp, logger)
	dispatcher := dispatch.NewDispatcher(
		dispatch.NewLogMailbox(logger),
		dispatch.NewLogNotifier(logger),
		dispatch.NewLogTaskTracker(logger),
		dispatch.NewLogSenderList(logger),
		logger,
	)
	messageStore := store.NewMemoryStore(logger)
	service := core.NewTriageService(
		chain,
		engine.NewEmptyEngine(logger),
		dispatcher,
		messageStore,
		supervisor.NewSupervisor(logger),
		false,
		logger,
	)
	return service, messageStore
}

func sourceMessages(ids ...string) []core.Message {
	out := make([]core.Message, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.Message{
			ExternalID: id,
			Subject:    "update for " + id,
			Body:       "content of " + id,
			Sender:     "system@example.com",
			ReceivedAt: time.Now(),
		})
	}
	return out
}

func TestPoller_BackfillIngestsBatch(t *testing.T) {
	service, messageStore := newPipeline(t)
	source := &scriptedSource{messages: sourceMessages("a", "b", "c")}

	p := NewPoller(source, service, nil, time.Hour, 3, "", zap.NewNop())
	backfilled, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	defer p.Stop()

	assert.Equal(t, 3, backfilled)
	assert.Equal(t, 3, messageStore.Len())
	assert.True(t, p.Running())

	for _, id := range []string{"a", "b", "c"} {
		rec, err := messageStore.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusProcessed, rec.Status)
		require.NotNil(t, rec.Result)
	}
}

func TestPoller_BatchSizeCapsBackfill(t *testing.T) {
	service, messageStore := newPipeline(t)
	source := &scriptedSource{messages: sourceMessages("a", "b", "c", "d", "e")}

	p := NewPoller(source, service, nil, time.Hour, 2, "", zap.NewNop())
	backfilled, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	defer p.Stop()

	assert.Equal(t, 2, backfilled)
	assert.Equal(t, 2, messageStore.Len())
}

func TestPoller_PreFilterExcludesMessages(t *testing.T) {
	service, messageStore := newPipeline(t)
	source := &scriptedSource{messages: sourceMessages("keep", "drop")}
	source.messages[1].Sender = "noreply@example.com"

	filter, err := prefilter.NewFilter("", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, filter.AddSender("noreply@"))

	p := NewPoller(source, service, filter, time.Hour, 10, "", zap.NewNop())
	backfilled, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	defer p.Stop()

	assert.Equal(t, 1, backfilled)
	assert.Equal(t, 1, messageStore.Len())
	_, err = messageStore.Get(context.Background(), "drop")
	assert.ErrorIs(t, err, core.ErrMessageNotFound)
}

func TestPoller_DuplicatesNotReingested(t *testing.T) {
	service, messageStore := newPipeline(t)
	source := &scriptedSource{messages: sourceMessages("a", "b")}

	p := NewPoller(source, service, nil, 20*time.Millisecond, 10, "", zap.NewNop())
	backfilled, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	defer p.Stop()

	assert.Equal(t, 2, backfilled)

	// Let a few polling cycles re-fetch the same messages
	deadline := time.Now().Add(time.Second)
	for source.fetchCount() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.GreaterOrEqual(t, source.fetchCount(), 3)

	assert.Equal(t, 2, messageStore.Len())
}

func TestPoller_ConnectFailure(t *testing.T) {
	service, _ := newPipeline(t)
	source := &scriptedSource{connectErr: errors.New("bad credentials")}

	p := NewPoller(source, service, nil, time.Hour, 10, "", zap.NewNop())
	_, err := p.Start(context.Background(), nil)
	assert.Error(t, err)
	assert.False(t, p.Running())

	// A failed start leaves the poller restartable
	source.connectErr = nil
	_, err = p.Start(context.Background(), nil)
	assert.NoError(t, err)
	p.Stop()
}

func TestPoller_FetchErrorDoesNotKillLoop(t *testing.T) {
	service, messageStore := newPipeline(t)
	source := &scriptedSource{fetchErr: errors.New("mailbox busy")}

	p := NewPoller(source, service, nil, 20*time.Millisecond, 10, "", zap.NewNop())
	backfilled, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	defer p.Stop()

	assert.Zero(t, backfilled)

	// Once the source recovers, the next cycle picks the messages up
	source.mu.Lock()
	source.fetchErr = nil
	source.messages = sourceMessages("late")
	source.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for messageStore.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, messageStore.Len())
}

func TestPoller_DoubleStartRejected(t *testing.T) {
	service, _ := newPipeline(t)
	source := &scriptedSource{}

	p := NewPoller(source, service, nil, time.Hour, 10, "", zap.NewNop())
	_, err := p.Start(context.Background(), nil)
	require.NoError(t, err)
	defer p.Stop()

	_, err = p.Start(context.Background(), nil)
	assert.Error(t, err)
}

func TestPoller_Stop(t *testing.T) {
	service, _ := newPipeline(t)
	source := &scriptedSource{}

	p := NewPoller(source, service, nil, 20*time.Millisecond, 10, "", zap.NewNop())
	_, err := p.Start(context.Background(), nil)
	require.NoError(t, err)

	p.Stop()
	assert.False(t, p.Running())

	// Stopping twice is harmless
	p.Stop()
}
