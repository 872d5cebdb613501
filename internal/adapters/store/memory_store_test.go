package store

import (
	"context"
	"testing"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func storedMessage(id string) *core.StoredMessage {
	return &core.StoredMessage{
		ID: id,
		Message: core.Message{
			ExternalID: id,
			Subject:    "subject",
			Body:       "body",
			Sender:     "sender@example.com",
		},
		Status: core.StatusPending,
	}
}

func TestMemoryStore_InsertIfAbsent(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	inserted, err := s.InsertIfAbsent(ctx, storedMessage("m1"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same id again is a no-op
	inserted, err = s.InsertIfAbsent(ctx, storedMessage("m1"))
	require.NoError(t, err)
	assert.False(t, inserted)

	assert.Equal(t, 1, s.Len())

	rec, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, rec.Status)
	assert.False(t, rec.IngestedAt.IsZero())
}

func TestMemoryStore_DuplicateKeepsOriginal(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	first := storedMessage("m1")
	first.Message.Subject = "original"
	_, err := s.InsertIfAbsent(ctx, first)
	require.NoError(t, err)

	second := storedMessage("m1")
	second.Message.Subject = "replacement"
	_, err = s.InsertIfAbsent(ctx, second)
	require.NoError(t, err)

	rec, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "original", rec.Message.Subject)
}

func TestMemoryStore_UpdateClassification(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, storedMessage("m1"))
	require.NoError(t, err)

	result := &core.ClassificationResult{Category: "important", Confidence: 0.9}
	require.NoError(t, s.UpdateClassification(ctx, "m1", result))

	rec, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusProcessed, rec.Status)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "important", rec.Result.Category)

	assert.ErrorIs(t, s.UpdateClassification(ctx, "missing", result), core.ErrMessageNotFound)
}

func TestMemoryStore_SetStatus(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, storedMessage("m1"))
	require.NoError(t, err)

	require.NoError(t, s.SetStatus(ctx, "m1", core.StatusFailed, "provider exploded"))

	rec, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, rec.Status)
	assert.Equal(t, "provider exploded", rec.Error)

	assert.ErrorIs(t, s.SetStatus(ctx, "missing", core.StatusFailed, ""), core.ErrMessageNotFound)
}

func TestMemoryStore_RecordActions(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, storedMessage("m1"))
	require.NoError(t, err)

	batch1 := []core.ActionResult{{
		Action: core.Action{Type: core.ActionRoute, Value: "inbox"},
		Status: core.ActionCompleted,
	}}
	batch2 := []core.ActionResult{{
		Action: core.Action{Type: core.ActionTag, Value: "important"},
		Status: core.ActionCompleted,
	}}
	require.NoError(t, s.RecordActions(ctx, "m1", batch1))
	require.NoError(t, s.RecordActions(ctx, "m1", batch2))

	rec, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, rec.Actions, 2)
	assert.Equal(t, core.ActionRoute, rec.Actions[0].Action.Type)
	assert.Equal(t, core.ActionTag, rec.Actions[1].Action.Type)

	assert.ErrorIs(t, s.RecordActions(ctx, "missing", batch1), core.ErrMessageNotFound)
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())

	rec, err := s.Get(context.Background(), "nope")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, core.ErrMessageNotFound)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore(zap.NewNop())
	ctx := context.Background()

	_, err := s.InsertIfAbsent(ctx, storedMessage("m1"))
	require.NoError(t, err)

	rec, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	rec.Status = core.StatusFailed

	fresh, err := s.Get(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, fresh.Status)
}
