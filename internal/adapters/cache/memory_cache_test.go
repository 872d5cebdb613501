package cache

import (
	"context"
	"fmt"
	"testing"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func result(category string, confidence float64) *core.ClassificationResult {
	return &core.ClassificationResult{
		Category:   category,
		Confidence: confidence,
	}
}

func TestMemoryCache_SetAndGet(t *testing.T) {
	c := NewMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp1", result("important", 0.9)))

	got, err := c.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, "important", got.Category)
	assert.Equal(t, 0.9, got.Confidence)
	assert.True(t, got.FromCache)

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryCache_Miss(t *testing.T) {
	c := NewMemoryCache(10, zap.NewNop())

	got, err := c.Get(context.Background(), "missing")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, core.ErrCacheMiss)
}

func TestMemoryCache_FIFOEviction(t *testing.T) {
	c := NewMemoryCache(3, zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Set(ctx, fmt.Sprintf("fp%d", i), result("updates", 0.5)))
	}

	// One over capacity evicts exactly the first-inserted entry
	require.NoError(t, c.Set(ctx, "fp3", result("updates", 0.5)))

	_, err := c.Get(ctx, "fp0")
	assert.ErrorIs(t, err, core.ErrCacheMiss)

	for _, fp := range []string{"fp1", "fp2", "fp3"} {
		_, err := c.Get(ctx, fp)
		assert.NoError(t, err, fp)
	}

	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestMemoryCache_HitDoesNotPromote(t *testing.T) {
	c := NewMemoryCache(2, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp0", result("spam", 0.95)))
	require.NoError(t, c.Set(ctx, "fp1", result("social", 0.4)))

	// Reading fp0 refreshes its timestamp but not its eviction slot
	_, err := c.Get(ctx, "fp0")
	require.NoError(t, err)

	require.NoError(t, c.Set(ctx, "fp2", result("updates", 0.5)))

	// fp0 is still the oldest insertion and goes first
	_, err = c.Get(ctx, "fp0")
	assert.ErrorIs(t, err, core.ErrCacheMiss)
	_, err = c.Get(ctx, "fp1")
	assert.NoError(t, err)
}

func TestMemoryCache_OverwriteKeepsPosition(t *testing.T) {
	c := NewMemoryCache(2, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp0", result("spam", 0.5)))
	require.NoError(t, c.Set(ctx, "fp1", result("social", 0.4)))

	// Overwriting fp0 must not move it to the back of the queue
	require.NoError(t, c.Set(ctx, "fp0", result("spam", 0.99)))

	got, err := c.Get(ctx, "fp0")
	require.NoError(t, err)
	assert.Equal(t, 0.99, got.Confidence)

	require.NoError(t, c.Set(ctx, "fp2", result("updates", 0.5)))

	_, err = c.Get(ctx, "fp0")
	assert.ErrorIs(t, err, core.ErrCacheMiss)
	_, err = c.Get(ctx, "fp1")
	assert.NoError(t, err)
}

func TestMemoryCache_CopyOnRead(t *testing.T) {
	c := NewMemoryCache(10, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp", result("important", 0.8)))

	first, err := c.Get(ctx, "fp")
	require.NoError(t, err)
	first.Category = "mutated"

	second, err := c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.Equal(t, "important", second.Category)
}

func TestMemoryCache_DefaultCapacity(t *testing.T) {
	c := NewMemoryCache(0, zap.NewNop())
	assert.Equal(t, 1000, c.capacity)

	c = NewMemoryCache(-5, zap.NewNop())
	assert.Equal(t, 1000, c.capacity)
}
