package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// Chain runs the classifier stages in priority order and returns the first
// acceptable answer. It never returns an error: stage failures (including
// panics) are absorbed, and the terminal baseline stage guarantees a
// well-formed result.
type Chain struct {
	stages       []core.Classifier
	cache        core.ResultCache
	cacheEnabled bool
	tp           *utils.TextProcessor
	logger       *zap.Logger
}

// NewChain builds a fallback chain over the given stages, tried in order.
func NewChain(
	stages []core.Classifier,
	cache core.ResultCache,
	cacheEnabled bool,
	tp *utils.TextProcessor,
	logger *zap.Logger,
) *Chain {
	return &Chain{
		stages:       stages,
		cache:        cache,
		cacheEnabled: cacheEnabled && cache != nil,
		tp:           tp,
		logger:       logger,
	}
}

// Classify resolves a classification for the message content, consulting
// the result cache first. The second return value reports a cache hit.
func (c *Chain) Classify(ctx context.Context, subject, body, sender string) (*core.ClassificationResult, bool) {
	fingerprint := c.tp.Fingerprint(subject, body)

	if c.cacheEnabled {
		if cached, err := c.cache.Get(ctx, fingerprint); err == nil {
			c.logger.Debug("Classification cache hit",
				zap.String("fingerprint", fingerprint),
				zap.String("category", cached.Category))
			return cached, true
		}
	}

	result := c.compute(ctx, subject, body, sender)

	if c.cacheEnabled {
		if err := c.cache.Set(ctx, fingerprint, result); err != nil {
			c.logger.Error("Failed to update classification cache", zap.Error(err))
		}
	}

	return result, false
}

// compute walks the stages until one answers.
func (c *Chain) compute(ctx context.Context, subject, body, sender string) *core.ClassificationResult {
	for _, stage := range c.stages {
		result, err := c.tryStage(ctx, stage, subject, body, sender)
		if err != nil {
			c.logger.Warn("Classifier stage failed, falling back",
				zap.String("stage", stage.Name()),
				zap.Error(err))
			continue
		}
		if !result.Answered() {
			c.logger.Debug("Classifier stage had no answer, falling back",
				zap.String("stage", stage.Name()))
			continue
		}
		return c.finalize(stage.Name(), result)
	}

	// Only reachable when the chain was built without the baseline stage.
	c.logger.Warn("All classifier stages failed, returning low-confidence default")
	return c.finalize(StageBaseline, &core.ClassificationResult{
		Category:      CategoryUpdates,
		Confidence:    0.1,
		Probabilities: map[string]float64{CategoryUpdates: 1},
		Explanation:   "no classifier stage produced an answer",
	})
}

// tryStage invokes one stage with panic isolation.
func (c *Chain) tryStage(ctx context.Context, stage core.Classifier, subject, body, sender string) (result *core.ClassificationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &stagePanicError{stage: stage.Name(), value: r}
		}
	}()
	return stage.Classify(ctx, subject, body, sender)
}

// finalize stamps the answering stage's identity onto the result, derives
// the canonical department, and renormalizes the distribution.
func (c *Chain) finalize(stage string, result *core.ClassificationResult) *core.ClassificationResult {
	result.Stage = stage
	result.ProcessingID = uuid.NewString()
	result.AnalyzedAt = time.Now()

	if result.Probabilities == nil {
		result.Probabilities = map[string]float64{result.Category: 1}
	}
	if _, ok := result.Probabilities[result.Category]; !ok && result.Category != core.CategoryUnknown {
		result.Probabilities[result.Category] = result.Confidence
	}
	normalize(result.Probabilities)

	if result.Department == "" {
		result.Department = TranslateDepartment(stage, result.Category)
	}

	return result
}

type stagePanicError struct {
	stage string
	value any
}

func (e *stagePanicError) Error() string {
	return fmt.Sprintf("stage %s panicked: %v", e.stage, e.value)
}
