package classifier

import (
	"context"
	"testing"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newDepartmentStage() *DepartmentClassifier {
	tp := utils.NewTextProcessor(zap.NewNop())
	return NewDepartmentClassifier(tp, 0.12, 0.4, zap.NewNop())
}

func TestDepartmentClassifier_ITSupport(t *testing.T) {
	c := newDepartmentStage()

	result, err := c.Classify(context.Background(),
		"URGENT: server down",
		"The production server is not responding, looks like an outage", "")
	require.NoError(t, err)

	assert.Equal(t, DeptITSupport, result.Category)
	assert.Equal(t, DeptITSupport, result.Department)
	assert.True(t, result.Answered())
	assert.Contains(t, result.Explanation, "server")
}

func TestDepartmentClassifier_Sales(t *testing.T) {
	c := newDepartmentStage()

	result, err := c.Classify(context.Background(),
		"50% off sale this weekend",
		"Buy now and save on your next order", "")
	require.NoError(t, err)

	assert.Equal(t, DeptSales, result.Category)
	assert.Greater(t, result.Confidence, 0.7)
}

func TestDepartmentClassifier_NoSignal(t *testing.T) {
	c := newDepartmentStage()

	result, err := c.Classify(context.Background(),
		"hello there", "just checking in about the weather", "")
	require.NoError(t, err)

	assert.Equal(t, core.CategoryUnknown, result.Category)
	assert.Zero(t, result.Confidence)
	assert.False(t, result.Answered())
}

func TestDepartmentClassifier_ProbabilitiesSumToOne(t *testing.T) {
	c := newDepartmentStage()

	result, err := c.Classify(context.Background(),
		"invoice payment overdue",
		"please process the wire transfer and send the receipt", "")
	require.NoError(t, err)

	assert.Equal(t, DeptFinance, result.Category)

	var sum float64
	for _, p := range result.Probabilities {
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDepartmentClassifier_MatchesNormalizedText(t *testing.T) {
	c := newDepartmentStage()

	// Keyword matching runs over normalized text, so case and punctuation
	// around the keyword must not matter.
	result, err := c.Classify(context.Background(),
		"PASSWORD reset!!!", "", "")
	require.NoError(t, err)

	assert.Equal(t, DeptITSupport, result.Category)
}

func TestNormalize(t *testing.T) {
	probs := map[string]float64{"a": 2, "b": 2}
	normalize(probs)
	assert.InDelta(t, 0.5, probs["a"], 1e-9)
	assert.InDelta(t, 0.5, probs["b"], 1e-9)

	// All-zero maps are left untouched rather than divided by zero
	zeros := map[string]float64{"a": 0, "b": 0}
	normalize(zeros)
	assert.Zero(t, zeros["a"])
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, "b", argmax(map[string]float64{"a": 0.1, "b": 0.8, "c": 0.1}))

	// Ties break by key order for deterministic results
	assert.Equal(t, "a", argmax(map[string]float64{"c": 0.5, "a": 0.5}))
}
