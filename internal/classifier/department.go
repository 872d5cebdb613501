package classifier

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// StageDepartment is the name of the domain-tuned first stage.
const StageDepartment = "department"

// DepartmentClassifier is the domain-tuned stage: a keyword scorer over the
// canonical department vocabulary. It answers only when the text carries
// department signal; otherwise it reports unknown and the chain moves on.
type DepartmentClassifier struct {
	tp        *utils.TextProcessor
	logger    *zap.Logger
	boostStep float64
	boostMax  float64
}

// NewDepartmentClassifier creates the domain-tuned stage. boostStep is the
// per-keyword confidence boost, boostMax its cap.
func NewDepartmentClassifier(tp *utils.TextProcessor, boostStep, boostMax float64, logger *zap.Logger) *DepartmentClassifier {
	if boostStep <= 0 {
		boostStep = 0.12
	}
	if boostMax <= 0 {
		boostMax = 0.4
	}
	return &DepartmentClassifier{
		tp:        tp,
		logger:    logger,
		boostStep: boostStep,
		boostMax:  boostMax,
	}
}

// Name identifies the stage.
func (c *DepartmentClassifier) Name() string { return StageDepartment }

// Classify scores the message against each department's keyword list. The
// base score is the department's share of all keyword hits; the keyword
// boost is added on top and the final score clamped to [0,1] before the
// distribution is renormalized.
func (c *DepartmentClassifier) Classify(ctx context.Context, subject, body, sender string) (*core.ClassificationResult, error) {
	text := " " + strings.TrimSpace(c.tp.Normalize(subject)+" "+c.tp.Normalize(body)) + " "

	found := make(map[string][]string)
	total := 0
	for dept, keywords := range departmentKeywords {
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				found[dept] = append(found[dept], kw)
				total++
			}
		}
	}

	if total == 0 {
		// No domain signal; let the next stage answer.
		return &core.ClassificationResult{
			Category:      core.CategoryUnknown,
			Confidence:    0,
			Probabilities: map[string]float64{},
		}, nil
	}

	probabilities := make(map[string]float64, len(Departments))
	for _, dept := range Departments {
		hits := len(found[dept])
		base := float64(hits) / float64(total)

		var boost float64
		switch {
		case hits > 0:
			boost = float64(hits) * c.boostStep
			if boost > c.boostMax {
				boost = c.boostMax
			}
		default:
			// Other departments have signal, this one does not.
			boost = -0.05
		}

		score := base + boost
		if score > 1 {
			score = 1
		}
		if score < 0 {
			score = 0
		}
		probabilities[dept] = score
	}

	normalize(probabilities)

	department := argmax(probabilities)
	confidence := probabilities[department]

	matched := append([]string(nil), found[department]...)
	sort.Strings(matched)
	explanation := fmt.Sprintf("matched %s keywords: %s",
		department, strings.Join(matched, ", "))

	c.logger.Debug("Department stage answered",
		zap.String("department", department),
		zap.Float64("confidence", confidence),
		zap.Int("keyword_hits", total))

	return &core.ClassificationResult{
		Category:      department,
		Confidence:    confidence,
		Probabilities: probabilities,
		Department:    department,
		Explanation:   explanation,
	}, nil
}

// normalize scales a score map in place so the values sum to 1.
func normalize(probs map[string]float64) {
	var sum float64
	for _, p := range probs {
		sum += p
	}
	if sum <= 0 {
		return
	}
	for k, p := range probs {
		probs[k] = p / sum
	}
}

// argmax returns the key with the highest value, ties broken by key order
// so results are deterministic.
func argmax(probs map[string]float64) string {
	keys := make([]string, 0, len(probs))
	for k := range probs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	bestScore := -1.0
	for _, k := range keys {
		if probs[k] > bestScore {
			best = k
			bestScore = probs[k]
		}
	}
	return best
}
