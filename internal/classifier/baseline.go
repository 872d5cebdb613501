package classifier

import (
	"context"
	"math"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// StageBaseline is the name of the terminal statistical stage.
const StageBaseline = "baseline"

// seedExample is one labeled message of the embedded training corpus.
type seedExample struct {
	subject  string
	body     string
	category string
}

// seedCorpus is the built-in corpus the baseline trains on at startup. It is
// intentionally small: the stage exists as a guaranteed-answer floor under
// the smarter stages, not as a competitive model.
var seedCorpus = []seedExample{
	{"win free money now", "click here to claim your prize", CategorySpam},
	{"urgent action required", "verify your account immediately or it will be closed", CategorySpam},
	{"congratulations you won", "you have been selected for a prize", CategorySpam},
	{"act now limited offer", "buy now and save 90 percent", CategorySpam},

	{"meeting tomorrow at 10am", "please confirm your attendance for the team meeting", CategoryImportant},
	{"project deadline reminder", "the quarterly report is due by friday", CategoryImportant},
	{"invoice payment required", "please process payment for invoice 12345", CategoryImportant},
	{"security alert login detected", "we detected a new login to your account", CategoryImportant},

	{"sale up to 50 off", "get amazing discounts on all products this weekend only", CategoryPromotion},
	{"new product launch", "check out our latest collection of items", CategoryPromotion},
	{"special offer for you", "exclusive deal just for our valued customers", CategoryPromotion},
	{"flash sale today only", "dont miss out on incredible savings", CategoryPromotion},

	{"birthday party invitation", "you are invited to celebrate with us", CategorySocial},
	{"friend request waiting", "someone wants to connect with you", CategorySocial},
	{"event reminder", "dont forget about the concert this saturday", CategorySocial},
	{"photo shared with you", "check out these amazing photos from the trip", CategorySocial},

	{"order confirmation", "your order has been successfully placed", CategoryUpdates},
	{"password reset request", "click here to reset your password", CategoryUpdates},
	{"newsletter subscription", "thank you for subscribing to our newsletter", CategoryUpdates},
	{"account verification", "please verify your email address", CategoryUpdates},
}

const nbAlpha = 0.1 // Laplace smoothing

// BaselineClassifier is the terminal stage: a multinomial naive Bayes model
// over the coarse category vocabulary, trained once on the embedded corpus.
// It always produces a well-formed answer, so the chain never falls through
// without a result.
type BaselineClassifier struct {
	tp     *utils.TextProcessor
	logger *zap.Logger

	priors     map[string]float64
	wordCounts map[string]map[string]float64
	totalWords map[string]float64
	vocabSize  float64
}

// NewBaselineClassifier trains the baseline on the embedded corpus.
func NewBaselineClassifier(tp *utils.TextProcessor, logger *zap.Logger) *BaselineClassifier {
	c := &BaselineClassifier{
		tp:         tp,
		logger:     logger,
		priors:     make(map[string]float64),
		wordCounts: make(map[string]map[string]float64),
		totalWords: make(map[string]float64),
	}
	c.train()
	return c
}

func (c *BaselineClassifier) train() {
	vocab := make(map[string]struct{})
	classCounts := make(map[string]float64)

	for _, cat := range CoarseCategories {
		c.wordCounts[cat] = make(map[string]float64)
	}

	for _, ex := range seedCorpus {
		classCounts[ex.category]++
		for _, tok := range c.tp.Tokens(ex.subject, ex.body) {
			c.wordCounts[ex.category][tok]++
			c.totalWords[ex.category]++
			vocab[tok] = struct{}{}
		}
	}

	total := float64(len(seedCorpus))
	for cat, n := range classCounts {
		c.priors[cat] = n / total
	}
	c.vocabSize = float64(len(vocab))

	c.logger.Debug("Baseline classifier trained",
		zap.Int("examples", len(seedCorpus)),
		zap.Int("vocabulary", len(vocab)))
}

// Name identifies the stage.
func (c *BaselineClassifier) Name() string { return StageBaseline }

// Classify scores the message against every coarse category and returns the
// most likely one. Empty or fully-stripped text gets a uniform low-confidence
// answer rather than no answer.
func (c *BaselineClassifier) Classify(ctx context.Context, subject, body, sender string) (*core.ClassificationResult, error) {
	tokens := c.tp.Tokens(subject, body)

	probabilities := make(map[string]float64, len(CoarseCategories))

	if len(tokens) == 0 {
		uniform := 1.0 / float64(len(CoarseCategories))
		for _, cat := range CoarseCategories {
			probabilities[cat] = uniform
		}
		return &core.ClassificationResult{
			Category:      CategoryUpdates,
			Confidence:    uniform,
			Probabilities: probabilities,
			Explanation:   "no usable text, defaulting to updates",
		}, nil
	}

	// Log-space scoring, then shifted exponentiation so the scores become a
	// distribution without underflow.
	logScores := make(map[string]float64, len(CoarseCategories))
	maxScore := math.Inf(-1)
	for _, cat := range CoarseCategories {
		prior := c.priors[cat]
		if prior == 0 {
			prior = 1 / float64(len(seedCorpus)+1)
		}
		score := math.Log(prior)
		denom := c.totalWords[cat] + nbAlpha*c.vocabSize
		for _, tok := range tokens {
			score += math.Log((c.wordCounts[cat][tok] + nbAlpha) / denom)
		}
		logScores[cat] = score
		if score > maxScore {
			maxScore = score
		}
	}

	for cat, score := range logScores {
		probabilities[cat] = math.Exp(score - maxScore)
	}
	normalize(probabilities)

	category := argmax(probabilities)
	confidence := probabilities[category]

	return &core.ClassificationResult{
		Category:      category,
		Confidence:    confidence,
		Probabilities: probabilities,
		Explanation:   "statistical baseline",
	}, nil
}
