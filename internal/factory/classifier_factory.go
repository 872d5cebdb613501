package factory

import (
	"fmt"

	"github.com/mikey/mail-triage/internal/adapters/bedrock"
	"github.com/mikey/mail-triage/internal/adapters/gemini"
	"github.com/mikey/mail-triage/internal/adapters/openai"
	"github.com/mikey/mail-triage/internal/classifier"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory assembles the fallback chain's stages
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMStage creates the general-purpose LLM stage for the configured
// provider
func (f *ClassifierFactory) CreateLLMStage() (core.Classifier, error) {
	classifierCfg := f.cfg.GetClassifier()

	switch classifierCfg.LLMProvider {
	case "bedrock":
		factory := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClassifier()
	case "gemini":
		factory := gemini.NewFactory(f.cfg, f.logger)
		return factory.CreateClassifier()
	case "openai":
		factory := openai.NewFactory(f.cfg, f.logger, f.textProcessor)
		return factory.CreateClassifier()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", classifierCfg.LLMProvider)
	}
}

// CreateStages builds the full stage list in fallback order: the
// domain-tuned department stage, the LLM stage when enabled, and the
// always-answering statistical baseline last.
func (f *ClassifierFactory) CreateStages() ([]core.Classifier, error) {
	classifierCfg := f.cfg.GetClassifier()

	stages := []core.Classifier{
		classifier.NewDepartmentClassifier(
			f.textProcessor,
			classifierCfg.KeywordBoostStep,
			classifierCfg.KeywordBoostMax,
			f.logger,
		),
	}

	if classifierCfg.LLMEnabled {
		llm, err := f.CreateLLMStage()
		if err != nil {
			return nil, err
		}
		stages = append(stages, llm)
	}

	stages = append(stages, classifier.NewBaselineClassifier(f.textProcessor, f.logger))
	return stages, nil
}
