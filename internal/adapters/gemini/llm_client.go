package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mail-triage/internal/adapters/openai"
	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient is a classifier stage backed by Google Gemini
type GeminiClient struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	modelName    string
	maxTokens    int
	temperature  float32
	topP         float32
	maxBodySize  int
	logger       *zap.Logger
	promptFormat string
}

// NewGeminiClient creates a new Gemini classifier stage
func NewGeminiClient(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
) (*GeminiClient, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))

	return &GeminiClient{
		client:      client,
		model:       model,
		modelName:   modelName,
		maxTokens:   maxTokens,
		temperature: temperature,
		topP:        topP,
		maxBodySize: maxBodySize,
		logger:      logger,
		promptFormat: `You are an email triage system. Classify the following email into exactly one
of these categories: spam, important, promotion, social, updates.
Respond with a JSON object containing:
- category: string (one of the categories above, or "unknown" if you cannot tell)
- confidence: number between 0 and 1 (how confident you are in the category)
- probabilities: object mapping every category to a probability, summing to 1
- explanation: string (brief explanation of the classification)

Email:
From: %s
To: %s
Subject: %s
Body:
%s

Respond only with the JSON object and nothing else.`,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Name identifies the stage.
func (c *GeminiClient) Name() string { return "gemini" }

// truncateBody truncates the message body if it exceeds the maximum size
func (c *GeminiClient) truncateBody(body string) string {
	if c.maxBodySize <= 0 || len(body) <= c.maxBodySize {
		return body
	}

	truncated := body[:c.maxBodySize]
	c.logger.Debug("Message body truncated",
		zap.Int("original_size", len(body)),
		zap.Int("truncated_size", len(truncated)),
		zap.Int("max_size", c.maxBodySize))

	return truncated + "\n[... Content truncated due to size limits ...]"
}

// Classify asks the model for a category in the coarse vocabulary.
func (c *GeminiClient) Classify(ctx context.Context, subject, body, sender string) (*core.ClassificationResult, error) {
	truncatedBody := c.truncateBody(body)

	prompt := fmt.Sprintf(c.promptFormat, sender, "", subject, truncatedBody)

	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	responseText := fmt.Sprintf("%v", resp.Candidates[0].Content.Parts[0])

	analysisResponse, err := openai.ParseClassification(responseText)
	if err != nil {
		return nil, err
	}

	return &core.ClassificationResult{
		Category:      analysisResponse.Category,
		Confidence:    analysisResponse.Confidence,
		Probabilities: analysisResponse.Probabilities,
		Explanation:   analysisResponse.Explanation,
		AnalyzedAt:    time.Now(),
	}, nil
}
