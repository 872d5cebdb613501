package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient is a general-purpose classifier stage backed by OpenAI chat
// models.
type OpenAIClient struct {
	client        *openai.Client
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	promptFormat  string
	textProcessor *utils.TextProcessor
}

// ClassificationResponse represents the structured response from the LLM
type ClassificationResponse struct {
	Category      string             `json:"category"`
	Confidence    float64            `json:"confidence"`
	Probabilities map[string]float64 `json:"probabilities"`
	Explanation   string             `json:"explanation"`
}

const classifyPrompt = `You are an email triage system. Classify the following email into exactly one
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

Respond only with the JSON object and nothing else.`

// NewOpenAIClient creates a new OpenAI classifier stage
func NewOpenAIClient(
	client *openai.Client,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIClient {
	return &OpenAIClient{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
		promptFormat:  classifyPrompt,
	}
}

// Name identifies the stage.
func (c *OpenAIClient) Name() string { return "openai" }

// Classify asks the model for a category in the coarse vocabulary.
func (c *OpenAIClient) Classify(ctx context.Context, subject, body, sender string) (*core.ClassificationResult, error) {
	// Process the body (truncate and sanitize)
	processedBody := c.textProcessor.ProcessText(body, c.maxBodySize)

	prompt := fmt.Sprintf(c.promptFormat, sender, "", subject, processedBody)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are an email triage system. Respond only with JSON.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	responseFormat := openai.ChatCompletionResponseFormat{
		Type: "json",
	}
	req.ResponseFormat = &responseFormat

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from OpenAI")
	}

	analysisResponse, err := ParseClassification(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &core.ClassificationResult{
		Category:      analysisResponse.Category,
		Confidence:    analysisResponse.Confidence,
		Probabilities: analysisResponse.Probabilities,
		Explanation:   analysisResponse.Explanation,
		AnalyzedAt:    time.Now(),
		ProcessingID:  resp.ID,
	}, nil
}

// ParseClassification decodes the LLM's JSON reply, tolerating replies that
// wrap the JSON object in prose.
func ParseClassification(responseText string) (*ClassificationResponse, error) {
	var analysisResponse ClassificationResponse
	if err := json.Unmarshal([]byte(responseText), &analysisResponse); err != nil {
		// Try to extract JSON from the text response
		jsonStart := 0
		jsonEnd := len(responseText)

		for i := 0; i < len(responseText); i++ {
			if responseText[i] == '{' {
				jsonStart = i
				break
			}
		}

		for i := len(responseText) - 1; i >= 0; i-- {
			if responseText[i] == '}' {
				jsonEnd = i + 1
				break
			}
		}

		if jsonStart < jsonEnd {
			jsonStr := responseText[jsonStart:jsonEnd]
			if err := json.Unmarshal([]byte(jsonStr), &analysisResponse); err != nil {
				return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
	}

	return &analysisResponse, nil
}
