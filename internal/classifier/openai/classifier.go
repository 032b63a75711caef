// Package openai implements tweet classification through an
// OpenAI-compatible chat completion API. The default target is DeepSeek.
package openai

import (
	"context"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"

	"solana-signal-trader/internal/classifier"
	"solana-signal-trader/internal/solana"
)

const (
	// DefaultBaseURL points at the DeepSeek OpenAI-compatible endpoint.
	DefaultBaseURL = "https://api.deepseek.com/v1"

	// DefaultModel is the chat model used for classification.
	DefaultModel = "deepseek-chat"
)

// systemPrompt instructs the model to answer with either a Solana token
// address or the literal string "null".
const systemPrompt = "You are an AI agent that needs to tell me if this tweet is about buying a token. " +
	"Return me either the address of the solana token, or return me null if you cant find a solana token address in this tweet. " +
	"Only return if it says it is a bull post. The token address will be very visible in the tweet."

// TweetClassifier implements classifier.Classifier over a chat completion API.
type TweetClassifier struct {
	client *openai.Client
	model  string
	logger *log.Logger
}

var _ classifier.Classifier = (*TweetClassifier)(nil)

// NewTweetClassifier creates a classifier. Empty baseURL and model fall back
// to the DeepSeek defaults.
func NewTweetClassifier(apiKey, baseURL, model string, logger *log.Logger) *TweetClassifier {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &TweetClassifier{
		client: openai.NewClientWithConfig(config),
		model:  model,
		logger: logger,
	}
}

// ExtractTokenAddress asks the model for a token address in the tweet.
// API failures, "null" answers and malformed addresses all yield empty
// string so one bad classification never blocks the ingest loop.
func (c *TweetClassifier) ExtractTokenAddress(ctx context.Context, content string) string {
	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemPrompt,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: content,
				},
			},
		},
	)
	if err != nil {
		c.logger.Printf("[classifier] chat completion failed: %v", err)
		return ""
	}

	if len(resp.Choices) == 0 {
		c.logger.Printf("[classifier] empty completion response")
		return ""
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" || strings.EqualFold(answer, "null") {
		return ""
	}

	if !solana.ValidPubkey(answer) {
		c.logger.Printf("[classifier] discarding malformed address %q", answer)
		return ""
	}

	return answer
}
