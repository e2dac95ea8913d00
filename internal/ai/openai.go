package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIBackend calls the OpenAI chat completion API. Secondary backend
// under "auto" selection.
type OpenAIBackend struct {
	apiKey func() string
	model  string
}

var _ Backend = (*OpenAIBackend)(nil)

// NewOpenAIBackend creates an OpenAI backend. The key is read through a
// function so rotated credentials are picked up per call.
func NewOpenAIBackend(apiKey func() string, model string) *OpenAIBackend {
	return &OpenAIBackend{apiKey: apiKey, model: model}
}

func (o *OpenAIBackend) Name() string {
	return "openai"
}

func (o *OpenAIBackend) IsConfigured() bool {
	return credentialLooksValid(o.apiKey())
}

func (o *OpenAIBackend) Generate(ctx context.Context, system, prompt string) (*GenerateResult, error) {
	// The client is rebuilt per call on purpose: the key may have been
	// rotated since the last call and construction is cheap.
	client := openai.NewClient(o.apiKey())

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return &GenerateResult{
		Text:       strings.TrimSpace(resp.Choices[0].Message.Content),
		TokensUsed: resp.Usage.TotalTokens,
		Model:      o.model,
		Provider:   o.Name(),
	}, nil
}
