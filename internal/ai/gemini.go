package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"

// GeminiBackend calls the Google Gemini REST API. It is the cheaper of the
// two backends and therefore the primary under "auto" selection.
type GeminiBackend struct {
	apiKey func() string
	model  string
	client *resty.Client
}

var _ Backend = (*GeminiBackend)(nil)

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// NewGeminiBackend creates a Gemini backend. The key is read through a
// function so rotated credentials are picked up per call.
func NewGeminiBackend(apiKey func() string, model string) *GeminiBackend {
	return &GeminiBackend{
		apiKey: apiKey,
		model:  model,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (g *GeminiBackend) Name() string {
	return "gemini"
}

func (g *GeminiBackend) IsConfigured() bool {
	return credentialLooksValid(g.apiKey())
}

func (g *GeminiBackend) Generate(ctx context.Context, system, prompt string) (*GenerateResult, error) {
	body := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", g.apiKey()).
		SetBody(body).
		Post(fmt.Sprintf(geminiEndpoint, g.model))

	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	return &GenerateResult{
		Text:       strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text),
		TokensUsed: parsed.UsageMetadata.TotalTokenCount,
		Model:      g.model,
		Provider:   g.Name(),
	}, nil
}

// credentialLooksValid rejects empty keys and the placeholder values that
// end up in .env files copied from templates.
func credentialLooksValid(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" || strings.ContainsAny(key, " \t") {
		return false
	}
	lower := strings.ToLower(key)
	for _, placeholder := range []string{"your-", "your_", "changeme", "xxx", "<", "todo"} {
		if strings.HasPrefix(lower, placeholder) {
			return false
		}
	}
	return len(key) >= 16
}
