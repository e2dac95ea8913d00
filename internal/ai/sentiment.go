package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/monitoring"
	"github.com/sirupsen/logrus"
)

// SentimentResult is always well-formed: ingestion never blocks on a
// classifier failure.
type SentimentResult struct {
	Sentiment models.Sentiment `json:"sentiment"`
	Score     float64          `json:"score"`
	Keywords  []string         `json:"keywords,omitempty"`
	Summary   string           `json:"summary,omitempty"`
}

// Classifier derives sentiment metadata for review text, via an AI backend
// when one is configured and a deterministic rule-based analyzer otherwise.
type Classifier struct {
	gateway *Gateway
}

// NewClassifier creates a sentiment classifier over the given gateway.
func NewClassifier(gateway *Gateway) *Classifier {
	return &Classifier{gateway: gateway}
}

// Analyze classifies the given text. Empty text returns a fixed neutral
// result without any backend call. Any AI failure falls back to the
// rule-based analyzer so ingestion degrades instead of stalling.
func (c *Classifier) Analyze(ctx context.Context, text string) *SentimentResult {
	if strings.TrimSpace(text) == "" {
		return &SentimentResult{Sentiment: models.SentimentNeutral, Score: 0}
	}

	if result, err := c.analyzeWithAI(ctx, text); err == nil {
		return result
	} else if err != ErrNoProviderConfigured {
		logrus.Warnf("AI sentiment analysis failed, using rule-based fallback: %v", err)
	}

	monitoring.SentimentFallbacks.Inc()
	return ruleBasedSentiment(text)
}

const sentimentSystemPrompt = `You classify customer review sentiment. ` +
	`Respond with only a JSON object of the shape ` +
	`{"sentiment":"POSITIVE|NEUTRAL|NEGATIVE","score":-1..1,"keywords":[...],"summary":"..."} ` +
	`and nothing else.`

func (c *Classifier) analyzeWithAI(ctx context.Context, text string) (*SentimentResult, error) {
	first, second := c.gateway.pick("")
	if first == nil {
		return nil, ErrNoProviderConfigured
	}

	result, err := first.Generate(ctx, sentimentSystemPrompt, text)
	if err != nil && second != nil {
		result, err = second.Generate(ctx, sentimentSystemPrompt, text)
	}
	if err != nil {
		return nil, err
	}

	parsed, err := parseSentimentJSON(result.Text)
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

func parseSentimentJSON(raw string) (*SentimentResult, error) {
	// Models occasionally wrap the JSON in a markdown fence.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var result SentimentResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &result); err != nil {
		return nil, err
	}
	switch result.Sentiment {
	case models.SentimentPositive, models.SentimentNeutral, models.SentimentNegative:
		return &result, nil
	}
	return nil, fmt.Errorf("unexpected sentiment label %q", result.Sentiment)
}
