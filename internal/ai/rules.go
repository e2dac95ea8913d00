package ai

import (
	"strings"

	"github.com/reviewloop/reviewloop/internal/models"
)

// Bilingual keyword lists for the zero-dependency fallback analyzer. Kept
// small on purpose: the fallback only has to keep ingestion moving when the
// AI providers are down, not match their quality.
var positiveWords = []string{
	// Vietnamese
	"tốt", "tuyệt", "ngon", "hài lòng", "thích", "nhiệt tình", "sạch sẽ",
	"thân thiện", "nhanh", "đáng tiền", "tuyệt vời",
	// English
	"good", "great", "excellent", "love", "awesome", "amazing", "delicious",
	"friendly", "helpful", "perfect", "recommend",
}

var negativeWords = []string{
	// Vietnamese
	"tệ", "dở", "chậm", "bẩn", "thất vọng", "kém", "đắt", "tồi",
	"không ngon", "thô lỗ",
	// English
	"bad", "terrible", "awful", "horrible", "slow", "dirty", "rude",
	"worst", "disappointed", "disgusting", "overpriced",
}

// ruleBasedSentiment scores text as (positiveHits - negativeHits) /
// max(1, positiveHits + negativeHits) against the fixed keyword lists.
// Available with zero external dependencies.
func ruleBasedSentiment(text string) *SentimentResult {
	content := strings.ToLower(text)

	var hits []string
	positive := 0
	negative := 0

	for _, word := range positiveWords {
		if strings.Contains(content, word) {
			positive++
			hits = append(hits, word)
		}
	}
	for _, word := range negativeWords {
		if strings.Contains(content, word) {
			negative++
			hits = append(hits, word)
		}
	}

	total := positive + negative
	if total < 1 {
		total = 1
	}
	score := float64(positive-negative) / float64(total)

	sentiment := models.SentimentNeutral
	switch {
	case score > 0.2:
		sentiment = models.SentimentPositive
	case score < -0.2:
		sentiment = models.SentimentNegative
	}

	return &SentimentResult{
		Sentiment: sentiment,
		Score:     score,
		Keywords:  hits,
	}
}
