package ai

import (
	"testing"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestGreetingName(t *testing.T) {
	tests := []struct {
		name     string
		reviewer string
		expected string
	}{
		{"Real name", "Nguyễn Văn Minh", "Nguyễn Văn Minh"},
		{"Empty name", "", "bạn"},
		{"Whitespace name", "   ", "bạn"},
		{"Google placeholder", "A Google User", "bạn"},
		{"Anonymous placeholder", "anonymous", "bạn"},
		{"Vietnamese placeholder", "Khách hàng ẩn danh", "bạn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, greetingName(tt.reviewer))
		})
	}
}

func TestBuildReplyPrompt(t *testing.T) {
	system, prompt := buildReplyPrompt(GenerateRequest{
		ReviewText:         "Phở rất ngon!",
		ReviewerName:       "Minh",
		Rating:             5,
		Sentiment:          models.SentimentPositive,
		BusinessName:       "Phở 24",
		Tone:               ToneEmpathetic,
		CustomInstructions: "Mention our new branch in District 7",
	})

	assert.Contains(t, system, "Phở 24")
	assert.Contains(t, system, "between 50 and 150 words")
	assert.Contains(t, system, "empathetic tone")
	assert.Contains(t, system, "Never promise concrete discounts")
	assert.Contains(t, system, "Never mention or compare with competitors")
	assert.Contains(t, system, "Mention our new branch in District 7")

	assert.Contains(t, prompt, "Minh")
	assert.Contains(t, prompt, "5/5")
	assert.Contains(t, prompt, "Phở rất ngon!")
}

func TestBuildReplyPrompt_RatingOnly(t *testing.T) {
	_, prompt := buildReplyPrompt(GenerateRequest{
		ReviewerName: "A Google User",
		Rating:       5,
	})

	assert.Contains(t, prompt, "bạn")
	assert.Contains(t, prompt, "no text")
}

func TestBuildReplyPrompt_DefaultsToFriendlyTone(t *testing.T) {
	system, _ := buildReplyPrompt(GenerateRequest{Rating: 4})
	assert.Contains(t, system, "friendly tone")
}
