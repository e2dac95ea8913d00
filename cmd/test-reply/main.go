// Manual harness: generates a single reply from the command line so prompt
// and provider changes can be checked without running the full pipeline.
//
//	GEMINI_API_KEY=... go run ./cmd/test-reply -rating 5 -name "Minh" \
//	    -text "Phở rất ngon, nhân viên nhiệt tình!" -business "Phở 24"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/reviewloop/reviewloop/internal/ai"
)

func main() {
	_ = godotenv.Load()

	var (
		text     = flag.String("text", "", "review text")
		name     = flag.String("name", "A Google User", "reviewer display name")
		rating   = flag.Int("rating", 5, "star rating 1-5")
		business = flag.String("business", "Demo Cafe", "business name")
		tone     = flag.String("tone", ai.ToneFriendly, "reply tone")
		provider = flag.String("provider", "auto", "preferred provider")
	)
	flag.Parse()

	gateway := ai.NewGateway(
		ai.NewGeminiBackend(func() string { return os.Getenv("GEMINI_API_KEY") }, "gemini-1.5-flash"),
		ai.NewOpenAIBackend(func() string { return os.Getenv("OPENAI_API_KEY") }, "gpt-4o-mini"),
	)
	classifier := ai.NewClassifier(gateway)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	sentiment := classifier.Analyze(ctx, *text)
	fmt.Printf("Sentiment: %s (score %.2f, keywords %v)\n\n", sentiment.Sentiment, sentiment.Score, sentiment.Keywords)

	result, err := gateway.Generate(ctx, ai.GenerateRequest{
		ReviewText:        *text,
		ReviewerName:      *name,
		Rating:            *rating,
		Sentiment:         sentiment.Sentiment,
		BusinessName:      *business,
		Tone:              *tone,
		PreferredProvider: *provider,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Provider: %s (%s), %d tokens\n\n%s\n", result.Provider, result.Model, result.TokensUsed, result.Text)
}
