package ai

import (
	"fmt"
	"strings"
)

// placeholderNames are reviewer display names the platforms substitute when
// the real name is withheld. The greeting falls back to a generic "bạn"
// for these.
var placeholderNames = []string{
	"a google user",
	"google user",
	"anonymous",
	"khách hàng ẩn danh",
	"người dùng ẩn danh",
	"unknown",
}

func greetingName(reviewerName string) string {
	name := strings.TrimSpace(reviewerName)
	if name == "" {
		return "bạn"
	}
	lower := strings.ToLower(name)
	for _, p := range placeholderNames {
		if lower == p {
			return "bạn"
		}
	}
	return name
}

// buildReplyPrompt assembles the system and user prompts for a reply
// generation call. The word target, discount ban and competitor ban are
// prompt-level requirements; the gateway does not validate the output
// mechanically.
func buildReplyPrompt(req GenerateRequest) (system, prompt string) {
	tone := req.Tone
	if tone == "" {
		tone = ToneFriendly
	}

	var sys strings.Builder
	sys.WriteString("You are the owner of the business \"")
	sys.WriteString(req.BusinessName)
	sys.WriteString("\" replying to a customer review. ")
	sys.WriteString("Write in the same language as the review. ")
	sys.WriteString(fmt.Sprintf("Keep the reply between 50 and 150 words, in a %s tone. ", tone))
	sys.WriteString("Never promise concrete discounts, refunds or compensation. ")
	sys.WriteString("Never mention or compare with competitors. ")
	sys.WriteString("Start with a greeting addressing the reviewer by name.")
	if req.CustomInstructions != "" {
		sys.WriteString(" Additional instructions: ")
		sys.WriteString(req.CustomInstructions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Reviewer: %s\n", greetingName(req.ReviewerName))
	fmt.Fprintf(&b, "Rating: %d/5\n", req.Rating)
	if req.Sentiment != "" {
		fmt.Fprintf(&b, "Sentiment: %s\n", req.Sentiment)
	}
	if strings.TrimSpace(req.ReviewText) == "" {
		b.WriteString("The review has no text, only the star rating. Thank the customer for the rating.\n")
	} else {
		fmt.Fprintf(&b, "Review text:\n%s\n", req.ReviewText)
	}
	b.WriteString("\nWrite the reply now.")

	return sys.String(), b.String()
}
