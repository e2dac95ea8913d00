package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/reviewloop/reviewloop/internal/models"
)

const googleAPIBase = "https://mybusiness.googleapis.com/v4"

// GoogleClient talks to the Google Business Profile reviews API.
type GoogleClient struct {
	client *resty.Client
}

var _ Client = (*GoogleClient)(nil)

type googleReview struct {
	ReviewID string `json:"reviewId"`
	Reviewer struct {
		DisplayName string `json:"displayName"`
	} `json:"reviewer"`
	StarRating  string `json:"starRating"` // ONE..FIVE
	Comment     string `json:"comment"`
	CreateTime  string `json:"createTime"`
	UpdateTime  string `json:"updateTime"`
	ReviewReply *struct {
		Comment string `json:"comment"`
	} `json:"reviewReply,omitempty"`
}

type googleListResponse struct {
	Reviews       []googleReview `json:"reviews"`
	NextPageToken string         `json:"nextPageToken"`
}

// NewGoogleClient creates a Google Business Profile client.
func NewGoogleClient() *GoogleClient {
	return &GoogleClient{
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (g *GoogleClient) Name() models.Platform {
	return models.PlatformGoogle
}

func (g *GoogleClient) RequiresRemotePublish() bool {
	return true
}

func (g *GoogleClient) ListReviews(ctx context.Context, accessToken, accountRef, locationRef string, pageSize int, pageToken string) (*ReviewPage, error) {
	url := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews", googleAPIBase, accountRef, locationRef)

	req := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+accessToken).
		SetQueryParam("pageSize", fmt.Sprintf("%d", pageSize)).
		SetQueryParam("orderBy", "updateTime desc")
	if pageToken != "" {
		req.SetQueryParam("pageToken", pageToken)
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("google reviews request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("google reviews API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var parsed googleListResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode google reviews response: %w", err)
	}

	page := &ReviewPage{NextPageToken: parsed.NextPageToken}
	for _, r := range parsed.Reviews {
		page.Items = append(page.Items, ExternalReview{
			ExternalID:  r.ReviewID,
			AuthorName:  r.Reviewer.DisplayName,
			Rating:      StarRatingToInt(r.StarRating),
			Text:        r.Comment,
			PublishedAt: parseGoogleTime(r.CreateTime),
			UpdatedAt:   parseGoogleTime(r.UpdateTime),
			HasReply:    r.ReviewReply != nil,
		})
	}
	return page, nil
}

func (g *GoogleClient) PublishReply(ctx context.Context, accessToken, accountRef, locationRef, externalReviewID, comment string) error {
	url := fmt.Sprintf("%s/accounts/%s/locations/%s/reviews/%s/reply", googleAPIBase, accountRef, locationRef, externalReviewID)

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"comment": comment}).
		Put(url)

	if err != nil {
		return fmt.Errorf("google reply request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("google reply API returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

// StarRatingToInt maps the API's star rating enum onto 1-5. Unknown values
// map to 0 so malformed items are visible downstream.
func StarRatingToInt(star string) int {
	switch star {
	case "ONE":
		return 1
	case "TWO":
		return 2
	case "THREE":
		return 3
	case "FOUR":
		return 4
	case "FIVE":
		return 5
	}
	return 0
}

func parseGoogleTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
