package platforms

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/reviewloop/reviewloop/internal/models"
)

const zaloAPIBase = "https://openapi.zalo.me/v2.0/oa"

// ZaloClient pulls ratings left on a Zalo Official Account and replies
// through the OA messaging API.
type ZaloClient struct {
	client *resty.Client
}

var _ Client = (*ZaloClient)(nil)

type zaloRating struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
	Rate     int    `json:"rate"` // already 1-5
	Comment  string `json:"comment"`
	Time     int64  `json:"time"` // unix millis
	Replied  bool   `json:"replied"`
}

type zaloListResponse struct {
	Data struct {
		Ratings []zaloRating `json:"ratings"`
		Next    string       `json:"next"`
	} `json:"data"`
	Error   int    `json:"error"`
	Message string `json:"message"`
}

// NewZaloClient creates a Zalo Official Account client.
func NewZaloClient() *ZaloClient {
	return &ZaloClient{
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

func (z *ZaloClient) Name() models.Platform {
	return models.PlatformZalo
}

func (z *ZaloClient) RequiresRemotePublish() bool {
	return true
}

func (z *ZaloClient) ListReviews(ctx context.Context, accessToken, accountRef, locationRef string, pageSize int, pageToken string) (*ReviewPage, error) {
	req := z.client.R().
		SetContext(ctx).
		SetHeader("access_token", accessToken).
		SetQueryParam("oa_id", accountRef).
		SetQueryParam("count", fmt.Sprintf("%d", pageSize))
	if pageToken != "" {
		req.SetQueryParam("offset", pageToken)
	}

	resp, err := req.Get(zaloAPIBase + "/getratings")
	if err != nil {
		return nil, fmt.Errorf("zalo ratings request failed: %w", err)
	}

	var parsed zaloListResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode zalo ratings response: %w", err)
	}
	if parsed.Error != 0 {
		return nil, fmt.Errorf("zalo API error %d: %s", parsed.Error, parsed.Message)
	}

	page := &ReviewPage{NextPageToken: parsed.Data.Next}
	for _, r := range parsed.Data.Ratings {
		createdAt := time.UnixMilli(r.Time)
		page.Items = append(page.Items, ExternalReview{
			ExternalID:  r.ID,
			AuthorName:  r.UserName,
			Rating:      r.Rate,
			Text:        r.Comment,
			PublishedAt: createdAt,
			UpdatedAt:   createdAt,
			HasReply:    r.Replied,
			CustomerRef: r.UserID,
		})
	}
	return page, nil
}

func (z *ZaloClient) PublishReply(ctx context.Context, accessToken, accountRef, locationRef, externalReviewID, comment string) error {
	resp, err := z.client.R().
		SetContext(ctx).
		SetHeader("access_token", accessToken).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]interface{}{
			"rating_id": externalReviewID,
			"message":   comment,
		}).
		Post(zaloAPIBase + "/replyrating")

	if err != nil {
		return fmt.Errorf("zalo reply request failed: %w", err)
	}

	var parsed struct {
		Error   int    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return fmt.Errorf("failed to decode zalo reply response: %w", err)
	}
	if parsed.Error != 0 {
		return fmt.Errorf("zalo API error %d: %s", parsed.Error, parsed.Message)
	}
	return nil
}
