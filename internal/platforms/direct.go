package platforms

import (
	"context"
	"fmt"

	"github.com/reviewloop/reviewloop/internal/models"
)

// DirectClient represents the in-app review channel. Reviews arrive through
// the submission API, so there is nothing to list, and replies live in our
// own store, so publishing needs no external call.
type DirectClient struct{}

var _ Client = (*DirectClient)(nil)

// NewDirectClient creates the direct channel client.
func NewDirectClient() *DirectClient {
	return &DirectClient{}
}

func (d *DirectClient) Name() models.Platform {
	return models.PlatformDirect
}

func (d *DirectClient) RequiresRemotePublish() bool {
	return false
}

func (d *DirectClient) ListReviews(ctx context.Context, accessToken, accountRef, locationRef string, pageSize int, pageToken string) (*ReviewPage, error) {
	return nil, fmt.Errorf("direct channel reviews are not pulled, they arrive via the submission API")
}

func (d *DirectClient) PublishReply(ctx context.Context, accessToken, accountRef, locationRef, externalReviewID, comment string) error {
	return fmt.Errorf("direct channel replies need no remote publish call")
}
