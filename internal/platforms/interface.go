package platforms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/reviewloop/reviewloop/internal/models"
)

// ExternalReview is one review item as fetched from a platform, before
// normalization into the internal Review shape.
type ExternalReview struct {
	ExternalID  string
	AuthorName  string
	Rating      int // already mapped to 1-5
	Text        string
	PublishedAt time.Time
	UpdatedAt   time.Time
	HasReply    bool
	CustomerRef string // platform-side customer identity, when known
}

// ReviewPage is one page of fetched reviews plus the cursor for the next.
type ReviewPage struct {
	Items         []ExternalReview
	NextPageToken string
}

// Client is the contract every review platform client implements. Composite
// external identifiers are parsed by the caller (see ParseExternalRef), not
// by the client.
type Client interface {
	Name() models.Platform
	// RequiresRemotePublish reports whether publishing a reply needs an
	// external API call. When false the publish step is purely the local
	// state transition.
	RequiresRemotePublish() bool
	ListReviews(ctx context.Context, accessToken, accountRef, locationRef string, pageSize int, pageToken string) (*ReviewPage, error)
	PublishReply(ctx context.Context, accessToken, accountRef, locationRef, externalReviewID, comment string) error
}

// Registry maps platform names to their clients.
type Registry map[models.Platform]Client

// NewRegistry builds a registry from the given clients.
func NewRegistry(clients ...Client) Registry {
	r := make(Registry, len(clients))
	for _, c := range clients {
		r[c.Name()] = c
	}
	return r
}

// ParseExternalRef splits the composite "accountID/locationID" reference a
// connection carries into its parts.
func ParseExternalRef(ref string) (accountRef, locationRef string, err error) {
	parts := strings.Split(ref, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed external ref %q, want \"accountID/locationID\"", ref)
	}
	return parts[0], parts[1], nil
}
