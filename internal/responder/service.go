package responder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reviewloop/reviewloop/internal/ai"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/monitoring"
	"github.com/sirupsen/logrus"
)

// AutoReplyDelay is how long a freshly-synced review waits before its reply
// goes out, so the answer does not look instantaneous.
const AutoReplyDelay = 15 * time.Minute

// ErrAlreadyScheduled is returned when the review already has an active
// response. Callers racing each other (sync-triggered vs catch-up) treat it
// as a benign outcome.
var ErrAlreadyScheduled = errors.New("review already has an active response")

// Store is the slice of the review store the responder needs.
type Store interface {
	FindResponsesForReview(ctx context.Context, reviewID string) ([]models.Response, error)
	InsertResponse(ctx context.Context, response *models.Response) error
	UpdateReviewStatus(ctx context.Context, id string, status models.ReviewStatus) error
	UpsertUsageCounter(ctx context.Context, accountID, monthBucket string, responses, tokens int) error
}

// Generator produces reply text; satisfied by *ai.Gateway.
type Generator interface {
	Generate(ctx context.Context, req ai.GenerateRequest) (*ai.GenerateResult, error)
}

// Service decides when a generated reply is produced and when it is
// delivered, without ever duplicating work for one review.
type Service struct {
	store     Store
	generator Generator
}

// NewService creates a new responder service
func NewService(store Store, generator Generator) *Service {
	return &Service{store: store, generator: generator}
}

// ScheduleForNewReview generates and schedules a reply for a just-synced
// review, delayed by AutoReplyDelay. The review status is left unchanged
// until delivery.
func (s *Service) ScheduleForNewReview(ctx context.Context, review *models.Review, settings *models.AutoReplySettings) error {
	return s.schedule(ctx, review, settings, AutoReplyDelay, false)
}

// ScheduleCatchUp generates and schedules a reply for an old unanswered
// review found by the catch-up scan. It fires on the next reconciliation
// and moves the review to PENDING_RESPONSE immediately.
func (s *Service) ScheduleCatchUp(ctx context.Context, review *models.Review, settings *models.AutoReplySettings) error {
	return s.schedule(ctx, review, settings, 0, true)
}

func (s *Service) schedule(ctx context.Context, review *models.Review, settings *models.AutoReplySettings, delay time.Duration, markPending bool) error {
	// Re-check before generating: the sync-triggered and catch-up paths can
	// race for the same review.
	existing, err := s.store.FindResponsesForReview(ctx, review.ID)
	if err != nil {
		return fmt.Errorf("failed to check existing responses: %w", err)
	}
	for i := range existing {
		if existing[i].IsActive() {
			return ErrAlreadyScheduled
		}
	}

	result, err := s.generator.Generate(ctx, ai.GenerateRequest{
		ReviewText:         review.Text,
		ReviewerName:       review.AuthorName,
		Rating:             review.Rating,
		Sentiment:          review.Sentiment,
		BusinessName:       settings.BusinessName,
		Tone:               settings.Tone,
		CustomInstructions: settings.CustomInstructions,
		PreferredProvider:  settings.PreferredProvider,
	})
	if err != nil {
		return fmt.Errorf("failed to generate reply: %w", err)
	}

	response := &models.Response{
		ReviewID:    review.ID,
		Content:     result.Text,
		AIGenerated: true,
		Tone:        settings.Tone,
		Status:      models.ResponseStatusScheduled,
		ScheduledAt: time.Now().UTC().Add(delay),
		TokensUsed:  result.TokensUsed,
		Model:       result.Model,
		Provider:    result.Provider,
	}
	if err := s.store.InsertResponse(ctx, response); err != nil {
		return fmt.Errorf("failed to persist response: %w", err)
	}

	if markPending {
		if err := s.store.UpdateReviewStatus(ctx, review.ID, models.ReviewStatusPendingResponse); err != nil {
			return fmt.Errorf("failed to mark review pending: %w", err)
		}
	}

	if err := s.store.UpsertUsageCounter(ctx, review.AccountID, models.MonthBucket(time.Now()), 1, result.TokensUsed); err != nil {
		// Usage accounting must not undo a scheduled reply.
		logrus.Errorf("Failed to update usage counter for account %s: %v", review.AccountID, err)
	}

	monitoring.ResponsesScheduled.Inc()
	logrus.Infof("Scheduled %s reply for review %s at %s via %s",
		settings.Tone, review.ID, response.ScheduledAt.Format(time.RFC3339), result.Provider)
	return nil
}
