package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/monitoring"
	"github.com/reviewloop/reviewloop/internal/notifications"
	"github.com/reviewloop/reviewloop/internal/platforms"
	"github.com/reviewloop/reviewloop/internal/responder"
	"github.com/sirupsen/logrus"
)

const (
	// deliveryBatchSize bounds one delivery batch so an invocation fits the
	// external trigger's execution limit.
	deliveryBatchSize = 20
	// catchUpBatchSize bounds the catch-up generation scan; AI calls are
	// the slow part, so this is much smaller than the delivery batch.
	catchUpBatchSize = 5
)

// Store is the slice of the review store the reconciler needs.
type Store interface {
	FindStaleNewReviews(ctx context.Context, limit int) ([]models.Review, error)
	GetAutoReplySettings(ctx context.Context, accountID string) (*models.AutoReplySettings, error)
	FindDueResponses(ctx context.Context, now time.Time, limit int) ([]models.DueDelivery, error)
	PublishResponse(ctx context.Context, responseID, reviewID string, publishedAt time.Time) error
	FindCustomerForReview(ctx context.Context, review *models.Review) (*models.Customer, error)
	InsertNotification(ctx context.Context, n *models.Notification) error
}

// CatchUpScheduler schedules replies for stale reviews; satisfied by
// *responder.Service.
type CatchUpScheduler interface {
	ScheduleCatchUp(ctx context.Context, review *models.Review, settings *models.AutoReplySettings) error
}

// Service is the batch core: it finds due scheduled responses, dispatches
// them to the right platform, transitions state transactionally and fires
// best-effort notifications, isolating every per-item failure.
type Service struct {
	store     Store
	scheduler CatchUpScheduler
	clients   platforms.Registry
	notifier  notifications.Dispatcher
}

// NewService creates a new reconciler service
func NewService(store Store, scheduler CatchUpScheduler, clients platforms.Registry, notifier notifications.Dispatcher) *Service {
	return &Service{
		store:     store,
		scheduler: scheduler,
		clients:   clients,
		notifier:  notifier,
	}
}

// Run performs one bounded reconciliation. It is safe to invoke repeatedly
// and concurrently: delivered items leave the SCHEDULED state inside a
// transaction, so a re-run is a no-op for them and a mid-dispatch failure
// is retried on the next invocation (at-least-once delivery).
//
// The returned error is non-nil only when the due batch itself could not be
// fetched; every other failure is reported inside the summary.
func (s *Service) Run(ctx context.Context) (*models.ReconcileResult, error) {
	start := time.Now()
	logrus.Info("Starting reconciliation run")

	result := &models.ReconcileResult{}
	s.runCatchUp(ctx, result)

	now := time.Now().UTC()
	due, err := s.store.FindDueResponses(ctx, now, deliveryBatchSize)
	if err != nil {
		// No partial progress is possible without the batch; this is the
		// one failure that aborts the invocation.
		return nil, fmt.Errorf("failed to fetch due responses: %w", err)
	}

	for i := range due {
		item := &due[i]
		if err := s.deliver(ctx, item); err != nil {
			s.recordError(result, item.Response.ID, err)
			continue
		}
		result.Processed++
		monitoring.ResponsesPublished.Inc()
	}

	logrus.Infof("Reconciliation run finished in %v: %d scheduled, %d processed, %d errors",
		time.Since(start), result.ScheduledNew, result.Processed, result.Errors)
	return result, nil
}

// runCatchUp schedules replies for qualifying reviews that never got one.
// Runs ahead of the delivery loop; its failures go into the summary but
// never block delivery.
func (s *Service) runCatchUp(ctx context.Context, result *models.ReconcileResult) {
	reviews, err := s.store.FindStaleNewReviews(ctx, catchUpBatchSize)
	if err != nil {
		logrus.Errorf("Catch-up scan failed: %v", err)
		return
	}

	for i := range reviews {
		review := &reviews[i]

		settings, err := s.store.GetAutoReplySettings(ctx, review.AccountID)
		if err != nil {
			s.recordError(result, review.ID, fmt.Errorf("failed to load auto-reply settings: %w", err))
			continue
		}
		// The policy may have been switched off since the review was
		// ingested.
		if !settings.Enabled {
			continue
		}

		if err := s.scheduler.ScheduleCatchUp(ctx, review, settings); err != nil {
			if errors.Is(err, responder.ErrAlreadyScheduled) {
				continue
			}
			s.recordError(result, review.ID, err)
			continue
		}
		result.ScheduledNew++
	}
}

// deliver pushes one due response out and transitions its state. Every
// returned error leaves the response SCHEDULED for the next invocation.
func (s *Service) deliver(ctx context.Context, item *models.DueDelivery) error {
	client, ok := s.clients[item.Review.Platform]
	if !ok {
		return fmt.Errorf("no client registered for platform %s", item.Review.Platform)
	}

	if client.RequiresRemotePublish() {
		if item.Connection == nil || item.Connection.AccessToken == "" {
			return fmt.Errorf("no active %s connection with a credential for location %s",
				item.Review.Platform, item.Review.LocationID)
		}

		accountRef, locationRef, err := platforms.ParseExternalRef(item.Connection.ExternalRef)
		if err != nil {
			return err
		}

		if err := client.PublishReply(ctx, item.Connection.AccessToken, accountRef, locationRef,
			item.Review.ExternalID, item.Response.Content); err != nil {
			return fmt.Errorf("platform dispatch failed: %w", err)
		}
	}

	if err := s.store.PublishResponse(ctx, item.Response.ID, item.Review.ID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to transition state: %w", err)
	}

	s.notifyCustomer(ctx, item)
	return nil
}

// notifyCustomer tells the review's author their review was answered.
// Best-effort: any failure is logged and never rolls back the publish or
// counts against the item's tally.
func (s *Service) notifyCustomer(ctx context.Context, item *models.DueDelivery) {
	customer, err := s.store.FindCustomerForReview(ctx, &item.Review)
	if err != nil {
		logrus.Errorf("Customer lookup failed for review %s: %v", item.Review.ID, err)
		monitoring.NotificationFailures.Inc()
		return
	}
	if customer == nil {
		return
	}

	message := fmt.Sprintf("Your review has been answered: %s", item.Response.Content)

	if err := s.store.InsertNotification(ctx, &models.Notification{
		CustomerID: customer.ID,
		ReviewID:   item.Review.ID,
		Message:    message,
	}); err != nil {
		logrus.Errorf("Failed to record notification for customer %s: %v", customer.ID, err)
		monitoring.NotificationFailures.Inc()
		return
	}

	if err := s.notifier.NotifyCustomer(ctx, customer, message); err != nil {
		logrus.Errorf("Failed to push notification to customer %s: %v", customer.ID, err)
		monitoring.NotificationFailures.Inc()
	}
}

func (s *Service) recordError(result *models.ReconcileResult, id string, err error) {
	logrus.Errorf("Reconciliation item %s failed: %v", id, err)
	result.Errors++
	result.ErrorDetails = append(result.ErrorDetails, models.ReconcileError{
		ID:    id,
		Error: err.Error(),
	})
	monitoring.ReconcileErrors.Inc()
}
