package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/reviewloop/reviewloop/internal/ai"
	"github.com/reviewloop/reviewloop/internal/archive"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/monitoring"
	"github.com/reviewloop/reviewloop/internal/platforms"
	"github.com/reviewloop/reviewloop/internal/responder"
	"github.com/sirupsen/logrus"
)

const (
	// pageSize is the per-request page bound for platform list calls.
	pageSize = 50
	// maxItemsPerRun caps one sync run; the idempotent upsert makes the
	// next run safe to pick up where this one stopped.
	maxItemsPerRun = 200
)

// Store is the slice of the review store the syncer needs.
type Store interface {
	FindReviewByExternalID(ctx context.Context, platform models.Platform, externalID string) (*models.Review, error)
	InsertReview(ctx context.Context, review *models.Review) error
	UpdateReviewContent(ctx context.Context, id, text string, rating int) error
	FindResponsesForReview(ctx context.Context, reviewID string) ([]models.Response, error)
	GetAutoReplySettings(ctx context.Context, accountID string) (*models.AutoReplySettings, error)
	UpsertSyncCursor(ctx context.Context, connectionID string, t time.Time) error
}

// Classifier derives sentiment metadata; satisfied by *ai.Classifier.
type Classifier interface {
	Analyze(ctx context.Context, text string) *ai.SentimentResult
}

// ReplyScheduler schedules auto-replies; satisfied by *responder.Service.
type ReplyScheduler interface {
	ScheduleForNewReview(ctx context.Context, review *models.Review, settings *models.AutoReplySettings) error
}

// Service pulls reviews for one location+platform connection, reconciles
// them into the store and triggers auto-reply scheduling for qualifying new
// items.
type Service struct {
	store      Store
	classifier Classifier
	scheduler  ReplyScheduler
	clients    platforms.Registry
	archiver   archive.Archiver // optional
}

// NewService creates a new sync service. archiver may be nil when payload
// archival is not configured.
func NewService(store Store, classifier Classifier, scheduler ReplyScheduler, clients platforms.Registry, archiver archive.Archiver) *Service {
	return &Service{
		store:      store,
		classifier: classifier,
		scheduler:  scheduler,
		clients:    clients,
		archiver:   archiver,
	}
}

// SyncConnection runs one bounded sync for the connection. A page fetch
// failure aborts this connection's run only; an auto-reply failure is
// logged and the loop continues.
func (s *Service) SyncConnection(ctx context.Context, conn *models.PlatformConnection) (*models.SyncResult, error) {
	start := time.Now()
	logrus.Infof("Starting sync for connection %s (%s)", conn.ID, conn.Platform)

	client, ok := s.clients[conn.Platform]
	if !ok {
		return nil, fmt.Errorf("no client registered for platform %s", conn.Platform)
	}

	accountRef, locationRef, err := platforms.ParseExternalRef(conn.ExternalRef)
	if err != nil {
		return nil, fmt.Errorf("connection %s: %w", conn.ID, err)
	}

	settings, err := s.store.GetAutoReplySettings(ctx, conn.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load auto-reply settings: %w", err)
	}

	result := &models.SyncResult{}
	var fetched []platforms.ExternalReview
	pageToken := ""

	for {
		page, err := client.ListReviews(ctx, conn.AccessToken, accountRef, locationRef, pageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch reviews page: %w", err)
		}

		for i := range page.Items {
			item := &page.Items[i]
			fetched = append(fetched, *item)
			result.Synced++

			if err := s.reconcileItem(ctx, conn, settings, item, result); err != nil {
				return nil, err
			}

			if result.Synced >= maxItemsPerRun {
				break
			}
		}

		pageToken = page.NextPageToken
		if pageToken == "" || result.Synced >= maxItemsPerRun {
			break
		}
	}

	s.archivePayload(conn, fetched)

	if err := s.store.UpsertSyncCursor(ctx, conn.ID, time.Now().UTC()); err != nil {
		logrus.Errorf("Failed to persist sync cursor for connection %s: %v", conn.ID, err)
	}
	monitoring.ReviewsScanned.Add(float64(result.Synced))

	logrus.Infof("Sync for connection %s finished in %v: %d scanned, %d new, %d updated",
		conn.ID, time.Since(start), result.Synced, result.New, result.Updated)
	return result, nil
}

// reconcileItem upserts one fetched review and schedules an auto-reply when
// it qualifies. Only store failures propagate; scheduling failures are
// contained here.
func (s *Service) reconcileItem(ctx context.Context, conn *models.PlatformConnection, settings *models.AutoReplySettings, item *platforms.ExternalReview, result *models.SyncResult) error {
	review, err := s.store.FindReviewByExternalID(ctx, conn.Platform, item.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to look up review %s: %w", item.ExternalID, err)
	}

	if review == nil {
		review = s.normalize(conn, item)
		sentiment := s.classifier.Analyze(ctx, item.Text)
		review.Sentiment = sentiment.Sentiment
		review.SentimentScore = sentiment.Score
		review.Keywords = sentiment.Keywords

		if err := s.store.InsertReview(ctx, review); err != nil {
			return fmt.Errorf("failed to insert review %s: %w", item.ExternalID, err)
		}
		result.New++
		monitoring.ReviewsNew.Inc()
	} else if review.Text != item.Text || review.Rating != item.Rating {
		// Content drifted upstream. Sentiment is not recomputed on edits;
		// re-spending AI budget on every tweak is not worth it.
		if err := s.store.UpdateReviewContent(ctx, review.ID, item.Text, item.Rating); err != nil {
			return fmt.Errorf("failed to update review %s: %w", review.ID, err)
		}
		review.Text = item.Text
		review.Rating = item.Rating
		result.Updated++
		monitoring.ReviewsUpdated.Inc()
	}

	s.maybeAutoReply(ctx, review, settings, item)
	return nil
}

// maybeAutoReply schedules a delayed reply when the policy is enabled, the
// review is a top-rated positive one, and nothing has replied to it yet. A
// failure here never aborts the sync run.
func (s *Service) maybeAutoReply(ctx context.Context, review *models.Review, settings *models.AutoReplySettings, item *platforms.ExternalReview) {
	if !settings.Enabled || item.Rating != 5 || review.Sentiment != models.SentimentPositive || item.HasReply {
		return
	}

	existing, err := s.store.FindResponsesForReview(ctx, review.ID)
	if err != nil {
		logrus.Errorf("Failed to check responses for review %s: %v", review.ID, err)
		return
	}
	for i := range existing {
		if existing[i].IsActive() {
			return
		}
	}

	if err := s.scheduler.ScheduleForNewReview(ctx, review, settings); err != nil {
		if errors.Is(err, responder.ErrAlreadyScheduled) {
			return
		}
		logrus.Errorf("Auto-reply scheduling failed for review %s: %v", review.ID, err)
	}
}

func (s *Service) normalize(conn *models.PlatformConnection, item *platforms.ExternalReview) *models.Review {
	status := models.ReviewStatusNew
	if item.HasReply {
		// Already answered on the platform; nothing for the pipeline to do.
		status = models.ReviewStatusResponded
	}
	return &models.Review{
		Platform:    conn.Platform,
		ExternalID:  item.ExternalID,
		AccountID:   conn.AccountID,
		LocationID:  conn.LocationID,
		Rating:      item.Rating,
		Text:        item.Text,
		AuthorName:  item.AuthorName,
		PublishedAt: item.PublishedAt,
		Status:      status,
		CustomerID:  item.CustomerRef,
	}
}

// archivePayload stores the raw fetched items for audit; best-effort.
func (s *Service) archivePayload(conn *models.PlatformConnection, items []platforms.ExternalReview) {
	if s.archiver == nil || len(items) == 0 {
		return
	}

	data, err := json.Marshal(items)
	if err != nil {
		logrus.Errorf("Failed to marshal sync payload for connection %s: %v", conn.ID, err)
		return
	}

	filename := fmt.Sprintf("sync-%s-%s.json", conn.ID, time.Now().Format("2006-01-02-15-04-05"))
	if err := s.archiver.Store(filename, data); err != nil {
		logrus.Errorf("Failed to archive sync payload %s: %v", filename, err)
	}
}
