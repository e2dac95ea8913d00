package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/sirupsen/logrus"
)

// Postgres is the relational ReviewStore. It satisfies the narrow store
// interfaces declared by the syncer, responder and reconciler packages.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool against the given DSN and verifies it
// with a bounded ping.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("Connected to Postgres")
	return &Postgres{db: db}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// FindReviewByExternalID looks a review up by its dedup key. Returns
// (nil, nil) when no review exists.
func (p *Postgres) FindReviewByExternalID(ctx context.Context, platform models.Platform, externalID string) (*models.Review, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, platform, external_id, account_id, location_id, rating, text,
		       author_name, published_at, sentiment, sentiment_score, keywords,
		       status, customer_id, created_at, updated_at
		FROM reviews
		WHERE platform = $1 AND external_id = $2`,
		string(platform), externalID)

	review, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query review: %w", err)
	}
	return review, nil
}

// InsertReview inserts a new review, assigning an id when none is set. The
// unique (platform, external_id) index makes re-ingestion under a race a
// constraint error instead of a duplicate row.
func (p *Postgres) InsertReview(ctx context.Context, review *models.Review) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO reviews (id, platform, external_id, account_id, location_id,
			rating, text, author_name, published_at, sentiment, sentiment_score,
			keywords, status, customer_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		review.ID, string(review.Platform), review.ExternalID, review.AccountID,
		review.LocationID, review.Rating, review.Text, review.AuthorName,
		review.PublishedAt, string(review.Sentiment), review.SentimentScore,
		pq.Array(review.Keywords), string(review.Status), nullable(review.CustomerID),
		review.CreatedAt, review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// UpdateReviewContent updates the mutable fields after a content edit
// upstream. Sentiment is left untouched on purpose.
func (p *Postgres) UpdateReviewContent(ctx context.Context, id, text string, rating int) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE reviews SET text = $2, rating = $3, updated_at = $4 WHERE id = $1`,
		id, text, rating, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update review content: %w", err)
	}
	return nil
}

// UpdateReviewStatus moves a review through its lifecycle.
func (p *Postgres) UpdateReviewStatus(ctx context.Context, id string, status models.ReviewStatus) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE reviews SET status = $2, updated_at = $3 WHERE id = $1`,
		id, string(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update review status: %w", err)
	}
	return nil
}

// FindResponsesForReview returns every response attached to the review.
func (p *Postgres) FindResponsesForReview(ctx context.Context, reviewID string) ([]models.Response, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, review_id, content, ai_generated, tone, status, scheduled_at,
		       published_at, tokens_used, model, provider, created_at
		FROM responses
		WHERE review_id = $1
		ORDER BY created_at`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to query responses: %w", err)
	}
	defer rows.Close()

	var responses []models.Response
	for rows.Next() {
		var r models.Response
		var publishedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.ReviewID, &r.Content, &r.AIGenerated,
			&r.Tone, &r.Status, &r.ScheduledAt, &publishedAt, &r.TokensUsed,
			&r.Model, &r.Provider, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		if publishedAt.Valid {
			r.PublishedAt = &publishedAt.Time
		}
		responses = append(responses, r)
	}
	return responses, rows.Err()
}

// InsertResponse persists a new response, assigning an id when none is set.
func (p *Postgres) InsertResponse(ctx context.Context, response *models.Response) error {
	if response.ID == "" {
		response.ID = uuid.NewString()
	}
	response.CreatedAt = time.Now().UTC()

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO responses (id, review_id, content, ai_generated, tone, status,
			scheduled_at, published_at, tokens_used, model, provider, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		response.ID, response.ReviewID, response.Content, response.AIGenerated,
		response.Tone, string(response.Status), response.ScheduledAt,
		response.PublishedAt, response.TokensUsed, response.Model,
		response.Provider, response.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

// FindDueResponses fetches up to limit SCHEDULED responses whose scheduled
// time has passed, joined with their review and the review location's active
// connection for the review's platform (nil when none exists).
func (p *Postgres) FindDueResponses(ctx context.Context, now time.Time, limit int) ([]models.DueDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT r.id, r.review_id, r.content, r.ai_generated, r.tone, r.status,
		       r.scheduled_at, r.tokens_used, r.model, r.provider, r.created_at,
		       v.id, v.platform, v.external_id, v.account_id, v.location_id,
		       v.rating, v.text, v.author_name, v.published_at, v.sentiment,
		       v.sentiment_score, v.status, v.customer_id,
		       c.id, c.account_id, c.location_id, c.platform, c.access_token, c.external_ref
		FROM responses r
		JOIN reviews v ON v.id = r.review_id
		LEFT JOIN platform_connections c
		       ON c.location_id = v.location_id AND c.platform = v.platform AND c.active
		WHERE r.status = $1 AND r.scheduled_at <= $2
		ORDER BY r.scheduled_at
		LIMIT $3`,
		string(models.ResponseStatusScheduled), now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due responses: %w", err)
	}
	defer rows.Close()

	var due []models.DueDelivery
	for rows.Next() {
		var d models.DueDelivery
		var customerID sql.NullString
		var connID, connAccount, connLocation, connPlatform, connToken, connRef sql.NullString
		if err := rows.Scan(
			&d.Response.ID, &d.Response.ReviewID, &d.Response.Content,
			&d.Response.AIGenerated, &d.Response.Tone, &d.Response.Status,
			&d.Response.ScheduledAt, &d.Response.TokensUsed, &d.Response.Model,
			&d.Response.Provider, &d.Response.CreatedAt,
			&d.Review.ID, &d.Review.Platform, &d.Review.ExternalID,
			&d.Review.AccountID, &d.Review.LocationID, &d.Review.Rating,
			&d.Review.Text, &d.Review.AuthorName, &d.Review.PublishedAt,
			&d.Review.Sentiment, &d.Review.SentimentScore, &d.Review.Status,
			&customerID,
			&connID, &connAccount, &connLocation, &connPlatform, &connToken, &connRef,
		); err != nil {
			return nil, fmt.Errorf("failed to scan due response: %w", err)
		}
		d.Review.CustomerID = customerID.String
		if connID.Valid {
			d.Connection = &models.PlatformConnection{
				ID:          connID.String,
				AccountID:   connAccount.String,
				LocationID:  connLocation.String,
				Platform:    models.Platform(connPlatform.String),
				AccessToken: connToken.String,
				ExternalRef: connRef.String,
				Active:      true,
			}
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

// FindStaleNewReviews returns qualifying NEW 5-star positive reviews that
// never got a response scheduled, for the catch-up scan. Bounded by limit
// to keep one invocation inside the external trigger's time budget.
func (p *Postgres) FindStaleNewReviews(ctx context.Context, limit int) ([]models.Review, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT v.id, v.platform, v.external_id, v.account_id, v.location_id,
		       v.rating, v.text, v.author_name, v.published_at, v.sentiment,
		       v.sentiment_score, v.keywords, v.status, v.customer_id,
		       v.created_at, v.updated_at
		FROM reviews v
		WHERE v.status = $1 AND v.rating = 5 AND v.sentiment = $2
		  AND NOT EXISTS (SELECT 1 FROM responses r WHERE r.review_id = v.id)
		ORDER BY v.created_at
		LIMIT $3`,
		string(models.ReviewStatusNew), string(models.SentimentPositive), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale review: %w", err)
		}
		reviews = append(reviews, *review)
	}
	return reviews, rows.Err()
}

// PublishResponse atomically sets the response to PUBLISHED and its review
// to RESPONDED. A crash between the two writes cannot leave them out of
// sync; the WHERE clause on the response status also makes re-publishing an
// already-published response a no-op under concurrent invocations.
func (p *Postgres) PublishResponse(ctx context.Context, responseID, reviewID string, publishedAt time.Time) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin publish transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE responses SET status = $2, published_at = $3
		WHERE id = $1 AND status = $4`,
		responseID, string(models.ResponseStatusPublished), publishedAt,
		string(models.ResponseStatusScheduled))
	if err != nil {
		return fmt.Errorf("failed to publish response: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("response %s is not in SCHEDULED state", responseID)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE reviews SET status = $2, updated_at = $3 WHERE id = $1`,
		reviewID, string(models.ReviewStatusResponded), publishedAt); err != nil {
		return fmt.Errorf("failed to mark review responded: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish transaction: %w", err)
	}
	return nil
}

// UpsertUsageCounter accumulates the monthly AI usage aggregate for an
// account.
func (p *Postgres) UpsertUsageCounter(ctx context.Context, accountID, monthBucket string, responses, tokens int) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO usage_counters (account_id, month_bucket, ai_responses, tokens_used)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, month_bucket)
		DO UPDATE SET ai_responses = usage_counters.ai_responses + EXCLUDED.ai_responses,
		              tokens_used = usage_counters.tokens_used + EXCLUDED.tokens_used`,
		accountID, monthBucket, responses, tokens)
	if err != nil {
		return fmt.Errorf("failed to upsert usage counter: %w", err)
	}
	return nil
}

// UpsertSyncCursor records the last successful sync time for a connection.
func (p *Postgres) UpsertSyncCursor(ctx context.Context, connectionID string, t time.Time) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO sync_cursors (connection_id, last_sync_at)
		VALUES ($1, $2)
		ON CONFLICT (connection_id) DO UPDATE SET last_sync_at = EXCLUDED.last_sync_at`,
		connectionID, t)
	if err != nil {
		return fmt.Errorf("failed to upsert sync cursor: %w", err)
	}
	return nil
}

// GetAutoReplySettings returns the account's auto-reply policy, with the
// policy disabled by default when the account never configured one.
func (p *Postgres) GetAutoReplySettings(ctx context.Context, accountID string) (*models.AutoReplySettings, error) {
	settings := &models.AutoReplySettings{AccountID: accountID}
	err := p.db.QueryRowContext(ctx, `
		SELECT enabled, tone, preferred_provider, custom_instructions, business_name
		FROM auto_reply_settings WHERE account_id = $1`, accountID).
		Scan(&settings.Enabled, &settings.Tone, &settings.PreferredProvider,
			&settings.CustomInstructions, &settings.BusinessName)
	if err == sql.ErrNoRows {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query auto-reply settings: %w", err)
	}
	return settings, nil
}

// FindCustomerForReview resolves the end-customer a review is attributable
// to. Returns (nil, nil) when the review has no known customer identity.
func (p *Postgres) FindCustomerForReview(ctx context.Context, review *models.Review) (*models.Customer, error) {
	if review.CustomerID == "" {
		return nil, nil
	}
	var c models.Customer
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(zalo_user_id, ''), COALESCE(email, '')
		FROM customers WHERE id = $1`, review.CustomerID).
		Scan(&c.ID, &c.Name, &c.ZaloUserID, &c.Email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	return &c, nil
}

// InsertNotification persists an in-app notification record.
func (p *Postgres) InsertNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (id, customer_id, review_id, message, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		n.ID, n.CustomerID, n.ReviewID, n.Message, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}
	return nil
}

// GetConnection fetches one platform connection by id.
func (p *Postgres) GetConnection(ctx context.Context, id string) (*models.PlatformConnection, error) {
	var c models.PlatformConnection
	err := p.db.QueryRowContext(ctx, `
		SELECT id, account_id, location_id, platform, access_token, external_ref, active
		FROM platform_connections WHERE id = $1`, id).
		Scan(&c.ID, &c.AccountID, &c.LocationID, &c.Platform, &c.AccessToken,
			&c.ExternalRef, &c.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query connection: %w", err)
	}
	return &c, nil
}

// ListActiveConnections returns every active platform connection, for the
// periodic sync sweep.
func (p *Postgres) ListActiveConnections(ctx context.Context) ([]models.PlatformConnection, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, account_id, location_id, platform, access_token, external_ref, active
		FROM platform_connections WHERE active`)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections: %w", err)
	}
	defer rows.Close()

	var connections []models.PlatformConnection
	for rows.Next() {
		var c models.PlatformConnection
		if err := rows.Scan(&c.ID, &c.AccountID, &c.LocationID, &c.Platform,
			&c.AccessToken, &c.ExternalRef, &c.Active); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		connections = append(connections, c)
	}
	return connections, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanReview(row rowScanner) (*models.Review, error) {
	var r models.Review
	var customerID sql.NullString
	var keywords pq.StringArray
	if err := row.Scan(&r.ID, &r.Platform, &r.ExternalID, &r.AccountID,
		&r.LocationID, &r.Rating, &r.Text, &r.AuthorName, &r.PublishedAt,
		&r.Sentiment, &r.SentimentScore, &keywords, &r.Status, &customerID,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Keywords = keywords
	r.CustomerID = customerID.String
	return &r, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
