package models

import "time"

// Platform identifies an external review source/channel.
type Platform string

const (
	PlatformGoogle Platform = "google"
	PlatformZalo   Platform = "zalo"
	// PlatformDirect covers reviews submitted through our own widget; they
	// have no upstream reply API, publishing is purely a state transition.
	PlatformDirect Platform = "direct"
)

// Sentiment labels derived from review text.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// ReviewStatus is the review lifecycle: NEW -> AI_DRAFT_READY ->
// PENDING_RESPONSE -> RESPONDED. A review with no applicable auto-reply
// policy stays NEW indefinitely.
type ReviewStatus string

const (
	ReviewStatusNew             ReviewStatus = "NEW"
	ReviewStatusAIDraftReady    ReviewStatus = "AI_DRAFT_READY"
	ReviewStatusPendingResponse ReviewStatus = "PENDING_RESPONSE"
	ReviewStatusResponded       ReviewStatus = "RESPONDED"
)

// ResponseStatus is the response lifecycle. PENDING_APPROVAL is only used
// when a human must approve a draft before it is scheduled; the auto-reply
// path schedules directly.
type ResponseStatus string

const (
	ResponseStatusPendingApproval ResponseStatus = "PENDING_APPROVAL"
	ResponseStatusScheduled       ResponseStatus = "SCHEDULED"
	ResponseStatusPublished       ResponseStatus = "PUBLISHED"
)

// Review is one customer-authored rating+text on one platform for one
// location. (Platform, ExternalID) is the dedup key; ID is the stable
// internal identifier.
type Review struct {
	ID             string       `json:"id"`
	Platform       Platform     `json:"platform"`
	ExternalID     string       `json:"external_id"`
	AccountID      string       `json:"account_id"`
	LocationID     string       `json:"location_id"`
	Rating         int          `json:"rating"` // 1-5
	Text           string       `json:"text,omitempty"`
	AuthorName     string       `json:"author_name"`
	PublishedAt    time.Time    `json:"published_at"`
	Sentiment      Sentiment    `json:"sentiment"`
	SentimentScore float64      `json:"sentiment_score"` // -1..1
	Keywords       []string     `json:"keywords,omitempty"`
	Status         ReviewStatus `json:"status"`
	CustomerID     string       `json:"customer_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Response is one generated or manually authored reply attached to exactly
// one Review. At most one response is actively progressing through the
// lifecycle per review at any time.
type Response struct {
	ID          string         `json:"id"`
	ReviewID    string         `json:"review_id"`
	Content     string         `json:"content"`
	AIGenerated bool           `json:"ai_generated"`
	Tone        string         `json:"tone"`
	Status      ResponseStatus `json:"status"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	TokensUsed  int            `json:"tokens_used"`
	Model       string         `json:"model"`
	Provider    string         `json:"provider"`
	CreatedAt   time.Time      `json:"created_at"`
}

// IsActive reports whether the response is still progressing through the
// lifecycle. A review with an active response must not get another one.
func (r *Response) IsActive() bool {
	switch r.Status {
	case ResponseStatusPendingApproval, ResponseStatusScheduled, ResponseStatusPublished:
		return true
	}
	return false
}

// PlatformConnection carries the credential and external identifiers for one
// location's link to one platform. ExternalRef is a composite
// "accountID/locationID" string parsed by the pipeline, not by the platform
// client.
type PlatformConnection struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	LocationID  string    `json:"location_id"`
	Platform    Platform  `json:"platform"`
	AccessToken string    `json:"-"`
	ExternalRef string    `json:"external_ref"`
	Active      bool      `json:"active"`
	LastSyncAt  time.Time `json:"last_sync_at"`
}

// AutoReplySettings is the per-account auto-reply policy.
type AutoReplySettings struct {
	AccountID          string `json:"account_id"`
	Enabled            bool   `json:"enabled"`
	Tone               string `json:"tone"`
	PreferredProvider  string `json:"preferred_provider"` // "auto" or a provider name
	CustomInstructions string `json:"custom_instructions,omitempty"`
	BusinessName       string `json:"business_name"`
}

// Customer is an end-customer identity used for best-effort notifications.
type Customer struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ZaloUserID string `json:"zalo_user_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// Notification is an in-app notification record created when a customer's
// review gets answered.
type Notification struct {
	ID         string    `json:"id"`
	CustomerID string    `json:"customer_id"`
	ReviewID   string    `json:"review_id"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}

// DueDelivery is one SCHEDULED response whose time has come, joined with its
// parent review and the review's active platform connection (nil when the
// location has none for that platform).
type DueDelivery struct {
	Response   Response
	Review     Review
	Connection *PlatformConnection
}

// SyncResult summarizes one sync run for one connection.
type SyncResult struct {
	Synced  int `json:"synced"`
	New     int `json:"new"`
	Updated int `json:"updated"`
}

// ReconcileError records one failed item in a reconciliation run.
type ReconcileError struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// ReconcileResult is the structured summary returned by a reconciliation
// run. Callers inspect it rather than relying on a returned error to learn
// of partial failures.
type ReconcileResult struct {
	ScheduledNew int              `json:"scheduled_new"`
	Processed    int              `json:"processed"`
	Errors       int              `json:"errors"`
	ErrorDetails []ReconcileError `json:"error_details,omitempty"`
}

// MonthBucket formats the month key used by the usage aggregates.
func MonthBucket(t time.Time) string {
	return t.UTC().Format("2006-01")
}
