package reconciler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/reviewloop/reviewloop/internal/models"
	"github.com/reviewloop/reviewloop/internal/platforms"
	"github.com/reviewloop/reviewloop/internal/responder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of the reconciler store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) FindStaleNewReviews(ctx context.Context, limit int) ([]models.Review, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.Review), args.Error(1)
}

func (m *MockStore) GetAutoReplySettings(ctx context.Context, accountID string) (*models.AutoReplySettings, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AutoReplySettings), args.Error(1)
}

func (m *MockStore) FindDueResponses(ctx context.Context, now time.Time, limit int) ([]models.DueDelivery, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DueDelivery), args.Error(1)
}

func (m *MockStore) PublishResponse(ctx context.Context, responseID, reviewID string, publishedAt time.Time) error {
	args := m.Called(ctx, responseID, reviewID, publishedAt)
	return args.Error(0)
}

func (m *MockStore) FindCustomerForReview(ctx context.Context, review *models.Review) (*models.Customer, error) {
	args := m.Called(ctx, review)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Customer), args.Error(1)
}

func (m *MockStore) InsertNotification(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

// MockScheduler is a mock implementation of the CatchUpScheduler interface
type MockScheduler struct {
	mock.Mock
}

func (m *MockScheduler) ScheduleCatchUp(ctx context.Context, review *models.Review, settings *models.AutoReplySettings) error {
	args := m.Called(ctx, review, settings)
	return args.Error(0)
}

// MockDispatcher is a mock implementation of the notification dispatcher
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) NotifyCustomer(ctx context.Context, customer *models.Customer, message string) error {
	args := m.Called(ctx, customer, message)
	return args.Error(0)
}

// fakeClient records publish calls and can be told to fail specific reviews.
type fakeClient struct {
	platform      models.Platform
	remotePublish bool
	failFor       map[string]error
	published     []string
}

func (f *fakeClient) Name() models.Platform       { return f.platform }
func (f *fakeClient) RequiresRemotePublish() bool { return f.remotePublish }

func (f *fakeClient) ListReviews(ctx context.Context, accessToken, accountRef, locationRef string, pageSize int, pageToken string) (*platforms.ReviewPage, error) {
	return &platforms.ReviewPage{}, nil
}

func (f *fakeClient) PublishReply(ctx context.Context, accessToken, accountRef, locationRef, externalReviewID, comment string) error {
	if err, ok := f.failFor[externalReviewID]; ok {
		return err
	}
	f.published = append(f.published, externalReviewID)
	return nil
}

func dueItem(responseID, reviewID string, platform models.Platform, conn *models.PlatformConnection) models.DueDelivery {
	return models.DueDelivery{
		Response: models.Response{
			ID:       responseID,
			ReviewID: reviewID,
			Content:  "Cảm ơn bạn đã đánh giá!",
			Status:   models.ResponseStatusScheduled,
		},
		Review: models.Review{
			ID:         reviewID,
			Platform:   platform,
			ExternalID: "ext-" + reviewID,
			AccountID:  "acc-1",
			LocationID: "loc-1",
		},
		Connection: conn,
	}
}

func googleConnection() *models.PlatformConnection {
	return &models.PlatformConnection{
		ID:          "conn-1",
		Platform:    models.PlatformGoogle,
		AccountID:   "acc-1",
		LocationID:  "loc-1",
		ExternalRef: "108234/5512",
		AccessToken: "token-1",
	}
}

func newTestService(store *MockStore, scheduler *MockScheduler, notifier *MockDispatcher, clients ...platforms.Client) *Service {
	return NewService(store, scheduler, platforms.NewRegistry(clients...), notifier)
}

func noCatchUp(store *MockStore) {
	store.On("FindStaleNewReviews", mock.Anything, catchUpBatchSize).Return([]models.Review{}, nil)
}

func TestService_Run_DeliversDueResponses(t *testing.T) {
	store := &MockStore{}
	scheduler := &MockScheduler{}
	notifier := &MockDispatcher{}
	google := &fakeClient{platform: models.PlatformGoogle, remotePublish: true}
	direct := &fakeClient{platform: models.PlatformDirect}
	service := newTestService(store, scheduler, notifier, google, direct)

	noCatchUp(store)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{
		dueItem("resp-1", "rev-1", models.PlatformGoogle, googleConnection()),
		dueItem("resp-2", "rev-2", models.PlatformDirect, nil),
	}, nil)
	store.On("PublishResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("FindCustomerForReview", mock.Anything, mock.Anything).Return(nil, nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 0, result.Errors)
	// Only the remote platform needs an external publish call.
	assert.Equal(t, []string{"ext-rev-1"}, google.published)
	store.AssertCalled(t, "PublishResponse", mock.Anything, "resp-1", "rev-1", mock.Anything)
	store.AssertCalled(t, "PublishResponse", mock.Anything, "resp-2", "rev-2", mock.Anything)
}

func TestService_Run_IsolatesPerItemFailures(t *testing.T) {
	store := &MockStore{}
	scheduler := &MockScheduler{}
	notifier := &MockDispatcher{}
	google := &fakeClient{
		platform:      models.PlatformGoogle,
		remotePublish: true,
		failFor:       map[string]error{"ext-rev-2": errors.New("api timeout")},
	}
	service := newTestService(store, scheduler, notifier, google)

	noCatchUp(store)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{
		dueItem("resp-1", "rev-1", models.PlatformGoogle, googleConnection()),
		dueItem("resp-2", "rev-2", models.PlatformGoogle, googleConnection()),
		dueItem("resp-3", "rev-3", models.PlatformGoogle, googleConnection()),
	}, nil)
	store.On("PublishResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("FindCustomerForReview", mock.Anything, mock.Anything).Return(nil, nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Equal(t, "resp-2", result.ErrorDetails[0].ID)
	assert.Contains(t, result.ErrorDetails[0].Error, "api timeout")
	// The failed item stays SCHEDULED for the next run.
	store.AssertNotCalled(t, "PublishResponse", mock.Anything, "resp-2", "rev-2", mock.Anything)
}

func TestService_Run_MissingConnectionIsItemError(t *testing.T) {
	store := &MockStore{}
	google := &fakeClient{platform: models.PlatformGoogle, remotePublish: true}
	service := newTestService(store, &MockScheduler{}, &MockDispatcher{}, google)

	noCatchUp(store)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{
		dueItem("resp-1", "rev-1", models.PlatformGoogle, nil),
	}, nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.Processed)
	assert.Equal(t, 1, result.Errors)
	assert.Empty(t, google.published)
	store.AssertNotCalled(t, "PublishResponse", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestService_Run_DueBatchFetchFailureAborts(t *testing.T) {
	store := &MockStore{}
	service := newTestService(store, &MockScheduler{}, &MockDispatcher{})

	noCatchUp(store)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return(nil, errors.New("connection refused"))

	_, err := service.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch due responses")
}

func TestService_Run_CatchUpSchedulesStaleReviews(t *testing.T) {
	store := &MockStore{}
	scheduler := &MockScheduler{}
	service := newTestService(store, scheduler, &MockDispatcher{})

	stale := []models.Review{
		{ID: "rev-1", AccountID: "acc-1", Rating: 5, Sentiment: models.SentimentPositive},
		{ID: "rev-2", AccountID: "acc-2", Rating: 5, Sentiment: models.SentimentPositive},
	}
	store.On("FindStaleNewReviews", mock.Anything, catchUpBatchSize).Return(stale, nil)
	store.On("GetAutoReplySettings", mock.Anything, "acc-1").Return(&models.AutoReplySettings{AccountID: "acc-1", Enabled: true}, nil)
	// Policy switched off after the review was ingested.
	store.On("GetAutoReplySettings", mock.Anything, "acc-2").Return(&models.AutoReplySettings{AccountID: "acc-2", Enabled: false}, nil)
	scheduler.On("ScheduleCatchUp", mock.Anything, mock.MatchedBy(func(r *models.Review) bool {
		return r.ID == "rev-1"
	}), mock.Anything).Return(nil)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{}, nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.ScheduledNew)
	assert.Equal(t, 0, result.Errors)
	scheduler.AssertNumberOfCalls(t, "ScheduleCatchUp", 1)
}

func TestService_Run_CatchUpAlreadyScheduledIsBenign(t *testing.T) {
	store := &MockStore{}
	scheduler := &MockScheduler{}
	service := newTestService(store, scheduler, &MockDispatcher{})

	store.On("FindStaleNewReviews", mock.Anything, catchUpBatchSize).Return([]models.Review{
		{ID: "rev-1", AccountID: "acc-1"},
	}, nil)
	store.On("GetAutoReplySettings", mock.Anything, "acc-1").Return(&models.AutoReplySettings{AccountID: "acc-1", Enabled: true}, nil)
	scheduler.On("ScheduleCatchUp", mock.Anything, mock.Anything, mock.Anything).Return(responder.ErrAlreadyScheduled)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{}, nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, result.ScheduledNew)
	assert.Equal(t, 0, result.Errors)
}

func TestService_Run_CatchUpFailureDoesNotBlockDelivery(t *testing.T) {
	store := &MockStore{}
	scheduler := &MockScheduler{}
	direct := &fakeClient{platform: models.PlatformDirect}
	service := newTestService(store, scheduler, &MockDispatcher{}, direct)

	store.On("FindStaleNewReviews", mock.Anything, catchUpBatchSize).Return([]models.Review{
		{ID: "rev-stale", AccountID: "acc-1"},
	}, nil)
	store.On("GetAutoReplySettings", mock.Anything, "acc-1").Return(&models.AutoReplySettings{AccountID: "acc-1", Enabled: true}, nil)
	scheduler.On("ScheduleCatchUp", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("all providers down"))
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{
		dueItem("resp-1", "rev-1", models.PlatformDirect, nil),
	}, nil)
	store.On("PublishResponse", mock.Anything, "resp-1", "rev-1", mock.Anything).Return(nil)
	store.On("FindCustomerForReview", mock.Anything, mock.Anything).Return(nil, nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Errors)
	require.Len(t, result.ErrorDetails, 1)
	assert.Equal(t, "rev-stale", result.ErrorDetails[0].ID)
}

func TestService_Run_NotifiesCustomerAfterPublish(t *testing.T) {
	store := &MockStore{}
	notifier := &MockDispatcher{}
	direct := &fakeClient{platform: models.PlatformDirect}
	service := newTestService(store, &MockScheduler{}, notifier, direct)

	customer := &models.Customer{ID: "cust-1", Name: "Minh", ZaloUserID: "zalo-1"}

	noCatchUp(store)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{
		dueItem("resp-1", "rev-1", models.PlatformDirect, nil),
	}, nil)
	store.On("PublishResponse", mock.Anything, "resp-1", "rev-1", mock.Anything).Return(nil)
	store.On("FindCustomerForReview", mock.Anything, mock.Anything).Return(customer, nil)
	store.On("InsertNotification", mock.Anything, mock.MatchedBy(func(n *models.Notification) bool {
		return n.CustomerID == "cust-1" && n.ReviewID == "rev-1"
	})).Return(nil)
	notifier.On("NotifyCustomer", mock.Anything, customer, mock.Anything).Return(nil)

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	notifier.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestService_Run_NotificationFailureDoesNotCountAgainstItem(t *testing.T) {
	store := &MockStore{}
	notifier := &MockDispatcher{}
	direct := &fakeClient{platform: models.PlatformDirect}
	service := newTestService(store, &MockScheduler{}, notifier, direct)

	noCatchUp(store)
	store.On("FindDueResponses", mock.Anything, mock.Anything, deliveryBatchSize).Return([]models.DueDelivery{
		dueItem("resp-1", "rev-1", models.PlatformDirect, nil),
	}, nil)
	store.On("PublishResponse", mock.Anything, "resp-1", "rev-1", mock.Anything).Return(nil)
	store.On("FindCustomerForReview", mock.Anything, mock.Anything).Return(&models.Customer{ID: "cust-1"}, nil)
	store.On("InsertNotification", mock.Anything, mock.Anything).Return(errors.New("constraint violation"))

	result, err := service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 0, result.Errors)
	notifier.AssertNotCalled(t, "NotifyCustomer", mock.Anything, mock.Anything, mock.Anything)
}
