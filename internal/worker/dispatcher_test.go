package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/local-notifications/internal/config"
	"github.com/insider-one/local-notifications/internal/domain"
)

// MockDueStore is a mock implementation of domain.DueStore
type MockDueStore struct {
	mock.Mock
}

func (m *MockDueStore) Due(ctx context.Context, now time.Time, limit int) ([]domain.DueNotification, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DueNotification), args.Error(1)
}

func (m *MockDueStore) Acknowledge(ctx context.Context, due domain.DueNotification, firedAt time.Time) error {
	args := m.Called(ctx, due, firedAt)
	return args.Error(0)
}

func (m *MockDueStore) Defer(ctx context.Context, due domain.DueNotification, until time.Time) error {
	args := m.Called(ctx, due, until)
	return args.Error(0)
}

// MockProvider is a mock implementation of domain.DeliveryProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string {
	return "mock"
}

func (m *MockProvider) Send(ctx context.Context, d *domain.Delivery) (*domain.DeliveryReceipt, error) {
	args := m.Called(ctx, d)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DeliveryReceipt), args.Error(1)
}

// MockRateLimiter is a mock implementation of domain.RateLimiter
type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockRateLimiter) Wait(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type recordedDelivery struct {
	provider string
	status   string
}

type recordingRecorder struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
}

func (r *recordingRecorder) RecordDelivery(provider, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deliveries = append(r.deliveries, recordedDelivery{provider: provider, status: status})
}

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestDispatcher(store *MockDueStore, limiter domain.RateLimiter, provider *MockProvider) (*Dispatcher, *recordingRecorder, *[]string) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	d := NewDispatcher(store, limiter, provider, logger,
		config.RetryConfig{MaxCount: 3, BaseDelay: time.Second},
		config.DispatcherConfig{Interval: 10 * time.Millisecond, BatchSize: 10},
		time.Second,
	)
	d.now = func() time.Time { return fixedNow }

	recorder := &recordingRecorder{}
	d.SetRecorder(recorder)

	var fired []string
	d.SetFiredHandler(func(ctx context.Context, handle domain.EngineHandle, req domain.NotificationRequest) {
		fired = append(fired, req.ID+"@"+string(handle))
	})
	return d, recorder, &fired
}

func dueNotification(id string, attempts int) domain.DueNotification {
	return domain.DueNotification{
		Request:  domain.NewNotificationRequest(id, domain.FireAt(fixedNow.Add(-time.Second)), domain.Payload{Title: "t"}),
		Handle:   domain.EngineHandle("store:" + id),
		FireAt:   fixedNow.Add(-time.Second),
		Attempts: attempts,
		Revision: "rev-" + id,
	}
}

func TestDispatcher_DeliversAndAcknowledges(t *testing.T) {
	store := new(MockDueStore)
	limiter := new(MockRateLimiter)
	provider := new(MockProvider)
	d, recorder, fired := newTestDispatcher(store, limiter, provider)
	ctx := context.Background()

	a, b := dueNotification("a", 0), dueNotification("b", 0)
	store.On("Due", ctx, fixedNow, 10).Return([]domain.DueNotification{a, b}, nil).Once()
	limiter.On("Wait", ctx, "mock").Return(nil).Twice()
	provider.On("Send", mock.Anything, mock.AnythingOfType("*domain.Delivery")).
		Return(&domain.DeliveryReceipt{MessageID: "m"}, nil).Twice()
	store.On("Acknowledge", ctx, a, fixedNow).Return(nil).Once()
	store.On("Acknowledge", ctx, b, fixedNow).Return(nil).Once()

	d.dispatchDue(ctx)

	assert.Equal(t, []string{"a@store:a", "b@store:b"}, *fired)
	assert.Equal(t, []recordedDelivery{
		{provider: "mock", status: domain.DeliveryDelivered},
		{provider: "mock", status: domain.DeliveryDelivered},
	}, recorder.deliveries)
	store.AssertExpectations(t)
	limiter.AssertExpectations(t)
	provider.AssertExpectations(t)
}

func TestDispatcher_SendErrors(t *testing.T) {
	tests := []struct {
		name       string
		attempts   int
		sendErr    error
		wantDefer  time.Duration
		wantStatus string
	}{
		{
			name:       "retryable error is deferred",
			sendErr:    domain.NewProviderError(503, "unavailable", true),
			wantDefer:  time.Second,
			wantStatus: domain.DeliveryRetried,
		},
		{
			name:       "plain error is deferred with backoff",
			attempts:   1,
			sendErr:    errors.New("connection reset"),
			wantDefer:  2 * time.Second,
			wantStatus: domain.DeliveryRetried,
		},
		{
			name:       "non-retryable error is dropped",
			sendErr:    domain.NewProviderError(400, "bad request", false),
			wantStatus: domain.DeliveryFailed,
		},
		{
			name:       "retry budget exhausted",
			attempts:   2,
			sendErr:    domain.NewProviderError(503, "unavailable", true),
			wantStatus: domain.DeliveryFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockDueStore)
			provider := new(MockProvider)
			d, recorder, fired := newTestDispatcher(store, nil, provider)
			ctx := context.Background()

			due := dueNotification("a", tt.attempts)
			store.On("Due", ctx, fixedNow, 10).Return([]domain.DueNotification{due}, nil).Once()
			provider.On("Send", mock.Anything, mock.Anything).Return(nil, tt.sendErr).Once()

			if tt.wantStatus == domain.DeliveryRetried {
				store.On("Defer", ctx, due, fixedNow.Add(tt.wantDefer)).Return(nil).Once()
			} else {
				store.On("Acknowledge", ctx, due, fixedNow).Return(nil).Once()
			}

			d.dispatchDue(ctx)

			require.Len(t, recorder.deliveries, 1)
			assert.Equal(t, tt.wantStatus, recorder.deliveries[0].status)
			if tt.wantStatus == domain.DeliveryFailed {
				assert.Equal(t, []string{"a@store:a"}, *fired)
			} else {
				assert.Empty(t, *fired)
			}
			store.AssertExpectations(t)
			provider.AssertExpectations(t)
		})
	}
}

func TestDispatcher_DueErrorIsLogged(t *testing.T) {
	store := new(MockDueStore)
	provider := new(MockProvider)
	d, _, _ := newTestDispatcher(store, nil, provider)
	ctx := context.Background()

	store.On("Due", ctx, fixedNow, 10).Return(nil, errors.New("connection refused")).Once()

	d.dispatchDue(ctx)

	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestDispatcher_RateLimiterCancellationStopsBatch(t *testing.T) {
	store := new(MockDueStore)
	limiter := new(MockRateLimiter)
	provider := new(MockProvider)
	d, _, _ := newTestDispatcher(store, limiter, provider)
	ctx := context.Background()

	store.On("Due", ctx, fixedNow, 10).Return([]domain.DueNotification{dueNotification("a", 0), dueNotification("b", 0)}, nil).Once()
	limiter.On("Wait", ctx, "mock").Return(context.Canceled).Once()

	d.dispatchDue(ctx)

	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	limiter.AssertExpectations(t)
}

func TestDispatcher_StartStop(t *testing.T) {
	store := new(MockDueStore)
	provider := new(MockProvider)
	d, _, _ := newTestDispatcher(store, nil, provider)

	var polls atomic.Int32
	store.On("Due", mock.Anything, fixedNow, 10).Return(nil, nil).Run(func(mock.Arguments) {
		polls.Add(1)
	})

	require.NoError(t, d.Start(context.Background()))
	require.NoError(t, d.Start(context.Background()))

	require.Eventually(t, func() bool {
		return polls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	d.Stop()
	d.Stop()
}

func TestCalculateBackoff(t *testing.T) {
	d := &Dispatcher{retry: config.RetryConfig{BaseDelay: time.Second}}

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{5, 16 * time.Second},
		{20, 5 * time.Minute},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, d.calculateBackoff(tt.retryCount), "retry %d", tt.retryCount)
	}
}
