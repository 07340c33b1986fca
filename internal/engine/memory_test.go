package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/local-notifications/internal/domain"
)

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

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine(t *testing.T, provider domain.DeliveryProvider) *Memory {
	t.Helper()
	m := NewMemory(provider, testLogger())
	m.Start()
	t.Cleanup(m.Stop)
	return m
}

func TestMemory_ScheduleAndCancel(t *testing.T) {
	m := newEngine(t, new(MockProvider))
	ctx := context.Background()

	future := domain.FireAfter(time.Hour)
	h1, err := m.Schedule(ctx, domain.NewNotificationRequest("a", future, domain.Payload{}))
	require.NoError(t, err)
	_, err = m.Schedule(ctx, domain.NewNotificationRequest("b", future, domain.Payload{}))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	// same identifier replaces the job
	h2, err := m.Schedule(ctx, domain.NewNotificationRequest("a", future, domain.Payload{Title: "new"}))
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, m.Len())

	require.NoError(t, m.Cancel(ctx, "a"))
	require.NoError(t, m.Cancel(ctx, "unknown"))
	assert.Equal(t, 1, m.Len())

	require.NoError(t, m.CancelAll(ctx))
	assert.Equal(t, 0, m.Len())
	require.NoError(t, m.CancelAll(ctx))
}

func TestMemory_FiresPastRequestImmediately(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Send", mock.Anything, mock.MatchedBy(func(d *domain.Delivery) bool {
		return d.NotificationID == "late" && d.Title == "Wake up"
	})).Return(&domain.DeliveryReceipt{MessageID: "m-1"}, nil).Once()

	m := newEngine(t, provider)

	var mu sync.Mutex
	var fired []string
	var firedHandles []domain.EngineHandle
	m.SetFiredHandler(func(ctx context.Context, handle domain.EngineHandle, req domain.NotificationRequest) {
		mu.Lock()
		defer mu.Unlock()
		fired = append(fired, req.ID)
		firedHandles = append(firedHandles, handle)
	})

	req := domain.NewNotificationRequest("late", domain.FireAt(time.Now().Add(-time.Minute)), domain.Payload{Title: "Wake up"})
	handle, err := m.Schedule(context.Background(), req)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []domain.EngineHandle{handle}, firedHandles, "fired occurrence carries its schedule handle")
	mu.Unlock()

	assert.Equal(t, 0, m.Len())
	provider.AssertExpectations(t)
}

func TestMemory_CancelledJobDoesNotFire(t *testing.T) {
	provider := new(MockProvider)
	m := newEngine(t, provider)

	_, err := m.Schedule(context.Background(), domain.NewNotificationRequest("a", domain.FireAfter(300*time.Millisecond), domain.Payload{}))
	require.NoError(t, err)
	require.NoError(t, m.CancelAll(context.Background()))

	time.Sleep(600 * time.Millisecond)
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestMemory_StaleGenerationIsSkipped(t *testing.T) {
	provider := new(MockProvider)
	m := NewMemory(provider, testLogger())

	_, err := m.Schedule(context.Background(), domain.NewNotificationRequest("a", domain.FireAfter(time.Hour), domain.Payload{}))
	require.NoError(t, err)

	m.fire("a", 0)
	m.fire("missing", 1)

	assert.Equal(t, 1, m.Len())
	provider.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

type deliveryCall struct {
	provider string
	status   string
}

type recordingRecorder struct {
	mu    sync.Mutex
	calls []deliveryCall
}

func (r *recordingRecorder) RecordDelivery(provider, status string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, deliveryCall{provider: provider, status: status})
}

func TestMemory_RecordsDeliveryOutcome(t *testing.T) {
	provider := new(MockProvider)
	provider.On("Send", mock.Anything, mock.Anything).Return(nil, domain.NewProviderError(503, "unavailable", true)).Once()

	m := NewMemory(provider, testLogger())
	m.SetDeliveryTimeout(time.Second)
	recorder := &recordingRecorder{}
	m.SetRecorder(recorder)

	var fired []string
	m.SetFiredHandler(func(ctx context.Context, _ domain.EngineHandle, req domain.NotificationRequest) {
		fired = append(fired, req.ID)
	})

	_, err := m.Schedule(context.Background(), domain.NewNotificationRequest("a", domain.FireAfter(time.Hour), domain.Payload{}))
	require.NoError(t, err)

	m.fire("a", 1)

	assert.Equal(t, []deliveryCall{{provider: "mock", status: domain.DeliveryFailed}}, recorder.calls)
	assert.Equal(t, []string{"a"}, fired, "a failed one-shot still leaves the pending set")
	assert.Equal(t, 0, m.Len())
	provider.AssertExpectations(t)
}
