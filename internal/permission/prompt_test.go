package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/local-notifications/internal/domain"
)

func TestPromptAuthorizer_Decide(t *testing.T) {
	tests := []struct {
		name    string
		granted bool
		want    domain.PermissionState
	}{
		{"granted", true, domain.PermissionGranted},
		{"denied", false, domain.PermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authorizer := NewPromptAuthorizer(testLogger())
			prompts := make(chan domain.Event, 1)
			authorizer.SetPromptBroadcast(func(e domain.Event) { prompts <- e })

			result := make(chan domain.PermissionState, 1)
			go func() {
				state, _ := authorizer.RequestAuthorization(context.Background())
				result <- state
			}()

			select {
			case e := <-prompts:
				assert.Equal(t, domain.EventPermissionPrompt, e.Type)
			case <-time.After(time.Second):
				t.Fatal("prompt was not announced")
			}
			require.Eventually(t, authorizer.Awaiting, time.Second, 5*time.Millisecond)

			require.NoError(t, authorizer.Decide(tt.granted))

			assert.Equal(t, tt.want, <-result)
			status, err := authorizer.AuthorizationStatus(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, tt.want, status)
			assert.False(t, authorizer.Awaiting())
		})
	}
}

func TestPromptAuthorizer_DecideWithoutPrompt(t *testing.T) {
	authorizer := NewPromptAuthorizer(testLogger())
	assert.ErrorIs(t, authorizer.Decide(true), domain.ErrNoPendingPrompt)
}

func TestPromptAuthorizer_ContextCancelled(t *testing.T) {
	authorizer := NewPromptAuthorizer(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	state, err := authorizer.RequestAuthorization(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.PermissionUnknown, state)
}

func TestPromptAuthorizer_WithGate(t *testing.T) {
	authorizer := NewPromptAuthorizer(testLogger())
	gate := NewGate(authorizer, testLogger())

	first := gate.RequestAuthorization(context.Background())
	second := gate.RequestAuthorization(context.Background())

	require.Eventually(t, authorizer.Awaiting, time.Second, 5*time.Millisecond)
	require.NoError(t, authorizer.Decide(true))

	assert.Equal(t, domain.PermissionGranted, await(t, first).State)
	assert.Equal(t, domain.PermissionGranted, await(t, second).State)

	authorizer.Reset()
	state, err := gate.Refresh(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, domain.PermissionUnknown, state)
}

func TestPolicyAuthorizer(t *testing.T) {
	t.Run("grants after delay", func(t *testing.T) {
		authorizer := NewPolicyAuthorizer(true, 10*time.Millisecond)

		status, _ := authorizer.AuthorizationStatus(context.Background())
		assert.Equal(t, domain.PermissionUnknown, status)

		state, err := authorizer.RequestAuthorization(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, domain.PermissionGranted, state)
		assert.Equal(t, 1, authorizer.Prompts())
	})

	t.Run("denies", func(t *testing.T) {
		authorizer := NewPolicyAuthorizer(false, 0)
		state, err := authorizer.RequestAuthorization(context.Background())
		assert.NoError(t, err)
		assert.Equal(t, domain.PermissionDenied, state)
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		authorizer := NewPolicyAuthorizer(true, time.Hour)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := authorizer.RequestAuthorization(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPromptAuthorizer_Timeout(t *testing.T) {
	authorizer := NewPromptAuthorizer(testLogger())
	authorizer.SetTimeout(20 * time.Millisecond)

	state, err := authorizer.RequestAuthorization(context.Background())

	assert.ErrorIs(t, err, ErrPromptTimeout)
	assert.Equal(t, domain.PermissionUnknown, state)
	assert.False(t, authorizer.Awaiting())
	assert.ErrorIs(t, authorizer.Decide(true), domain.ErrNoPendingPrompt, "expired prompt cannot be answered")
}
