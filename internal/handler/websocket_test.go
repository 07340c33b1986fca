package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insider-one/local-notifications/internal/domain"
)

func TestWebSocketClient_ShouldReceive(t *testing.T) {
	scheduled := domain.NewEvent(domain.EventNotificationScheduled)
	req := domain.NewNotificationRequest("a", domain.FireAfter(time.Minute), domain.Payload{})
	scheduled.Notification = &req

	permission := domain.NewEvent(domain.EventPermissionChanged)
	permission.Permission = domain.PermissionGranted

	tests := []struct {
		name   string
		filter *ClientFilter
		event  domain.Event
		want   bool
	}{
		{"no filter", nil, scheduled, true},
		{"matching id", &ClientFilter{NotificationIDs: []string{"a"}}, scheduled, true},
		{"other id", &ClientFilter{NotificationIDs: []string{"b"}}, scheduled, false},
		{"matching type", &ClientFilter{Types: []domain.EventType{domain.EventNotificationScheduled}}, scheduled, true},
		{"other type", &ClientFilter{Types: []domain.EventType{domain.EventNotificationFired}}, scheduled, false},
		{"id filter ignores permission events", &ClientFilter{NotificationIDs: []string{"b"}}, permission, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &WebSocketClient{}
			c.setFilter(tt.filter)
			assert.Equal(t, tt.want, c.shouldReceive(tt.event))
		})
	}
}

func TestWebSocketHub_BroadcastAndDecide(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewWebSocketHub(testLogger())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(NewWebSocketHandler(hub).HandleWebSocket))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// no prompt handler yet
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "decide", Granted: true}))

	var reply ErrorMessage
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, domain.ErrNoPendingPrompt.Error(), reply.Message)

	decisions := make(chan bool, 1)
	hub.SetDecisionHandler(func(granted bool) error {
		decisions <- granted
		return nil
	})
	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "decide", Granted: false}))

	select {
	case granted := <-decisions:
		assert.False(t, granted)
	case <-time.After(2 * time.Second):
		t.Fatal("decision was not forwarded")
	}

	event := domain.NewEvent(domain.EventPermissionChanged)
	event.Permission = domain.PermissionDenied
	hub.Broadcast(event)

	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var got domain.Event
	require.NoError(t, json.Unmarshal(message, &got))
	assert.Equal(t, domain.EventPermissionChanged, got.Type)
	assert.Equal(t, domain.PermissionDenied, got.Permission)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "hub shutdown closes the connection")
}
