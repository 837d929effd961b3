package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/mbflow/internal/outbox"
	"github.com/smilemakc/mbflow/pkg/models"
)

type fakeCaseChatLookup struct {
	chatID string
	err    error
}

func (f *fakeCaseChatLookup) ChatRefForCase(_ context.Context, _ string) (string, error) {
	return f.chatID, f.err
}

func TestOutboxAdapter_DeliverSendsExpectedTemplate(t *testing.T) {
	var received Notification
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	adapter := NewOutboxAdapter(client, &fakeCaseChatLookup{chatID: "chat-123"})

	err := adapter.Deliver(context.Background(), outbox.Delivery{
		CaseID:    "case-1",
		EventType: models.OutboxEventCreated,
		Payload:   `{"draftId":"d-1"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, "case-1", received.CaseID)
	assert.Equal(t, "chat-123", received.ChatID)
	assert.Equal(t, "order.draft_created", received.Template)
	assert.Equal(t, `{"draftId":"d-1"}`, received.Params["payload"])
}

func TestOutboxAdapter_DeliverUnknownEventType(t *testing.T) {
	client := NewClient("http://unused.invalid")
	adapter := NewOutboxAdapter(client, &fakeCaseChatLookup{chatID: "chat-123"})

	err := adapter.Deliver(context.Background(), outbox.Delivery{
		CaseID:    "case-1",
		EventType: "unknown-type",
	})
	assert.Error(t, err)
}

func TestOutboxAdapter_DeliverChatLookupFailure(t *testing.T) {
	client := NewClient("http://unused.invalid")
	adapter := NewOutboxAdapter(client, &fakeCaseChatLookup{err: assert.AnError})

	err := adapter.Deliver(context.Background(), outbox.Delivery{
		CaseID:    "case-1",
		EventType: models.OutboxEventCreated,
	})
	assert.Error(t, err)
}
