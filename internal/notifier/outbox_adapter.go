package notifier

import (
	"context"
	"fmt"

	"github.com/smilemakc/mbflow/internal/outbox"
	"github.com/smilemakc/mbflow/pkg/models"
)

// outboxTemplates maps an outbox event's kind onto the bot's notification
// template keys, mirroring escalationTemplates' tier mapping.
var outboxTemplates = map[models.OutboxEventType]string{
	models.OutboxEventCreated:        "order.draft_created",
	models.OutboxEventFailed:         "order.draft_failed",
	models.OutboxEventRetryExhausted: "order.draft_queued",
}

// OutboxAdapter implements outbox.Notifier against the bot service,
// resolving the event's case to a chat reference the way EscalationAdapter
// does for engine-driven escalations.
type OutboxAdapter struct {
	client *Client
	cases  CaseChatLookup
}

// NewOutboxAdapter builds an OutboxAdapter.
func NewOutboxAdapter(client *Client, cases CaseChatLookup) *OutboxAdapter {
	return &OutboxAdapter{client: client, cases: cases}
}

// Deliver implements outbox.Notifier.
func (a *OutboxAdapter) Deliver(ctx context.Context, d outbox.Delivery) error {
	template, ok := outboxTemplates[d.EventType]
	if !ok {
		return fmt.Errorf("unknown outbox event type %q", d.EventType)
	}
	chatID, err := a.cases.ChatRefForCase(ctx, d.CaseID)
	if err != nil {
		return fmt.Errorf("resolve chat for case %s: %w", d.CaseID, err)
	}
	return a.client.Notify(ctx, Notification{
		CaseID:   d.CaseID,
		ChatID:   chatID,
		Template: template,
		Params:   map[string]string{"payload": d.Payload},
	})
}
