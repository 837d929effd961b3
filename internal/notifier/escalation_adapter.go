package notifier

import (
	"context"
	"fmt"

	"github.com/smilemakc/mbflow/internal/workflowengine"
)

// escalationTemplates maps the engine's generic escalation tiers onto the
// bot's notification template keys.
var escalationTemplates = map[int]string{
	workflowengine.EscalationTierReminder:  "order.reminder",
	workflowengine.EscalationTierEscalated: "order.escalation",
	workflowengine.EscalationTierTimedOut:  "order.timeout",
}

// CaseChatLookup resolves the chat a case's notifications belong in.
// internal/casestore.Store.ChatRefForCase implements this.
type CaseChatLookup interface {
	ChatRefForCase(ctx context.Context, caseID string) (string, error)
}

// EscalationAdapter implements workflowengine.EscalationNotifier against
// the bot service, translating a bare escalation tier into the chat
// reference and template the notify call needs.
type EscalationAdapter struct {
	client *Client
	cases  CaseChatLookup
}

// NewEscalationAdapter builds an EscalationAdapter.
func NewEscalationAdapter(client *Client, cases CaseChatLookup) *EscalationAdapter {
	return &EscalationAdapter{client: client, cases: cases}
}

// Notify implements workflowengine.EscalationNotifier.
func (a *EscalationAdapter) Notify(ctx context.Context, event workflowengine.EscalationEvent) error {
	template, ok := escalationTemplates[event.Tier]
	if !ok {
		return fmt.Errorf("unknown escalation tier %d", event.Tier)
	}
	chatID, err := a.cases.ChatRefForCase(ctx, event.CaseID)
	if err != nil {
		return fmt.Errorf("resolve chat for case %s: %w", event.CaseID, err)
	}
	return a.client.Notify(ctx, Notification{
		CaseID:   event.CaseID,
		ChatID:   chatID,
		Template: template,
		Params:   map[string]string{"awaitStep": event.AwaitStep},
	})
}
