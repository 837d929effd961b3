package outbox

import (
	"context"
	"time"

	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	domain "github.com/smilemakc/mbflow/pkg/models"
)

// Delivery is the deliverable form of a pending event, handed to the
// Notifier so it does not need to know about domain.OutboxEvent's storage
// bookkeeping fields.
type Delivery struct {
	CaseID    string
	EventType domain.OutboxEventType
	Payload   string
}

// Notifier delivers one outbox event downstream (the bot collaborator
// service's POST /notify endpoint, via notifier.OutboxAdapter). A delivery failure
// is ordinary and expected; the publisher reschedules via MarkFailed
// rather than treating it as fatal.
type Notifier interface {
	Deliver(ctx context.Context, d Delivery) error
}

// Publisher drains pending events oldest-first and hands each to the
// Notifier, non-blocking across events the way the teacher's
// ObserverManager.Notify fans out to observers without letting one slow
// observer stall the rest.
type Publisher struct {
	store     *Store
	notifier  Notifier
	log       *logger.Logger
	BatchSize int
}

// NewPublisher builds a Publisher.
func NewPublisher(store *Store, notifier Notifier, log *logger.Logger) *Publisher {
	return &Publisher{store: store, notifier: notifier, log: log, BatchSize: 50}
}

// Run polls for pending events every interval until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.PublishOnce(ctx); err != nil {
				p.log.Error("outbox publish sweep failed", "error", err)
			}
		}
	}
}

// PublishOnce delivers one batch of pending events, oldest first, each in
// its own goroutine so a single stuck delivery cannot stall the batch.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	events, err := p.store.GetPending(ctx, p.BatchSize)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	done := make(chan struct{}, len(events))
	for _, event := range events {
		event := event
		go func() {
			defer func() {
				if r := recover(); r != nil {
					p.log.Error("outbox delivery panic recovered", "panic", r, "eventId", event.ID)
				}
				done <- struct{}{}
			}()
			p.deliver(ctx, event)
		}()
	}
	for range events {
		<-done
	}
	return nil
}

func (p *Publisher) deliver(ctx context.Context, event domain.OutboxEvent) {
	d := Delivery{CaseID: event.CaseID, EventType: event.EventType, Payload: event.Payload}
	if err := p.notifier.Deliver(ctx, d); err != nil {
		p.log.Warn("outbox delivery failed, will retry next sweep", "error", err, "eventId", event.ID, "caseId", event.CaseID)
		if markErr := p.store.MarkFailed(ctx, event.ID); markErr != nil {
			p.log.Error("mark outbox event failed failed", "error", markErr, "eventId", event.ID)
		}
		return
	}
	if err := p.store.MarkProcessed(ctx, event.ID); err != nil {
		p.log.Error("mark outbox event processed failed", "error", err, "eventId", event.ID)
	}
}
