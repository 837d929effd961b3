package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RetryItemModel is a persisted backed-off retry of a failed outbound
// accounting call (spec.md §3, §4.4).
type RetryItemModel struct {
	bun.BaseModel `bun:"table:retry_items,alias:ri"`

	ID           uuid.UUID `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	CaseID       string    `bun:"case_id,notnull" json:"caseId"`
	Payload      string    `bun:"payload,notnull" json:"payload"`
	Fingerprint  string    `bun:"fingerprint,notnull" json:"fingerprint"`
	AttemptCount int       `bun:"attempt_count,notnull,default:0" json:"attemptCount"`
	MaxRetries   int       `bun:"max_retries,notnull,default:5" json:"maxRetries"`
	NextRetryAt  time.Time `bun:"next_retry_at,notnull" json:"nextRetryAt"`
	ErrorHistory RawJSON   `bun:"error_history,type:jsonb" json:"errorHistory,omitempty"`
	Status       string    `bun:"status,notnull,default:'pending'" json:"status"`
	CreatedAt    time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (RetryItemModel) TableName() string { return "retry_items" }

func (r *RetryItemModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

func (r *RetryItemModel) BeforeUpdate(ctx interface{}) error {
	r.UpdatedAt = time.Now()
	return nil
}

// OutboxEventModel is an append-only case-lifecycle event guaranteeing
// at-least-once downstream delivery (spec.md §3, §4.4).
type OutboxEventModel struct {
	bun.BaseModel `bun:"table:outbox_events,alias:ob"`

	ID            uuid.UUID  `bun:"id,pk,type:uuid,default:uuid_generate_v4()" json:"id"`
	CaseID        string     `bun:"case_id,notnull" json:"caseId"`
	EventType     string     `bun:"event_type,notnull" json:"eventType"`
	Payload       string     `bun:"payload,notnull" json:"payload"`
	Status        string     `bun:"status,notnull,default:'pending'" json:"status"`
	DeliveryTries int        `bun:"delivery_tries,notnull,default:0" json:"deliveryTries"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	ProcessedAt   *time.Time `bun:"processed_at" json:"processedAt,omitempty"`
}

func (OutboxEventModel) TableName() string { return "outbox_events" }

func (o *OutboxEventModel) BeforeInsert(ctx interface{}) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	return nil
}
