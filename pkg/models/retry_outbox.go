package models

import "time"

// RetryStatus is the closed set of retry-item states.
type RetryStatus string

const (
	RetryStatusPending    RetryStatus = "pending"
	RetryStatusInProgress RetryStatus = "in-progress"
	RetryStatusSucceeded  RetryStatus = "succeeded"
	RetryStatusAbandoned  RetryStatus = "abandoned"
)

// RetryAttemptError is one entry of a RetryItem's error history.
type RetryAttemptError struct {
	AttemptedAt time.Time `json:"attemptedAt"`
	Message     string    `json:"message"`
}

// RetryItem is a persisted, backed-off retry of a failed outbound
// accounting-system call (spec §3, §4.4).
type RetryItem struct {
	ID           string              `json:"id"`
	CaseID       string              `json:"caseId"`
	Payload      string              `json:"payload"` // JSON-encoded request body
	Fingerprint  string              `json:"fingerprint"`
	AttemptCount int                 `json:"attemptCount"`
	MaxRetries   int                 `json:"maxRetries"`
	NextRetryAt  time.Time           `json:"nextRetryAt"`
	ErrorHistory []RetryAttemptError `json:"errorHistory,omitempty"`
	Status       RetryStatus         `json:"status"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// OutboxEventType is the closed set of outbox event kinds.
type OutboxEventType string

const (
	OutboxEventCreated        OutboxEventType = "created"
	OutboxEventFailed         OutboxEventType = "failed"
	OutboxEventRetryExhausted OutboxEventType = "retry-exhausted"
)

// OutboxStatus is the closed set of outbox-event delivery states.
type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// OutboxEvent is an append-only record guaranteeing at-least-once
// downstream delivery of a case-lifecycle event (spec §3, §4.4).
type OutboxEvent struct {
	ID           string          `json:"id"`
	CaseID       string          `json:"caseId"`
	EventType    OutboxEventType `json:"eventType"`
	Payload      string          `json:"payload"` // JSON-encoded
	CreatedAt    time.Time       `json:"createdAt"`
	ProcessedAt  *time.Time      `json:"processedAt,omitempty"`
	Status       OutboxStatus    `json:"status"`
	DeliveryTries int            `json:"deliveryTries"`
}
