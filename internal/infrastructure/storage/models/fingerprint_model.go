package models

import (
	"time"

	"github.com/uptrace/bun"
)

// FingerprintModel is the idempotency row for a draft-creation attempt
// (spec.md §4.3/§8). Hash carries a unique index so concurrent reserve
// attempts for the same order race safely: exactly one insert wins.
type FingerprintModel struct {
	bun.BaseModel `bun:"table:order_fingerprints,alias:fp"`

	Hash      string    `bun:"hash,pk" json:"hash"`
	CaseID    string    `bun:"case_id,notnull" json:"caseId"`
	Status    string    `bun:"status,notnull,default:'in-flight'" json:"status"`
	OrderID   string    `bun:"order_id" json:"orderId,omitempty"`
	OrderNo   string    `bun:"order_number" json:"orderNumber,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

func (FingerprintModel) TableName() string { return "order_fingerprints" }

func (f *FingerprintModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	return nil
}

func (f *FingerprintModel) BeforeUpdate(ctx interface{}) error {
	f.UpdatedAt = time.Now()
	return nil
}
