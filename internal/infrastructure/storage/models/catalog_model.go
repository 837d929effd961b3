package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CatalogEntryModel persists a single customer/item catalog row for
// durability across restarts; the hot path reads from internal/accounting's
// in-process snapshot, not this table (spec.md §4.3).
type CatalogEntryModel struct {
	bun.BaseModel `bun:"table:catalog_entries,alias:ce"`

	ID             string    `bun:"id,pk" json:"id"`
	Kind           string    `bun:"kind,pk" json:"kind"`
	Name           string    `bun:"name,notnull" json:"name"`
	NormalizedName string    `bun:"normalized_name,notnull" json:"normalizedName"`
	SKU            string    `bun:"sku" json:"sku,omitempty"`
	GTIN           string    `bun:"gtin" json:"gtin,omitempty"`
	Rate           float64   `bun:"rate" json:"rate,omitempty"`
	LastRefreshed  time.Time `bun:"last_refreshed,notnull,default:current_timestamp" json:"lastRefreshed"`
}

func (CatalogEntryModel) TableName() string { return "catalog_entries" }

func (c *CatalogEntryModel) BeforeInsert(ctx interface{}) error {
	if c.LastRefreshed.IsZero() {
		c.LastRefreshed = time.Now()
	}
	return nil
}
