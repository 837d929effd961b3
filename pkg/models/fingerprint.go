package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// FingerprintStatus is the closed set of draft-attempt idempotency states.
type FingerprintStatus string

const (
	FingerprintInFlight FingerprintStatus = "in-flight"
	FingerprintCreated  FingerprintStatus = "created"
	FingerprintFailed   FingerprintStatus = "failed"
)

// FingerprintLine is one normalized line item contributing to a fingerprint.
type FingerprintLine struct {
	ItemID   string
	Quantity float64
	Rate     float64
}

// OrderFingerprint is the idempotency row keyed by a deterministic hash of
// (customerId, sorted lines, dateBucket). It uniquely identifies a
// semantically equivalent order.
type OrderFingerprint struct {
	Hash      string            `json:"hash"`
	CaseID    string            `json:"caseId"`
	Status    FingerprintStatus `json:"status"`
	OrderID   string            `json:"orderId,omitempty"`
	OrderNo   string            `json:"orderNumber,omitempty"`
}

// ComputeFingerprint hashes customerID, the sorted line items, and a
// date bucket (e.g. "2026-07-30") into a stable hex digest. Permuting
// lineItems never changes the result; changing any field of any line, the
// customer, or the date bucket does (spec §8 fingerprint-stability
// property).
func ComputeFingerprint(customerID string, lines []FingerprintLine, dateBucket string) string {
	sorted := make([]FingerprintLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].ItemID != sorted[j].ItemID {
			return sorted[i].ItemID < sorted[j].ItemID
		}
		if sorted[i].Quantity != sorted[j].Quantity {
			return sorted[i].Quantity < sorted[j].Quantity
		}
		return sorted[i].Rate < sorted[j].Rate
	})

	var b strings.Builder
	b.WriteString(customerID)
	b.WriteByte('|')
	for _, l := range sorted {
		fmt.Fprintf(&b, "%s:%.4f:%.4f;", l.ItemID, l.Quantity, l.Rate)
	}
	b.WriteByte('|')
	b.WriteString(dateBucket)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
