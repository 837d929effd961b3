package casestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domain "github.com/smilemakc/mbflow/pkg/models"
)

func orderForPatchTests() *domain.CanonicalOrder {
	return &domain.CanonicalOrder{
		Customer: domain.CustomerRef{
			InputName:        "Acme",
			ResolutionStatus: domain.ResolutionUnresolved,
		},
		LineItems: []domain.LineItem{
			{RowIndex: 0, SourceRowNumber: 2, SKU: "ABC", Quantity: 3},
		},
	}
}

func TestPathAllowed(t *testing.T) {
	assert.True(t, pathAllowed("/customer/resolvedId"))
	assert.True(t, pathAllowed("/lineItems/0/quantity"))
	assert.True(t, pathAllowed("/totals/subtotal"))
	assert.False(t, pathAllowed("/meta/sha256"))
	assert.False(t, pathAllowed("/schemaInference/headerRow"))
}

func TestApplyOrderPatch_RoundTrip(t *testing.T) {
	// spec §8: apply(p,v) ∘ apply(p,original(p)) yields the original.
	c := &domain.Case{Order: orderForPatchTests(), Status: domain.CaseStatusAwaitingInput}
	originalName := c.Order.Customer.InputName

	forward, err := DecodePatch([]PatchOp{{Op: "replace", Path: "/customer/inputName", Value: "Acme Co."}})
	require.NoError(t, err)
	require.NoError(t, applyOrderPatch(c, forward))
	assert.Equal(t, "Acme Co.", c.Order.Customer.InputName)

	backward, err := DecodePatch([]PatchOp{{Op: "replace", Path: "/customer/inputName", Value: originalName}})
	require.NoError(t, err)
	require.NoError(t, applyOrderPatch(c, backward))
	assert.Equal(t, originalName, c.Order.Customer.InputName)
}

func TestApplyOrderPatch_RejectsPathOutsideWhitelist(t *testing.T) {
	_, err := DecodePatch([]PatchOp{{Op: "replace", Path: "/meta/sha256", Value: "x"}})
	assert.ErrorIs(t, err, domain.ErrPatchPathNotAllowed)
}

func TestApplyOrderPatch_RevalidatesAndFlipsStatus(t *testing.T) {
	c := &domain.Case{Order: orderForPatchTests(), Status: domain.CaseStatusAwaitingInput}
	patch, err := DecodePatch([]PatchOp{{Op: "replace", Path: "/lineItems/0/quantity", Value: -5}})
	require.NoError(t, err)
	require.NoError(t, applyOrderPatch(c, patch))

	found := false
	for _, iss := range c.Order.Issues {
		if iss.Code == domain.IssueNegativeQuantity {
			found = true
		}
	}
	assert.True(t, found, "expected NEGATIVE_QUANTITY issue after patching quantity to -5")
	// Negative quantity is only a warning; no blocker/error means the case
	// should move out of awaiting-input back to ready.
	assert.Equal(t, domain.CaseStatusReady, c.Status)
}
