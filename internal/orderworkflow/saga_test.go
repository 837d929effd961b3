package orderworkflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smilemakc/mbflow/pkg/models"
)

func TestColumnSamplesFromOrder(t *testing.T) {
	order := &models.CanonicalOrder{
		LineItems: []models.LineItem{
			{Evidence: []models.EvidenceCell{{Cell: "C14", RawValue: "10"}}},
			{Evidence: []models.EvidenceCell{{Cell: "C15", RawValue: "20"}}},
			{Evidence: []models.EvidenceCell{{Cell: "D9", RawValue: "widget"}}},
		},
		SchemaInference: models.SchemaInference{
			ColumnMappings: []models.ColumnMapping{
				{SourceHeader: "Qty", SourceColumn: "C"},
				{SourceHeader: "Item", SourceColumn: "D"},
				{SourceHeader: "Unused", SourceColumn: "E"},
			},
		},
	}

	samples := columnSamplesFromOrder(order)

	require.Len(t, samples, 3)
	assert.Equal(t, "C", samples[0].SourceColumn)
	assert.Equal(t, []string{"10", "20"}, samples[0].Samples)
	assert.Equal(t, "D", samples[1].SourceColumn)
	assert.Equal(t, []string{"widget"}, samples[1].Samples)
	assert.Equal(t, "E", samples[2].SourceColumn)
	assert.Empty(t, samples[2].Samples)
}

func TestColumnSamplesFromOrder_CapsAtFiveSamples(t *testing.T) {
	order := &models.CanonicalOrder{
		SchemaInference: models.SchemaInference{
			ColumnMappings: []models.ColumnMapping{{SourceHeader: "Qty", SourceColumn: "C"}},
		},
	}
	for i := 0; i < 10; i++ {
		order.LineItems = append(order.LineItems, models.LineItem{
			Evidence: []models.EvidenceCell{{Cell: "C1", RawValue: "x"}},
		})
	}

	samples := columnSamplesFromOrder(order)
	require.Len(t, samples, 1)
	assert.Len(t, samples[0].Samples, 5)
}

func TestLeadingColumnLetters(t *testing.T) {
	cases := map[string]string{
		"C14":  "C",
		"AB99": "AB",
		"":     "",
		"14":   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, leadingColumnLetters(in), "input %q", in)
	}
}

func TestApplyColumnCorrections(t *testing.T) {
	order := &models.CanonicalOrder{
		SchemaInference: models.SchemaInference{
			ColumnMappings: []models.ColumnMapping{
				{SourceColumn: "C", CanonicalField: "quantity", Method: models.MethodFuzzy, Confidence: 0.4},
				{SourceColumn: "D", CanonicalField: "productName", Method: models.MethodLLM, Confidence: 0.6},
			},
		},
	}

	applyColumnCorrections(order, []ColumnMappingCorrection{
		{SourceColumn: "D", TargetField: "sku"},
	})

	assert.Equal(t, "quantity", order.SchemaInference.ColumnMappings[0].CanonicalField)
	assert.Equal(t, models.MethodFuzzy, order.SchemaInference.ColumnMappings[0].Method)

	assert.Equal(t, "sku", order.SchemaInference.ColumnMappings[1].CanonicalField)
	assert.Equal(t, models.MethodManual, order.SchemaInference.ColumnMappings[1].Method)
	assert.Equal(t, 1.0, order.SchemaInference.ColumnMappings[1].Confidence)
}

func TestBuildDraftRequest(t *testing.T) {
	received := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	order := &models.CanonicalOrder{
		Meta: models.OrderMeta{CaseID: "case-1", Tenant: "tenant-1", ReceivedAt: received},
		Customer: models.CustomerRef{ResolvedID: "cust-1"},
		LineItems: []models.LineItem{
			{ResolvedItemID: "item-1", Quantity: 2, UnitPriceSource: "19.99"},
			{ResolvedItemID: "item-2", Quantity: 1, UnitPriceSource: "5"},
		},
	}

	req := buildDraftRequest(order)

	assert.Equal(t, "cust-1", req.CustomerID)
	require.Len(t, req.LineItems, 2)
	assert.Equal(t, "item-1", req.LineItems[0].ItemID)
	assert.InDelta(t, 19.99, req.LineItems[0].Rate, 0.001)
	assert.Equal(t, "case-1", req.Meta["caseId"])
	assert.Equal(t, "tenant-1", req.Meta["tenant"])

	wantFP := models.ComputeFingerprint("cust-1", []models.FingerprintLine{
		{ItemID: "item-1", Quantity: 2, Rate: 19.99},
		{ItemID: "item-2", Quantity: 1, Rate: 5},
	}, "2026-07-30")
	assert.Equal(t, wantFP, req.Fingerprint)
}

func TestBuildDraftRequest_FingerprintStableUnderLineReordering(t *testing.T) {
	order := func(lines []models.LineItem) *models.CanonicalOrder {
		return &models.CanonicalOrder{
			Meta:      models.OrderMeta{ReceivedAt: time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)},
			Customer:  models.CustomerRef{ResolvedID: "cust-1"},
			LineItems: lines,
		}
	}
	a := order([]models.LineItem{
		{ResolvedItemID: "item-1", Quantity: 2, UnitPriceSource: "10"},
		{ResolvedItemID: "item-2", Quantity: 1, UnitPriceSource: "5"},
	})
	b := order([]models.LineItem{
		{ResolvedItemID: "item-2", Quantity: 1, UnitPriceSource: "5"},
		{ResolvedItemID: "item-1", Quantity: 2, UnitPriceSource: "10"},
	})

	assert.Equal(t, buildDraftRequest(a).Fingerprint, buildDraftRequest(b).Fingerprint)
}

func TestParseFloatBestEffort(t *testing.T) {
	assert.InDelta(t, 19.99, parseFloatBestEffort("19.99"), 0.001)
	assert.InDelta(t, 19.99, parseFloatBestEffort("  19.99  "), 0.001)
	assert.Equal(t, 0.0, parseFloatBestEffort("not-a-number"))
	assert.Equal(t, 0.0, parseFloatBestEffort(""))
}

func TestDecodeJSONAndEncodeMapRoundTrip(t *testing.T) {
	in := StartInput{CaseID: "case-1", Tenant: "tenant-1", BlobURL: "https://example.com/a.xlsx"}
	m, err := encodeMap(in)
	require.NoError(t, err)

	var out StartInput
	require.NoError(t, decodeMap(m, &out))
	assert.Equal(t, in, out)
}

func TestDecodeJSON_EmptyPayloadRejected(t *testing.T) {
	var payload ApprovalReceivedPayload
	err := decodeJSON(nil, &payload)
	assert.Error(t, err)
}
