package casestore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/smilemakc/mbflow/internal/parser"
	domain "github.com/smilemakc/mbflow/pkg/models"
)

// editablePathPrefixes is the closed whitelist of JSON-pointer path
// prefixes applyPatch may touch on a CanonicalOrder (spec §4.5: "a
// whitelist of editable fields"). Paths outside this set are rejected
// with domain.ErrPatchPathNotAllowed before the patch is ever applied.
var editablePathPrefixes = []string{
	"/customer/inputName",
	"/customer/resolvedId",
	"/customer/resolutionStatus",
	"/lineItems",
	"/totals",
	"/schemaInference/columnMappings",
}

// pathAllowed reports whether a JSON-pointer path falls under one of the
// editable prefixes. A path is allowed if it equals a prefix or descends
// from it (e.g. "/lineItems/2/quantity" descends from "/lineItems").
func pathAllowed(path string) bool {
	for _, prefix := range editablePathPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return true
		}
	}
	return false
}

// PatchOp is one semantic-level RFC-6902 operation, constrained to the
// editable-path whitelist (spec §4.5: "applyPatch (jsonPointer operations)
// ... constrained to the documented editable fields").
type PatchOp struct {
	Op    string      `json:"op"` // add | replace | remove | test
	Path  string      `json:"path"`
	Value interface{} `json:"value,omitempty"`
}

// ApplyPatch validates every op's path against the whitelist, applies the
// patch to the case's canonical order via github.com/evanphx/json-patch,
// reruns the §4.1 step-7 validator (C5's "revalidate" operation), and
// persists the result transactionally with an audit record.
func (s *Store) ApplyPatch(ctx context.Context, tenant, caseID, actor string, ops []PatchOp) (*domain.Case, error) {
	patch, err := DecodePatch(ops)
	if err != nil {
		return nil, err
	}
	rawDiff, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("marshal patch ops: %w", err)
	}
	diff := string(rawDiff)

	return s.Update(ctx, tenant, caseID, actor, "case.patched", diff, func(c *domain.Case) error {
		return applyOrderPatch(c, patch)
	})
}

// applyOrderPatch applies a decoded json-patch to c.Order, revalidates,
// and derives the case's post-patch status. Factored out of ApplyPatch so
// it is testable without a database.
func applyOrderPatch(c *domain.Case, patch jsonpatch.Patch) error {
	if c.Order == nil {
		return fmt.Errorf("%w: case has no canonical order to patch", domain.ErrPatchPathNotAllowed)
	}
	orderJSON, err := json.Marshal(c.Order)
	if err != nil {
		return err
	}
	patched, err := patch.Apply(orderJSON)
	if err != nil {
		return fmt.Errorf("apply json patch: %w", err)
	}
	var order domain.CanonicalOrder
	if err := json.Unmarshal(patched, &order); err != nil {
		return fmt.Errorf("decode patched order: %w", err)
	}
	order.Issues = parser.Revalidate(&order)
	c.Order = &order
	c.Issues = order.Issues
	if domain.HasBlocker(order.Issues) || domain.HasUnresolvedError(order.Issues) {
		c.Status = domain.CaseStatusAwaitingInput
	} else if c.Status == domain.CaseStatusAwaitingInput {
		c.Status = domain.CaseStatusReady
	}
	return nil
}

// DecodePatch validates paths against the whitelist and decodes ops into
// an applyable jsonpatch.Patch, exposed for callers (and tests) that want
// to apply a patch without going through the Store.
func DecodePatch(ops []PatchOp) (jsonpatch.Patch, error) {
	for _, op := range ops {
		if !pathAllowed(op.Path) {
			return nil, fmt.Errorf("%w: %s", domain.ErrPatchPathNotAllowed, op.Path)
		}
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("marshal patch ops: %w", err)
	}
	return jsonpatch.DecodePatch(raw)
}
