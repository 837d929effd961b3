package orderworkflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/smilemakc/mbflow/internal/accounting"
	"github.com/smilemakc/mbflow/internal/casestore"
	"github.com/smilemakc/mbflow/internal/committee"
	"github.com/smilemakc/mbflow/internal/notifier"
	"github.com/smilemakc/mbflow/internal/workflowengine"
	"github.com/smilemakc/mbflow/pkg/models"
)

// WorkflowTypeName is the name internal/workflowengine's registry and C8's
// start handler register/look up the saga under.
const WorkflowTypeName = "order-intake"

// Step names, matching spec.md §4.7's state machine verbatim.
const (
	StepStored                  = "stored"
	StepParsed                  = "parsed"
	StepAwaitingReupload         = "awaiting-reupload"
	StepCommitteeMapped          = "committee-mapped"
	StepAwaitingCorrections      = "awaiting-corrections"
	StepCustomerResolved         = "customer-resolved"
	StepAwaitingCustomerSelection = "awaiting-customer-selection"
	StepItemsResolved            = "items-resolved"
	StepAwaitingItemSelection     = "awaiting-item-selection"
	StepAwaitingApproval          = "awaiting-approval"
	StepCreateDraft               = "create-draft"
	StepNotified                  = "notified"
	StepCancelled                 = "cancelled"
	StepCompleted                 = "completed"
)

// Saga builds the "order-intake" workflowengine.WorkflowType from its
// Activities and the case store every step reads/writes case state
// through (spec.md §4.7, §9 "cyclic references" — the saga holds only
// caseId, never an embedded Case or Run).
type Saga struct {
	activities *Activities
	cases      *casestore.Store
}

// NewSaga builds a Saga and its registerable WorkflowType.
func NewSaga(activities *Activities, cases *casestore.Store) *Saga {
	return &Saga{activities: activities, cases: cases}
}

// WorkflowType returns the registry entry internal/workflowengine.Registry
// should Register at composition time.
func (s *Saga) WorkflowType() *workflowengine.WorkflowType {
	return &workflowengine.WorkflowType{
		Name:       WorkflowTypeName,
		StartStep:  StepStored,
		Compensate: s.compensate,
		Steps: map[string]workflowengine.StepFunc{
			StepStored:                    s.stepStored,
			StepParsed:                    s.stepParsed,
			StepAwaitingReupload:          s.stepAwaitingReupload,
			StepCommitteeMapped:           s.stepCommitteeMapped,
			StepAwaitingCorrections:       s.stepAwaitingCorrections,
			StepCustomerResolved:          s.stepCustomerResolved,
			StepAwaitingCustomerSelection: s.stepAwaitingCustomerSelection,
			StepItemsResolved:             s.stepItemsResolved,
			StepAwaitingItemSelection:     s.stepAwaitingItemSelection,
			StepAwaitingApproval:          s.stepAwaitingApproval,
			StepCreateDraft:               s.stepCreateDraft,
			StepNotified:                  s.stepNotified,
			StepCancelled:                 s.stepCancelled,
			StepCompleted:                 func(context.Context, *workflowengine.Run, json.RawMessage) (workflowengine.StepOutcome, error) { return workflowengine.Completed(), nil },
		},
		Queries: map[string]workflowengine.QueryFunc{
			"getCase": s.queryCase,
		},
	}
}

// decodeInput pulls StartInput fields out of a run's Input map (it is
// decoded once at "stored", the only step that needs it).
func (s *Saga) decodeInput(run *workflowengine.Run) (StartInput, error) {
	var in StartInput
	if err := decodeMap(run.Input, &in); err != nil {
		return StartInput{}, fmt.Errorf("decode start input: %w", err)
	}
	return in, nil
}

// stepStored runs the Store-file activity, persists the case's blob path,
// and advances to parsing.
func (s *Saga) stepStored(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}

	out, err := s.activities.storeFile.Execute(ctx, s.activities.log, storeFileInput{CaseID: in.CaseID, BlobURL: in.BlobURL})
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("store file: %w", err)
	}

	_, err = s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "file.stored", out.Path, func(c *models.Case) error {
		c.Source.BlobURL = out.Path
		c.Source.SHA256 = out.SHA256
		c.Status = models.CaseStatusProcessing
		return nil
	})
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("record stored file: %w", err)
	}

	in.SHA256 = out.SHA256
	if m, err := encodeMap(in); err == nil {
		run.Input = m
	}
	run.State["blobData"] = out.Data
	return workflowengine.Continue(StepParsed), nil
}

// stepParsed runs the Parse activity and branches on whether a blocker
// was found (spec.md §4.1 "any blocker returns immediately").
func (s *Saga) stepParsed(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}

	data, _ := run.State["blobData"].([]byte)
	out, err := s.activities.parse.Execute(ctx, s.activities.log, parseInput{
		CaseID: in.CaseID, Tenant: in.Tenant, Filename: in.Filename, SHA256: in.SHA256, Data: data,
	})
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("parse: %w", err)
	}

	c, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "order.parsed", "", func(c *models.Case) error {
		c.Order = out.Order
		c.Issues = out.Order.Issues
		if models.HasBlocker(out.Order.Issues) {
			c.Status = models.CaseStatusAwaitingInput
		}
		return nil
	})
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("record parsed order: %w", err)
	}

	delete(run.State, "blobData")
	if models.HasBlocker(c.Order.Issues) {
		return workflowengine.Continue(StepAwaitingReupload), nil
	}
	return workflowengine.Continue(StepCommitteeMapped), nil
}

// stepAwaitingReupload suspends on FileReuploaded and, once delivered,
// restarts the intake with the replacement blob (spec.md §4.7: "restarts
// the workflow with a new run preserving the same caseId" — modeled here
// as looping the same run back to "stored" since this engine has no
// separate run-restart primitive).
func (s *Saga) stepAwaitingReupload(ctx context.Context, run *workflowengine.Run, signal json.RawMessage) (workflowengine.StepOutcome, error) {
	if signal == nil {
		return workflowengine.AwaitSignal(SignalFileReuploaded), nil
	}
	var payload FileReuploadedPayload
	if err := decodeJSON(signal, &payload); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("decode FileReuploaded: %w", err)
	}

	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	in.BlobURL, in.Filename, in.SHA256 = payload.BlobURL, payload.Filename, payload.SHA256
	if m, err := encodeMap(in); err == nil {
		run.Input = m
	}

	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, in.Uploader, "file.reuploaded", payload.Filename, func(c *models.Case) error {
		c.Source.Filename = payload.Filename
		c.Source.SHA256 = payload.SHA256
		c.Status = models.CaseStatusProcessing
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("record reupload: %w", err)
	}

	return workflowengine.Continue(StepStored), nil
}

// columnSamplesFromOrder derives the committee's per-column evidence from
// the parsed order's schema inference and line-item evidence cells,
// grouping raw values by the spreadsheet column letter.
func columnSamplesFromOrder(order *models.CanonicalOrder) []committee.ColumnSample {
	samples := make(map[string][]string)
	for _, li := range order.LineItems {
		for _, ev := range li.Evidence {
			col := leadingColumnLetters(ev.Cell)
			if col == "" || len(samples[col]) >= 5 {
				continue
			}
			samples[col] = append(samples[col], ev.RawValue)
		}
	}

	out := make([]committee.ColumnSample, 0, len(order.SchemaInference.ColumnMappings))
	for _, m := range order.SchemaInference.ColumnMappings {
		out = append(out, committee.ColumnSample{
			Header:       m.SourceHeader,
			SourceColumn: m.SourceColumn,
			Samples:      samples[m.SourceColumn],
		})
	}
	return out
}

func leadingColumnLetters(cell string) string {
	var b strings.Builder
	for _, r := range cell {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			continue
		}
		break
	}
	return b.String()
}

// stepCommitteeMapped runs the (long-running, heartbeated) committee
// activity and branches on its consensus (spec.md §9 resolves split and
// no_consensus identically).
func (s *Saga) stepCommitteeMapped(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	c, err := s.cases.ReadAny(ctx, in.CaseID)
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("load case for committee mapping: %w", err)
	}

	out, err := s.activities.runCommittee.Execute(ctx, s.activities.log, runCommitteeInput{
		CaseID: in.CaseID, Columns: columnSamplesFromOrder(c.Order),
	})
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("run committee: %w", err)
	}

	if !out.Mapping.HasConsensus() {
		if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "committee.disagreement", strings.Join(out.Mapping.Disagreements, ","), func(c *models.Case) error {
			c.Status = models.CaseStatusAwaitingInput
			c.Issues = append(c.Issues, models.NewIssue(models.IssueCommitteeDisagreement, out.Mapping.Disagreements, nil))
			return nil
		}); err != nil {
			return workflowengine.StepOutcome{}, err
		}
		return workflowengine.Continue(StepAwaitingCorrections), nil
	}

	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "committee.mapped", "", func(c *models.Case) error {
		c.Order.SchemaInference.ColumnMappings = out.Mapping.Mappings
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}
	return workflowengine.Continue(StepCustomerResolved), nil
}

func (s *Saga) stepAwaitingCorrections(ctx context.Context, run *workflowengine.Run, signal json.RawMessage) (workflowengine.StepOutcome, error) {
	if signal == nil {
		return workflowengine.AwaitSignal(SignalCorrectionsSubmitted), nil
	}
	var payload CorrectionsSubmittedPayload
	if err := decodeJSON(signal, &payload); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("decode CorrectionsSubmitted: %w", err)
	}
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}

	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "human", "corrections.applied", "", func(c *models.Case) error {
		applyColumnCorrections(c.Order, payload.ColumnMappings)
		c.Status = models.CaseStatusProcessing
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}
	return workflowengine.Continue(StepCustomerResolved), nil
}

func applyColumnCorrections(order *models.CanonicalOrder, corrections []ColumnMappingCorrection) {
	byColumn := make(map[string]string, len(corrections))
	for _, c := range corrections {
		byColumn[c.SourceColumn] = c.TargetField
	}
	for i, m := range order.SchemaInference.ColumnMappings {
		if target, ok := byColumn[m.SourceColumn]; ok {
			order.SchemaInference.ColumnMappings[i].CanonicalField = target
			order.SchemaInference.ColumnMappings[i].Method = models.MethodManual
			order.SchemaInference.ColumnMappings[i].Confidence = 1.0
		}
	}
}

// stepCustomerResolved matches the extracted customer name against the
// cached customer catalog.
func (s *Saga) stepCustomerResolved(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	c, err := s.cases.ReadAny(ctx, in.CaseID)
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("load case for customer resolution: %w", err)
	}

	res, err := s.activities.resolveCustomer.Execute(ctx, s.activities.log, resolveCustomerInput{
		InputName: c.Order.Customer.InputName, Customers: s.activities.accounting.Customers.Entries(),
	})
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("resolve customer: %w", err)
	}

	resolved := res.ResolutionStatus == models.ResolutionResolved
	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "customer.resolution", res.Reason, func(c *models.Case) error {
		c.Order.Customer.ResolutionStatus = res.ResolutionStatus
		c.Order.Customer.ResolvedID = res.SelectedID
		if !resolved {
			c.Status = models.CaseStatusAwaitingInput
			code := models.IssueAmbiguousCustomer
			if res.ResolutionStatus == models.ResolutionNotFound {
				code = models.IssueCustomerNotFound
			}
			c.Issues = append(c.Issues, models.NewIssue(code, []string{"customer"}, nil))
		}
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}

	if !resolved {
		return workflowengine.Continue(StepAwaitingCustomerSelection), nil
	}
	return workflowengine.Continue(StepItemsResolved), nil
}

func (s *Saga) stepAwaitingCustomerSelection(ctx context.Context, run *workflowengine.Run, signal json.RawMessage) (workflowengine.StepOutcome, error) {
	if signal == nil {
		return workflowengine.AwaitSignal(SignalSelectionsSubmitted), nil
	}
	var payload SelectionsSubmittedPayload
	if err := decodeJSON(signal, &payload); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("decode SelectionsSubmitted: %w", err)
	}
	if payload.Customer == nil {
		// A selections signal that doesn't resolve what this state is
		// waiting on is a contract violation; drop-log and keep waiting.
		s.activities.log.Warn("selections signal without a customer selection dropped", "caseId", run.CaseID)
		return workflowengine.AwaitSignal(SignalSelectionsSubmitted), nil
	}

	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "human", "customer.selected", payload.Customer.ResolvedID, func(c *models.Case) error {
		c.Order.Customer.ResolutionStatus = models.ResolutionResolved
		c.Order.Customer.ResolvedID = payload.Customer.ResolvedID
		c.Status = models.CaseStatusProcessing
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}
	return workflowengine.Continue(StepItemsResolved), nil
}

// stepItemsResolved matches every line item's sku/gtin against the cached
// item catalog.
func (s *Saga) stepItemsResolved(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	c, err := s.cases.ReadAny(ctx, in.CaseID)
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("load case for item resolution: %w", err)
	}

	items := s.activities.accounting.Items.Entries()
	anyUnresolved := false
	var newIssues []models.Issue
	resolvedLines := make([]models.LineItem, len(c.Order.LineItems))
	copy(resolvedLines, c.Order.LineItems)
	for i, li := range resolvedLines {
		res, err := s.activities.resolveItem.Execute(ctx, s.activities.log, resolveItemInput{SKU: li.SKU, GTIN: li.GTIN, Name: li.ProductName, Items: items})
		if err != nil {
			return workflowengine.StepOutcome{}, fmt.Errorf("resolve item row %d: %w", li.RowIndex, err)
		}
		resolvedLines[i].ResolutionStatus = res.ResolutionStatus
		resolvedLines[i].ResolvedItemID = res.SelectedID
		if res.ResolutionStatus != models.ResolutionResolved {
			anyUnresolved = true
			code := models.IssueAmbiguousItem
			if res.ResolutionStatus == models.ResolutionNotFound {
				code = models.IssueItemNotFound
			}
			newIssues = append(newIssues, models.NewIssue(code, []string{fmt.Sprintf("lineItems[%d]", li.RowIndex)}, li.Evidence))
		}
	}

	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "items.resolution", "", func(c *models.Case) error {
		c.Order.LineItems = resolvedLines
		if anyUnresolved {
			c.Status = models.CaseStatusAwaitingInput
			c.Issues = append(c.Issues, newIssues...)
		}
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}

	if anyUnresolved {
		return workflowengine.Continue(StepAwaitingItemSelection), nil
	}
	return workflowengine.Continue(StepAwaitingApproval), nil
}

func (s *Saga) stepAwaitingItemSelection(ctx context.Context, run *workflowengine.Run, signal json.RawMessage) (workflowengine.StepOutcome, error) {
	if signal == nil {
		return workflowengine.AwaitSignal(SignalSelectionsSubmitted), nil
	}
	var payload SelectionsSubmittedPayload
	if err := decodeJSON(signal, &payload); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("decode SelectionsSubmitted: %w", err)
	}
	if len(payload.Items) == 0 {
		return workflowengine.AwaitSignal(SignalSelectionsSubmitted), nil
	}

	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}

	byRow := make(map[int]string, len(payload.Items))
	for _, sel := range payload.Items {
		byRow[sel.RowIndex] = sel.ResolvedID
	}

	var stillUnresolved bool
	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "human", "items.selected", "", func(c *models.Case) error {
		for i, li := range c.Order.LineItems {
			if id, ok := byRow[li.RowIndex]; ok {
				c.Order.LineItems[i].ResolvedItemID = id
				c.Order.LineItems[i].ResolutionStatus = models.ResolutionResolved
			}
			if c.Order.LineItems[i].ResolutionStatus != models.ResolutionResolved {
				stillUnresolved = true
			}
		}
		if !stillUnresolved {
			c.Status = models.CaseStatusProcessing
		}
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}

	if stillUnresolved {
		return workflowengine.AwaitSignal(SignalSelectionsSubmitted), nil
	}
	return workflowengine.Continue(StepAwaitingApproval), nil
}

// stepAwaitingApproval marks the case ready, notifies the user it needs
// review, and suspends for the human approve/reject decision.
func (s *Saga) stepAwaitingApproval(ctx context.Context, run *workflowengine.Run, signal json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}

	if signal == nil {
		c, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "case.ready", "", func(c *models.Case) error {
			c.Status = models.CaseStatusReady
			return nil
		})
		if err != nil {
			return workflowengine.StepOutcome{}, err
		}
		if _, err := s.activities.notifyUser.Execute(ctx, s.activities.log, notifyUserInput{Notification: notifier.Notification{
			CaseID: in.CaseID, ChatID: c.Source.ChatRef, Template: "order.ready_for_approval",
		}}); err != nil {
			s.activities.log.Warn("ready-for-approval notification failed", "error", err, "caseId", in.CaseID)
		}
		return workflowengine.AwaitSignal(SignalApprovalReceived), nil
	}

	var payload ApprovalReceivedPayload
	if err := decodeJSON(signal, &payload); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("decode ApprovalReceived: %w", err)
	}
	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, payload.Approver, "approval.received", payload.Comments, func(c *models.Case) error {
		if !payload.Approved {
			c.Status = models.CaseStatusCancelled
		}
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, err
	}
	if !payload.Approved {
		return workflowengine.Continue(StepCancelled), nil
	}
	return workflowengine.Continue(StepCreateDraft), nil
}

// stepCreateDraft builds the fingerprinted draft request from the
// approved order and delegates to the accounting client's idempotent
// creation path (spec.md §4.3).
func (s *Saga) stepCreateDraft(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	c, err := s.cases.ReadAny(ctx, in.CaseID)
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("load case for draft creation: %w", err)
	}

	req := buildDraftRequest(c.Order)
	out, err := s.activities.createDraft.Execute(ctx, s.activities.log, createDraftInput{CaseID: in.CaseID, Request: req})
	if err != nil {
		if _, uerr := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "draft.failed", err.Error(), func(c *models.Case) error {
			c.Status = models.CaseStatusFailed
			return nil
		}); uerr != nil {
			s.activities.log.Error("record draft failure failed", "error", uerr, "caseId", in.CaseID)
		}
		return workflowengine.StepOutcome{}, fmt.Errorf("create draft: %w", err)
	}

	run.State["draftOutcome"] = string(out.Outcome)
	run.State["draftOrderId"] = out.OrderID
	run.State["draftOrderNo"] = out.OrderNo

	status := models.CaseStatusDraftCreated
	if out.Outcome == accounting.DraftOutcomeQueued {
		status = models.CaseStatusReady
	}
	if _, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "draft."+string(out.Outcome), out.OrderID, func(c *models.Case) error {
		c.Status = status
		return nil
	}); err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("record draft outcome: %w", err)
	}

	return workflowengine.Continue(StepNotified), nil
}

// buildDraftRequest projects an approved order into the accounting
// client's draft request shape, computing its idempotency fingerprint
// over a day-granularity date bucket (spec.md §3 OrderFingerprint).
func buildDraftRequest(order *models.CanonicalOrder) accounting.DraftRequest {
	lines := make([]accounting.DraftLineItem, 0, len(order.LineItems))
	fpLines := make([]models.FingerprintLine, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		rate := parseFloatBestEffort(li.UnitPriceSource)
		lines = append(lines, accounting.DraftLineItem{ItemID: li.ResolvedItemID, Quantity: li.Quantity, Rate: rate})
		fpLines = append(fpLines, models.FingerprintLine{ItemID: li.ResolvedItemID, Quantity: li.Quantity, Rate: rate})
	}
	dateBucket := order.Meta.ReceivedAt.UTC().Format("2006-01-02")
	fingerprint := models.ComputeFingerprint(order.Customer.ResolvedID, fpLines, dateBucket)

	return accounting.DraftRequest{
		Fingerprint: fingerprint,
		CustomerID:  order.Customer.ResolvedID,
		LineItems:   lines,
		Meta:        map[string]string{"caseId": order.Meta.CaseID, "tenant": order.Meta.Tenant},
	}
}

func parseFloatBestEffort(s string) float64 {
	var f float64
	_, _ = fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f
}

// stepNotified delivers the terminal notification (draft created, or
// queued for later retry) and completes the run.
func (s *Saga) stepNotified(ctx context.Context, run *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	in, err := s.decodeInput(run)
	if err != nil {
		return workflowengine.StepOutcome{}, err
	}
	c, err := s.cases.ReadAny(ctx, in.CaseID)
	if err != nil {
		return workflowengine.StepOutcome{}, fmt.Errorf("load case for completion notice: %w", err)
	}

	template := "order.draft_created"
	outcome, _ := run.State["draftOutcome"].(string)
	params := map[string]string{}
	if outcome == string(accounting.DraftOutcomeQueued) {
		template = "order.draft_queued"
	} else {
		params["orderNo"], _ = run.State["draftOrderNo"].(string)
	}

	if _, err := s.activities.notifyUser.Execute(ctx, s.activities.log, notifyUserInput{Notification: notifier.Notification{
		CaseID: in.CaseID, ChatID: c.Source.ChatRef, Template: template, Params: params,
	}}); err != nil {
		s.activities.log.Warn("completion notification failed", "error", err, "caseId", in.CaseID)
	}
	return workflowengine.Continue(StepCompleted), nil
}

// stepCancelled is the terminal state reached from a rejected approval.
func (s *Saga) stepCancelled(_ context.Context, _ *workflowengine.Run, _ json.RawMessage) (workflowengine.StepOutcome, error) {
	return workflowengine.Cancelled("rejected by reviewer"), nil
}

// compensate runs when the engine cancels a run mid-flight: it marks the
// case cancelled and sends a best-effort "cancelled" notification. It does
// not read or clear the case's draft fingerprint.
func (s *Saga) compensate(ctx context.Context, run *workflowengine.Run) error {
	in, err := s.decodeInput(run)
	if err != nil {
		return err
	}
	c, err := s.cases.Update(ctx, in.Tenant, in.CaseID, "workflow", "case.cancelled", run.CloseReason, func(c *models.Case) error {
		c.Status = models.CaseStatusCancelled
		return nil
	})
	if err != nil {
		return fmt.Errorf("mark case cancelled: %w", err)
	}
	if err := s.activities.notifier.Notify(ctx, notifier.Notification{
		CaseID: in.CaseID, ChatID: c.Source.ChatRef, Template: "order.cancelled", Params: map[string]string{"reason": run.CloseReason},
	}); err != nil {
		s.activities.log.Warn("cancellation notification failed", "error", err, "caseId", in.CaseID)
	}
	return nil
}

// queryCase answers the "getCase" query with the case's current public
// state, the shape C8's status surface exposes alongside the bare run
// thread.
func (s *Saga) queryCase(run *workflowengine.Run) (interface{}, error) {
	c, err := s.cases.ReadAny(context.Background(), run.CaseID)
	if err != nil {
		return nil, err
	}
	return c, nil
}
