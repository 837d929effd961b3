package orderworkflow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smilemakc/mbflow/internal/accounting"
	"github.com/smilemakc/mbflow/internal/committee"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	"github.com/smilemakc/mbflow/internal/infrastructure/tracing"
	"github.com/smilemakc/mbflow/internal/matcher"
	"github.com/smilemakc/mbflow/internal/notifier"
	"github.com/smilemakc/mbflow/internal/parser"
	"github.com/smilemakc/mbflow/internal/workflowengine"
	"github.com/smilemakc/mbflow/pkg/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Config bounds the activities' behavior, sourced from
// config.OrderProcessingConfig.
type Config struct {
	MaxUploadMB  int64
	MaxParseRows int
	ParserVersion string
}

// Activities wires every typed workflowengine.Activity the saga's
// StepFuncs invoke, each instance fixed at construction time so the
// registry-visible step machine never does string-keyed dynamic dispatch
// (SPEC_FULL.md REDESIGN FLAGS).
type Activities struct {
	storeFile      workflowengine.Activity[storeFileInput, storeFileOutput]
	parse          workflowengine.Activity[parseInput, parseOutput]
	runCommittee   workflowengine.Activity[runCommitteeInput, runCommitteeOutput]
	resolveCustomer workflowengine.Activity[resolveCustomerInput, matcher.Result]
	resolveItem    workflowengine.Activity[resolveItemInput, matcher.Result]
	createDraft    workflowengine.Activity[createDraftInput, accounting.DraftResult]
	notifyUser     workflowengine.Activity[notifyUserInput, struct{}]

	parser     *parser.Parser
	committee  *committee.Client
	accounting *accounting.Client
	notifier   *notifier.Client
	blobs      *Blobs
	fingerprints accounting.FingerprintStore
	retryQueue   accounting.RetryEnqueuer
	outbox       accounting.OutboxEmitter
	log        *logger.Logger
	httpClient *http.Client
	config     Config
}

// NewActivities builds the saga's activity set from its external
// collaborators.
func NewActivities(
	p *parser.Parser,
	committeeClient *committee.Client,
	accountingClient *accounting.Client,
	notifierClient *notifier.Client,
	blobs *Blobs,
	fingerprints accounting.FingerprintStore,
	retryQueue accounting.RetryEnqueuer,
	outbox accounting.OutboxEmitter,
	log *logger.Logger,
	cfg Config,
) *Activities {
	a := &Activities{
		parser:       p,
		committee:    committeeClient,
		accounting:   accountingClient,
		notifier:     notifierClient,
		blobs:        blobs,
		fingerprints: fingerprints,
		retryQueue:   retryQueue,
		outbox:       outbox,
		log:          log,
		httpClient:   &http.Client{Timeout: 2 * time.Minute},
		config:       cfg,
	}

	a.storeFile = workflowengine.Activity[storeFileInput, storeFileOutput]{
		Name:   "StoreFile",
		Policy: workflowengine.StoreFilePolicy,
		Run:    a.storeFileRun,
	}
	a.parse = workflowengine.Activity[parseInput, parseOutput]{
		Name:   "Parse",
		Policy: workflowengine.ParsePolicy,
		Run:    a.parseRun,
	}
	a.runCommittee = workflowengine.Activity[runCommitteeInput, runCommitteeOutput]{
		Name:      "RunCommittee",
		Policy:    workflowengine.RunCommitteePolicy,
		Heartbeat: true,
		Run:       a.runCommitteeRun,
	}
	a.resolveCustomer = workflowengine.Activity[resolveCustomerInput, matcher.Result]{
		Name:   "ResolveCustomer",
		Policy: workflowengine.ResolvePolicy,
		Run:    a.resolveCustomerRun,
	}
	a.resolveItem = workflowengine.Activity[resolveItemInput, matcher.Result]{
		Name:   "ResolveItem",
		Policy: workflowengine.ResolvePolicy,
		Run:    a.resolveItemRun,
	}
	a.createDraft = workflowengine.Activity[createDraftInput, accounting.DraftResult]{
		Name:   "CreateDraft",
		Policy: workflowengine.CreateDraftPolicy,
		Run:    a.createDraftRun,
	}
	a.notifyUser = workflowengine.Activity[notifyUserInput, struct{}]{
		Name:      "NotifyUser",
		Policy:    workflowengine.NotifyUserPolicy,
		Heartbeat: true,
		Run:       a.notifyUserRun,
	}
	return a
}

// storeFileInput/Output back the "Store file" activity: it fetches the
// source blob from wherever the caller uploaded it and persists it under
// the case's deterministic storage key.
type storeFileInput struct {
	CaseID  string
	BlobURL string
}

type storeFileOutput struct {
	Data   []byte
	Path   string
	SHA256 string
}

func (a *Activities) storeFileRun(ctx context.Context, in storeFileInput, _ func()) (storeFileOutput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.BlobURL, nil)
	if err != nil {
		return storeFileOutput{}, fmt.Errorf("build blob fetch request: %w", err)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return storeFileOutput{}, fmt.Errorf("fetch source blob: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return storeFileOutput{}, fmt.Errorf("blob fetch returned status %d", resp.StatusCode)
	}

	limit := a.config.MaxUploadMB * 1024 * 1024
	if limit <= 0 {
		limit = 10 * 1024 * 1024
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return storeFileOutput{}, fmt.Errorf("read source blob: %w", err)
	}
	if int64(len(data)) > limit {
		return storeFileOutput{}, fmt.Errorf("source blob exceeds %d MB limit", a.config.MaxUploadMB)
	}

	path, err := a.blobs.Store(ctx, in.CaseID, data)
	if err != nil {
		return storeFileOutput{}, err
	}
	sum := sha256.Sum256(data)
	return storeFileOutput{Data: data, Path: path, SHA256: hex.EncodeToString(sum[:])}, nil
}

// parseInput/Output back the Parse activity, wrapping internal/parser.
type parseInput struct {
	CaseID   string
	Tenant   string
	Filename string
	SHA256   string
	Data     []byte
}

type parseOutput struct {
	Order *models.CanonicalOrder
}

func (a *Activities) parseRun(_ context.Context, in parseInput, _ func()) (parseOutput, error) {
	meta := parser.CaseMeta{CaseID: in.CaseID, Tenant: in.Tenant, Filename: in.Filename, SHA256: in.SHA256}
	opts := parser.Options{MaxRows: a.config.MaxParseRows, ParserVersion: a.config.ParserVersion}
	order, err := a.parser.Parse(meta, in.Data, opts)
	if err != nil {
		return parseOutput{}, fmt.Errorf("parse source file: %w", err)
	}
	return parseOutput{Order: order}, nil
}

// runCommitteeInput/Output back the RunCommittee activity, wrapping
// internal/committee. It carries the LLM-backed consensus call spec.md
// §5 flags as needing a heartbeat.
type runCommitteeInput struct {
	CaseID  string
	Columns []committee.ColumnSample
}

type runCommitteeOutput struct {
	Mapping *committee.MapResponse
}

func (a *Activities) runCommitteeRun(ctx context.Context, in runCommitteeInput, _ func()) (runCommitteeOutput, error) {
	ctx, span := tracing.StartSpan(ctx, "committee.map", trace.WithAttributes(
		attribute.String("case.id", in.CaseID),
		attribute.Int("columns", len(in.Columns)),
	))
	defer span.End()

	resp, err := a.committee.Map(ctx, committee.MapRequest{CaseID: in.CaseID, Columns: in.Columns})
	if err != nil {
		tracing.RecordError(ctx, err)
		return runCommitteeOutput{}, err
	}
	return runCommitteeOutput{Mapping: resp}, nil
}

// resolveCustomerInput backs the ResolveCustomer activity, wrapping
// internal/matcher against the accounting client's cached customer
// catalog.
type resolveCustomerInput struct {
	InputName string
	Customers []models.CatalogEntry
}

func (a *Activities) resolveCustomerRun(_ context.Context, in resolveCustomerInput, _ func()) (matcher.Result, error) {
	return matcher.MatchCustomer(in.InputName, in.Customers), nil
}

// resolveItemInput backs the ResolveItem activity, wrapping
// internal/matcher against the accounting client's cached item catalog.
type resolveItemInput struct {
	SKU   string
	GTIN  string
	Name  string
	Items []models.CatalogEntry
}

func (a *Activities) resolveItemRun(_ context.Context, in resolveItemInput, _ func()) (matcher.Result, error) {
	return matcher.MatchItem(in.SKU, in.GTIN, in.Name, in.Items), nil
}

// createDraftInput backs the CreateDraft activity, delegating to
// accounting.Client.CreateDraftIdempotent which owns its own
// fingerprint/retry-queue idempotency machinery (spec.md §4.3); the
// engine-level retry policy is therefore a single attempt.
type createDraftInput struct {
	CaseID  string
	Request accounting.DraftRequest
}

func (a *Activities) createDraftRun(ctx context.Context, in createDraftInput, _ func()) (accounting.DraftResult, error) {
	ctx, span := tracing.StartSpan(ctx, "accounting.create_draft", trace.WithAttributes(
		attribute.String("case.id", in.CaseID),
	))
	defer span.End()

	result, err := a.accounting.CreateDraftIdempotent(ctx, in.CaseID, in.Request, a.fingerprints, a.retryQueue, a.outbox)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return result, err
}

// notifyUserInput backs the NotifyUser activity, wrapping
// internal/notifier.
type notifyUserInput struct {
	Notification notifier.Notification
}

func (a *Activities) notifyUserRun(ctx context.Context, in notifyUserInput, _ func()) (struct{}, error) {
	return struct{}{}, a.notifier.Notify(ctx, in.Notification)
}
