package workflowengine

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	domain "github.com/smilemakc/mbflow/pkg/models"
	"github.com/uptrace/bun"
)

// Escalation tiers for an awaiting-* run (spec.md §4.7 "Timers and
// escalation"): 0 = no timer fired yet, 1 = reminder sent, 2 = escalation
// notice sent (to the case's own chat with the escalation template; there
// is no separate manager channel), 3 = max wait exceeded and the run was
// failed.
const (
	EscalationTierNone = iota
	EscalationTierReminder
	EscalationTierEscalated
	EscalationTierTimedOut
)

// HumanResponseTimeout is the close reason recorded when a run exceeds
// its maximum wait without a human response (spec.md §4.7).
const HumanResponseTimeout = "HUMAN_RESPONSE_TIMEOUT"

// EscalationEvent describes one reminder/escalation/timeout notification
// the sweeper wants delivered to a case's channel.
type EscalationEvent struct {
	CaseID     string
	WorkflowID string
	AwaitStep  string
	Tier       int
}

// EscalationNotifier delivers escalation events (internal/notifier's
// EscalationAdapter implements this on top of the bot service's HTTP
// client, spec.md's C5 contract).
type EscalationNotifier interface {
	Notify(ctx context.Context, event EscalationEvent) error
}

// EscalationConfig holds the three timeout thresholds, sourced from
// internal/config.OrderProcessingConfig.
type EscalationConfig struct {
	ReminderAfter time.Duration
	EscalateAfter time.Duration
	MaxWait       time.Duration
}

// EscalationSweeper is the cross-cutting timer that watches every
// awaiting-* run and fires reminder/escalation/timeout transitions,
// generalized from the teacher's cron-based trigger scheduler
// (internal/application/trigger/cron_scheduler.go) to a fixed-interval
// sweep instead of per-workflow schedules.
type EscalationSweeper struct {
	store    *store
	notifier EscalationNotifier
	log      *logger.Logger
	config   EscalationConfig
	cron     *cron.Cron
}

// NewEscalationSweeper builds a sweeper over the same workflow_runs table
// the engine persists to.
func NewEscalationSweeper(db *bun.DB, notifier EscalationNotifier, log *logger.Logger, cfg EscalationConfig) *EscalationSweeper {
	return &EscalationSweeper{store: newStore(db), notifier: notifier, log: log, config: cfg}
}

// Start runs SweepOnce on a fixed interval until Stop is called.
func (s *EscalationSweeper) Start(interval time.Duration) {
	s.cron = cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	s.cron.Schedule(cron.ConstantDelaySchedule{Delay: interval}, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.SweepOnce(ctx); err != nil {
			s.log.Error("escalation sweep failed", "error", err)
		}
	}))
	s.cron.Start()
}

// Stop waits for any in-flight sweep to finish before returning.
func (s *EscalationSweeper) Stop() {
	if s.cron == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// SweepOnce inspects every awaiting run once and fires at most one tier
// transition per run (a run that has been idle long enough to skip a
// tier still only advances one step, so the next sweep catches the rest).
func (s *EscalationSweeper) SweepOnce(ctx context.Context) error {
	runs, err := s.store.listAwaiting(ctx)
	if err != nil {
		return fmt.Errorf("list awaiting runs: %w", err)
	}

	for _, run := range runs {
		if run.AwaitStartedAt == nil {
			continue
		}
		elapsed := time.Since(*run.AwaitStartedAt)

		var tier int
		switch {
		case elapsed >= s.config.MaxWait:
			tier = EscalationTierTimedOut
		case elapsed >= s.config.EscalateAfter:
			tier = EscalationTierEscalated
		case elapsed >= s.config.ReminderAfter:
			tier = EscalationTierReminder
		default:
			continue
		}
		if tier <= run.EscalationTier {
			continue
		}
		if tier > run.EscalationTier+1 {
			tier = run.EscalationTier + 1
		}

		if err := s.advanceTier(ctx, run, tier); err != nil {
			s.log.Error("escalation tier transition failed",
				"workflowId", run.WorkflowID, "tier", tier, "error", err)
		}
	}
	return nil
}

func (s *EscalationSweeper) advanceTier(ctx context.Context, run *Run, tier int) error {
	awaitStep := run.AwaitStep

	updated, err := s.store.mutate(ctx, run.WorkflowID, func(run *Run) error {
		if run.AwaitStep == "" || run.EscalationTier >= tier {
			return nil
		}
		run.EscalationTier = tier
		if tier == EscalationTierTimedOut {
			now := time.Now()
			run.Status = domain.RuntimeStatusFailed
			run.CloseReason = HumanResponseTimeout
			run.CloseTime = &now
			run.AwaitStep = ""
			run.AwaitSignals = nil
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.notifier == nil {
		return nil
	}
	return s.notifier.Notify(ctx, EscalationEvent{
		CaseID:     updated.CaseID,
		WorkflowID: updated.WorkflowID,
		AwaitStep:  awaitStep,
		Tier:       tier,
	})
}
