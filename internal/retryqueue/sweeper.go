package retryqueue

import (
	"context"
	"time"

	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
	domain "github.com/smilemakc/mbflow/pkg/models"
)

// Retrier re-invokes the failed outbound call a retry item represents.
// The accounting client's draft-creation path is the only caller today,
// but the seam is kept generic so other outbound calls can enqueue here
// too.
type Retrier interface {
	Retry(ctx context.Context, item domain.RetryItem) error
}

// EventEmitter is the outbox seam the sweeper uses to announce a
// retry-exhausted abandonment (spec §4.4, §7).
type EventEmitter interface {
	CreateEvent(ctx context.Context, eventType domain.OutboxEventType, caseID, payload string) (string, error)
}

// Sweeper is the single background process that drains ready retry items:
// sequential per case, parallel across cases, bounded by Concurrency
// (spec §4.4, §5 — default 10).
type Sweeper struct {
	queue       *Queue
	retrier     Retrier
	outbox      EventEmitter
	log         *logger.Logger
	Concurrency int
	BatchSize   int
	locks       *keyedLock
}

// NewSweeper wires a Sweeper from its dependencies.
func NewSweeper(queue *Queue, retrier Retrier, outbox EventEmitter, log *logger.Logger) *Sweeper {
	return &Sweeper{
		queue:       queue,
		retrier:     retrier,
		outbox:      outbox,
		log:         log,
		Concurrency: 10,
		BatchSize:   50,
		locks:       newKeyedLock(),
	}
}

// Run polls for ready items every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Error("retry sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce fetches one batch of ready items and processes each, fanned
// out across cases under a bounded semaphore while items of the same case
// serialize through the keyed lock.
func (s *Sweeper) SweepOnce(ctx context.Context) error {
	items, err := s.queue.GetReady(ctx, s.BatchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	sem := make(chan struct{}, s.Concurrency)
	done := make(chan struct{}, len(items))
	for _, item := range items {
		item := item
		sem <- struct{}{}
		go func() {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("retry sweeper panic recovered", "panic", r, "caseId", item.CaseID)
				}
			}()
			s.locks.With(item.CaseID, func() {
				s.process(ctx, item)
			})
		}()
	}
	for range items {
		<-done
	}
	return nil
}

func (s *Sweeper) process(ctx context.Context, item domain.RetryItem) {
	if err := s.queue.MarkInProgress(ctx, item.ID); err != nil {
		s.log.Error("mark retry item in-progress failed", "error", err, "retryId", item.ID)
		return
	}

	err := s.retrier.Retry(ctx, item)
	if err == nil {
		if markErr := s.queue.MarkSucceeded(ctx, item.ID); markErr != nil {
			s.log.Error("mark retry item succeeded failed", "error", markErr, "retryId", item.ID)
		}
		if _, evErr := s.outbox.CreateEvent(ctx, domain.OutboxEventCreated, item.CaseID, item.Payload); evErr != nil {
			s.log.Error("emit created event after retry success failed", "error", evErr, "caseId", item.CaseID)
		}
		return
	}

	if markErr := s.queue.MarkFailed(ctx, item.ID, err); markErr != nil {
		s.log.Error("mark retry item failed failed", "error", markErr, "retryId", item.ID)
		return
	}

	if item.AttemptCount+1 >= item.MaxRetries {
		if _, evErr := s.outbox.CreateEvent(ctx, domain.OutboxEventRetryExhausted, item.CaseID, item.Payload); evErr != nil {
			s.log.Error("emit retry-exhausted event failed", "error", evErr, "caseId", item.CaseID)
		}
	}
}
