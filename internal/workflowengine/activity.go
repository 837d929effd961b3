package workflowengine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/smilemakc/mbflow/internal/infrastructure/logger"
)

// Policy is an activity's retry schedule, generalized from
// pkg/engine/retry_policy.go's InternalRetryPolicy down to the fixed
// exponential-backoff shape spec.md §4.7's activity table actually uses
// (attempts / initial delay / multiplier / cap).
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration // zero means uncapped
}

func (p Policy) delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// Per-activity retry policies, spec.md §4.7's activity table.
var (
	StoreFilePolicy    = Policy{MaxAttempts: 3, InitialDelay: 5 * time.Second, Multiplier: 2, MaxDelay: time.Minute}
	ParsePolicy        = Policy{MaxAttempts: 3, InitialDelay: 5 * time.Second, Multiplier: 2, MaxDelay: time.Minute}
	RunCommitteePolicy = Policy{MaxAttempts: 5, InitialDelay: 5 * time.Second, Multiplier: 2}
	ResolvePolicy      = Policy{MaxAttempts: 3, InitialDelay: 5 * time.Second, Multiplier: 2, MaxDelay: time.Minute}
	CreateDraftPolicy  = Policy{MaxAttempts: 1}
	NotifyUserPolicy   = Policy{MaxAttempts: 10, InitialDelay: 10 * time.Second, Multiplier: 1.5, MaxDelay: 5 * time.Minute}
)

// heartbeatTimeout is the cutoff at which a long-running activity that
// stops calling its heartbeat func is considered stuck (spec.md §5:
// activities running past 60s should heartbeat; 5 minutes without one
// aborts the attempt).
const heartbeatTimeout = 5 * time.Minute

// Activity wraps one unit of workflow work (Store file, Parse, Run
// committee, Resolve customer/items, Create draft, Notify user) with the
// retry-with-backoff loop grounded on pkg/engine/retry_policy.go's
// InternalRetryPolicy.Execute, plus an optional heartbeat watchdog for
// activities expected to run past a minute.
type Activity[In, Out any] struct {
	Name      string
	Policy    Policy
	Heartbeat bool
	Run       func(ctx context.Context, in In, heartbeat func()) (Out, error)
}

// Execute runs the activity to completion or exhausts its retry policy.
func (a Activity[In, Out]) Execute(ctx context.Context, log *logger.Logger, in In) (Out, error) {
	var zero Out
	var lastErr error

	attempts := a.Policy.attempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		out, err := a.runOnce(ctx, in)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if attempt >= attempts {
			break
		}
		if log != nil {
			log.Warn("activity attempt failed, retrying",
				"activity", a.Name, "attempt", attempt, "maxAttempts", attempts, "error", err)
		}
		delay := a.Policy.delay(attempt)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, fmt.Errorf("activity %s failed after %d attempt(s): %w", a.Name, attempts, lastErr)
}

func (a Activity[In, Out]) runOnce(ctx context.Context, in In) (Out, error) {
	if !a.Heartbeat {
		return a.Run(ctx, in, func() {})
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	lastBeat := time.Now()
	beat := func() {
		mu.Lock()
		lastBeat = time.Now()
		mu.Unlock()
	}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				mu.Lock()
				stale := time.Since(lastBeat) > heartbeatTimeout
				mu.Unlock()
				if stale {
					cancel()
					return
				}
			}
		}
	}()

	return a.Run(runCtx, in, beat)
}
