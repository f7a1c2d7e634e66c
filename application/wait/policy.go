// Package wait implements the polling condition evaluator shared by step
// synchronization and scenario assertions.
package wait

import (
	"context"
	"errors"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
)

// DefaultMaxInterval caps the delay between two probes
const DefaultMaxInterval = time.Second

var backoff = []time.Duration{
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
	time.Second,
}

// Policy polls a locator until it reaches a condition or the timeout elapses.
type Policy struct {
	maxInterval time.Duration
}

// NewPolicy - creates a policy; maxInterval <= 0 uses DefaultMaxInterval
func NewPolicy(maxInterval time.Duration) *Policy {
	if maxInterval <= 0 {
		maxInterval = DefaultMaxInterval
	}
	return &Policy{maxInterval: maxInterval}
}

// Satisfied reports whether snapshot meets cond
func Satisfied(cond entities.Condition, snapshot entities.ElementSnapshot) bool {
	switch cond {
	case entities.ConditionVisible:
		return snapshot.Visible > 0
	case entities.ConditionHidden:
		return snapshot.Visible == 0
	case entities.ConditionAttached:
		return snapshot.Count > 0
	default:
		return false
	}
}

// Await returns nil on the first probe that satisfies cond. Otherwise it
// returns *entities.ConditionTimeoutError carrying the last observed state.
func (p *Policy) Await(ctx context.Context, page interfaces.Page, locator entities.Locator, cond entities.Condition, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	probeCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	var (
		last    entities.ElementSnapshot
		lastErr error
	)
	timedOut := func() *entities.ConditionTimeoutError {
		return &entities.ConditionTimeoutError{
			Locator:      locator,
			Condition:    cond,
			Timeout:      timeout,
			LastObserved: last,
			LastErr:      lastErr,
		}
	}

	for attempt := 0; ; attempt++ {
		snapshot, err := page.Probe(probeCtx, locator)
		if err == nil {
			last, lastErr = snapshot, nil
			if Satisfied(cond, snapshot) {
				return nil
			}
		} else if !errors.Is(err, context.DeadlineExceeded) {
			lastErr = err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return timedOut()
		}

		delay := p.interval(attempt)
		if delay > remaining {
			delay = remaining
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(timedOut(), ctx.Err())
		case <-timer.C:
		}
	}
}

func (p *Policy) interval(attempt int) time.Duration {
	d := backoff[len(backoff)-1]
	if attempt < len(backoff) {
		d = backoff[attempt]
	}
	if d > p.maxInterval {
		d = p.maxInterval
	}
	return d
}
