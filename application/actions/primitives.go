// Package actions wraps browser page calls into uniform, bounded primitives.
package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ui_verification/application/wait"
	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// Primitives performs single browser actions on one page
type Primitives struct {
	page   interfaces.Page
	waiter *wait.Policy
	logger *logrus.Entry
}

// NewPrimitives - creates primitives bound to page
func NewPrimitives(page interfaces.Page, waiter *wait.Policy, logger *logrus.Entry) *Primitives {
	return &Primitives{
		page:   page,
		waiter: waiter,
		logger: logger,
	}
}

// Navigate - opens url within timeout
func (p *Primitives) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.logger.Debugf("Navigating to: %s", url)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.page.Goto(ctx, url, timeout); err != nil {
		return classify(entities.StepNavigate, url, err)
	}
	return nil
}

// Fill - replaces the value of the single input matching target
func (p *Primitives) Fill(ctx context.Context, target entities.Locator, value string, timeout time.Duration) error {
	p.logger.Debugf("Filling: %s", target)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	budget, err := p.resolveSingle(ctx, entities.StepFill, target, timeout)
	if err != nil {
		return err
	}
	if err := p.page.Fill(ctx, target, value, budget); err != nil {
		return classify(entities.StepFill, target.String(), err)
	}
	return nil
}

// Click - clicks the single element matching target
func (p *Primitives) Click(ctx context.Context, target entities.Locator, timeout time.Duration) error {
	p.logger.Debugf("Clicking on: %s", target)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	budget, err := p.resolveSingle(ctx, entities.StepClick, target, timeout)
	if err != nil {
		return err
	}
	if err := p.page.Click(ctx, target, budget); err != nil {
		return classify(entities.StepClick, target.String(), err)
	}
	return nil
}

// Upload opens a file chooser through trigger and hands it path.
// The chooser handle must be consumed exactly once.
func (p *Primitives) Upload(ctx context.Context, trigger entities.Locator, path string, timeout time.Duration) error {
	p.logger.Debugf("Uploading %s via: %s", path, trigger)

	if _, err := os.Stat(path); err != nil {
		return &entities.ActionError{
			Kind:    entities.ErrActionFailed,
			Action:  entities.StepUpload,
			Locator: trigger.String(),
			Err:     fmt.Errorf("upload asset: %w", err),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	budget, err := p.resolveSingle(ctx, entities.StepUpload, trigger, timeout)
	if err != nil {
		return err
	}

	chooser, err := p.page.ChooseFile(ctx, trigger, budget)
	if err != nil {
		return classify(entities.StepUpload, trigger.String(), err)
	}

	handle := NewChooserHandle(chooser)
	consumeErr := handle.Consume(path)
	if verifyErr := handle.Verify(); verifyErr != nil {
		return &entities.ActionError{
			Kind:    entities.ErrFileChooserNotConsumed,
			Action:  entities.StepUpload,
			Locator: trigger.String(),
			Err:     errors.Join(consumeErr, verifyErr),
		}
	}
	return nil
}

// Screenshot - writes evidence of the current page to path within timeout
func (p *Primitives) Screenshot(ctx context.Context, path string, timeout time.Duration) error {
	p.logger.Debugf("Taking screenshot: %s", path)

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return &entities.ActionError{Kind: entities.ErrActionFailed, Action: entities.StepScreenshot, Err: err}
		}
	}
	if err := p.page.Screenshot(ctx, path); err != nil {
		return classify(entities.StepScreenshot, path, err)
	}
	return nil
}

// Await - exposes the wait policy for wait steps
func (p *Primitives) Await(ctx context.Context, target entities.Locator, cond entities.Condition, timeout time.Duration) error {
	p.logger.Debugf("Waiting for %s to be %s", target, cond)
	return p.waiter.Await(ctx, p.page, target, cond, timeout)
}

// resolveSingle waits until target has a visible match and checks that it is
// unambiguous. It returns the time left on ctx for the engine action; engines
// treat a zero timeout as unlimited, so an exhausted budget is a timeout here.
func (p *Primitives) resolveSingle(ctx context.Context, kind entities.StepKind, target entities.Locator, timeout time.Duration) (time.Duration, error) {
	started := time.Now()

	if err := p.waiter.Await(ctx, p.page, target, entities.ConditionVisible, timeout); err != nil {
		return 0, err
	}

	snapshot, err := p.page.Probe(ctx, target)
	if err != nil {
		return 0, classify(kind, target.String(), err)
	}
	if snapshot.Count > 1 && !target.First {
		return 0, &entities.ActionError{
			Kind:    entities.ErrActionTargetAmbiguous,
			Action:  kind,
			Locator: target.String(),
			Err:     fmt.Errorf("%d elements match", snapshot.Count),
		}
	}

	budget := timeout - time.Since(started)
	if deadline, ok := ctx.Deadline(); ok {
		budget = min(budget, time.Until(deadline))
	}
	if budget <= 0 {
		return 0, &entities.ActionError{
			Kind:    entities.ErrActionTimeout,
			Action:  kind,
			Locator: target.String(),
			Err:     fmt.Errorf("target resolved after %s, no time left", timeout),
		}
	}
	return budget, nil
}

// classify maps an engine error onto the primitive error taxonomy
func classify(kind entities.StepKind, target string, err error) error {
	var actionErr *entities.ActionError
	var condErr *entities.ConditionTimeoutError
	if errors.As(err, &actionErr) || errors.As(err, &condErr) {
		return err
	}

	code := entities.ErrActionFailed
	if errors.Is(err, entities.ErrActionTimeout) || errors.Is(err, context.DeadlineExceeded) {
		code = entities.ErrActionTimeout
	}
	return &entities.ActionError{
		Kind:    code,
		Action:  kind,
		Locator: target,
		Err:     err,
	}
}
