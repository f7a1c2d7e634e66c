package entities

import (
	"errors"
	"fmt"
	"time"
)

// Error taxonomy of the execution engine. Every error produced by a step
// matches one of these with errors.Is.
var (
	ErrActionTimeout          = errors.New("action timeout")
	ErrActionTargetAmbiguous  = errors.New("action target ambiguous")
	ErrFileChooserNotConsumed = errors.New("file chooser not consumed")
	ErrConditionTimeout       = errors.New("condition timeout")
	ErrCollectionFailed       = errors.New("artifact collection failed")

	ErrActionFailed     = errors.New("action failed")
	ErrStepPanicked     = errors.New("step panicked")
	ErrDependencyFailed = errors.New("dependency did not pass")
	ErrReadOnly         = errors.New("workflow scenario skipped in read-only mode")
)

// Condition - observable element state awaited by the wait policy
type Condition string

const (
	ConditionVisible  Condition = "visible"
	ConditionHidden   Condition = "hidden"
	ConditionAttached Condition = "attached"
)

// ConditionTimeoutError is returned when a locator never reached the
// awaited state.
type ConditionTimeoutError struct {
	Locator      Locator
	Condition    Condition
	Timeout      time.Duration
	LastObserved ElementSnapshot
	LastErr      error
}

func (e *ConditionTimeoutError) Error() string {
	msg := fmt.Sprintf("%s: %s did not become %s within %s (last observed: %s)",
		ErrConditionTimeout, e.Locator, e.Condition, e.Timeout, e.LastObserved)
	if e.LastErr != nil {
		msg += fmt.Sprintf(", last probe error: %v", e.LastErr)
	}
	return msg
}

func (e *ConditionTimeoutError) Is(target error) bool {
	return target == ErrConditionTimeout
}

func (e *ConditionTimeoutError) Unwrap() error {
	return e.LastErr
}

// ActionError wraps a failure of a single primitive.
type ActionError struct {
	Kind    error
	Action  StepKind
	Locator string
	Err     error
}

func (e *ActionError) Error() string {
	target := ""
	if e.Locator != "" {
		target = " " + e.Locator
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s%s", e.Kind, e.Action, target)
	}
	return fmt.Sprintf("%s: %s%s: %v", e.Kind, e.Action, target, e.Err)
}

func (e *ActionError) Is(target error) bool {
	return target == e.Kind
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// CollectionError wraps a failure to capture a failure artifact.
type CollectionError struct {
	Scenario string
	Err      error
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("%s for %s: %v", ErrCollectionFailed, e.Scenario, e.Err)
}

func (e *CollectionError) Is(target error) bool {
	return target == ErrCollectionFailed
}

func (e *CollectionError) Unwrap() error {
	return e.Err
}
