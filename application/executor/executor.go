// Package executor runs a single scenario against its own browser session.
package executor

import (
	"context"
	"fmt"
	"time"

	"ui_verification/application/actions"
	"ui_verification/application/wait"
	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName     = "ui_verification/executor"
	collectTimeout = 15 * time.Second
)

type Executor struct {
	browser   interfaces.Browser
	collector interfaces.ArtifactCollector
	waiter    *wait.Policy
	logger    *logrus.Logger
	tracer    trace.Tracer
}

// NewExecutor - creates a scenario executor
func NewExecutor(browser interfaces.Browser, collector interfaces.ArtifactCollector, waiter *wait.Policy, logger *logrus.Logger) *Executor {
	return &Executor{
		browser:   browser,
		collector: collector,
		waiter:    waiter,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Run executes the scenario and never returns an error or panics: every
// failure becomes a Failed result. The browser session opened for the run is
// released exactly once on every path.
func (e *Executor) Run(ctx context.Context, scenario entities.Scenario) (result entities.ExecutionResult) {
	info := entities.RunInfo{
		Scenario:  scenario.Name,
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := e.logger.WithFields(logrus.Fields{
		"scenario": scenario.Name,
		"run_id":   info.RunID,
	})

	ctx, span := e.tracer.Start(ctx, "scenario "+scenario.Name, trace.WithAttributes(
		attribute.String("scenario.name", scenario.Name),
		attribute.String("scenario.run_id", info.RunID),
	))
	defer func() {
		span.SetAttributes(attribute.String("scenario.outcome", string(result.Outcome)))
		if result.Cause != nil {
			span.RecordError(result.Cause)
			span.SetStatus(codes.Error, result.Cause.Error())
		}
		span.End()
	}()

	if err := scenario.Validate(); err != nil {
		return entities.Failed(info, entities.Failure{
			StepIndex: entities.NoStep,
			StepName:  "validate",
			Cause:     err,
		})
	}

	logger.Info("Scenario started")

	session, err := e.openSession(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to open browser session")
		return entities.Failed(info, entities.Failure{
			StepIndex: entities.NoStep,
			StepName:  "init",
			Cause:     fmt.Errorf("failed to open browser session: %w", err),
		})
	}
	defer e.release(session, logger)

	page := session.Page()
	prim := actions.NewPrimitives(page, e.waiter, logger)

	var evidence []string
	for _, planned := range scenario.Plan() {
		stepLogger := logger.WithFields(logrus.Fields{
			"step":  planned.Index,
			"phase": planned.Phase,
		})
		stepLogger.Infof("Step: %s", planned.Step)

		if err := e.runStep(ctx, prim, planned, &evidence); err != nil {
			stepLogger.WithError(err).Error("Step failed")

			failure := entities.Failure{
				StepIndex: planned.Index,
				StepName:  planned.Step.String(),
				Cause:     err,
			}
			failure.ArtifactPath, failure.ArtifactNote = e.collect(ctx, page, scenario.Name, logger)

			info.Evidence = evidence
			return entities.Failed(info, failure)
		}
	}

	info.Evidence = evidence
	result = entities.Passed(info)
	logger.WithField("duration", result.Duration).Info("Scenario passed")
	return result
}

// openSession acquires a fresh session; an engine panic becomes an error
func (e *Executor) openSession(ctx context.Context) (session interfaces.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			session = nil
			err = fmt.Errorf("%w: %v", entities.ErrStepPanicked, r)
		}
	}()
	return e.browser.NewSession(ctx)
}

// runStep dispatches one step to the primitives inside its own span
func (e *Executor) runStep(ctx context.Context, prim *actions.Primitives, planned entities.PlannedStep, evidence *[]string) (err error) {
	step := planned.Step

	ctx, span := e.tracer.Start(ctx, "step "+string(step.Kind), trace.WithAttributes(
		attribute.Int("step.index", planned.Index),
		attribute.String("step.phase", string(planned.Phase)),
		attribute.String("step.description", step.String()),
	))
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", entities.ErrStepPanicked, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("scenario canceled: %w", err)
	}

	timeout := step.EffectiveTimeout()
	switch step.Kind {
	case entities.StepNavigate:
		return prim.Navigate(ctx, step.URL, timeout)
	case entities.StepFill:
		return prim.Fill(ctx, step.Locator(), step.Value, timeout)
	case entities.StepClick:
		return prim.Click(ctx, step.Locator(), timeout)
	case entities.StepUpload:
		return prim.Upload(ctx, step.Locator(), step.Path, timeout)
	case entities.StepWaitVisible:
		return prim.Await(ctx, step.Locator(), entities.ConditionVisible, timeout)
	case entities.StepWaitHidden:
		return prim.Await(ctx, step.Locator(), entities.ConditionHidden, timeout)
	case entities.StepScreenshot:
		if err := prim.Screenshot(ctx, step.Path, timeout); err != nil {
			return err
		}
		*evidence = append(*evidence, step.Path)
		return nil
	default:
		return fmt.Errorf("unknown step kind: %s", step.Kind)
	}
}

// collect captures a failure artifact. Collection problems are returned as
// a note and never replace the step failure.
func (e *Executor) collect(ctx context.Context, page interfaces.Page, scenario string, logger *logrus.Entry) (path, note string) {
	if e.collector == nil {
		return "", ""
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), collectTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			path = ""
			note = fmt.Sprintf("%s: collector panicked: %v", entities.ErrCollectionFailed, r)
			logger.Warn(note)
		}
	}()

	path, err := e.collector.Capture(ctx, page, scenario)
	if err != nil {
		logger.WithError(err).Warn("Failed to capture failure artifact")
		return "", err.Error()
	}

	logger.WithField("artifact", path).Info("Failure artifact captured")
	return path, ""
}

// release closes the session; errors are logged because the result is already decided
func (e *Executor) release(session interfaces.Session, logger *logrus.Entry) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Browser session release panicked: %v", r)
		}
	}()

	if err := session.Close(); err != nil {
		logger.WithError(err).Warn("Failed to release browser session")
	}
}
