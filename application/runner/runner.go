// Package runner executes an ordered set of scenarios, honoring declared
// dependencies, read-only mode and structural retries.
package runner

import (
	"context"
	"fmt"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ScenarioExecutor runs one scenario in its own browser session
type ScenarioExecutor interface {
	Run(ctx context.Context, scenario entities.Scenario) entities.ExecutionResult
}

type Options struct {
	// Parallel bounds the number of concurrently running scenarios
	Parallel int
	// ReadOnly skips scenarios classified as workflows
	ReadOnly bool
	// StructuralRetries - extra attempts for failed structural scenarios
	StructuralRetries int
}

type Runner struct {
	executor ScenarioExecutor
	security interfaces.SecurityLayer
	opts     Options
	logger   *logrus.Logger
}

// NewRunner - creates a catalog runner
func NewRunner(executor ScenarioExecutor, security interfaces.SecurityLayer, opts Options, logger *logrus.Logger) *Runner {
	if opts.Parallel < 1 {
		opts.Parallel = 1
	}
	if opts.StructuralRetries < 0 {
		opts.StructuralRetries = 0
	}
	return &Runner{
		executor: executor,
		security: security,
		opts:     opts,
		logger:   logger,
	}
}

// Run executes scenarios, which must be ordered so that every dependency
// comes before its dependents. Results are returned in input order.
func (r *Runner) Run(ctx context.Context, scenarios []entities.Scenario) []entities.ExecutionResult {
	results := make([]entities.ExecutionResult, len(scenarios))
	index := make(map[string]int, len(scenarios))
	done := make(map[string]chan struct{}, len(scenarios))
	for i, s := range scenarios {
		index[s.Name] = i
		done[s.Name] = make(chan struct{})
	}

	var g errgroup.Group
	g.SetLimit(r.opts.Parallel)

	// A scenario holding a slot only waits on scenarios launched before it,
	// and those already hold slots, so the limit cannot deadlock.
	for i, s := range scenarios {
		i, s := i, s
		g.Go(func() error {
			defer close(done[s.Name])

			for _, dep := range s.DependsOn {
				ch, ok := done[dep]
				if !ok {
					r.logger.WithFields(logrus.Fields{
						"scenario":   s.Name,
						"dependency": dep,
					}).Warn("Dependency is not part of this run, assuming it is satisfied")
					continue
				}

				select {
				case <-ch:
				case <-ctx.Done():
					results[i] = entities.Skipped(s.Name, fmt.Errorf("run canceled: %w", ctx.Err()))
					return nil
				}

				if dr := results[index[dep]]; !dr.IsPassed() {
					results[i] = entities.Skipped(s.Name, fmt.Errorf("%w: %s %s", entities.ErrDependencyFailed, dep, dr.Outcome))
					r.logger.WithField("scenario", s.Name).Warnf("Skipped: dependency %s %s", dep, dr.Outcome)
					return nil
				}
			}

			results[i] = r.runOne(ctx, s)
			return nil
		})
	}

	// goroutines never return errors
	_ = g.Wait()
	return results
}

func (r *Runner) runOne(ctx context.Context, scenario entities.Scenario) entities.ExecutionResult {
	logger := r.logger.WithField("scenario", scenario.Name)

	kind := r.security.ClassifyScenario(ctx, scenario)
	if r.opts.ReadOnly && kind == entities.KindWorkflow {
		logger.Info("Skipped: workflow scenario in read-only mode")
		return entities.Skipped(scenario.Name, entities.ErrReadOnly)
	}

	attempts := 1
	if kind == entities.KindStructural {
		attempts += r.opts.StructuralRetries
	}

	var result entities.ExecutionResult
	for attempt := 1; attempt <= attempts; attempt++ {
		scenario.Kind = kind
		result = r.executor.Run(ctx, scenario).WithAttempts(attempt)
		if result.IsPassed() || ctx.Err() != nil {
			return result
		}
		if attempt < attempts {
			logger.WithError(result.Cause).Warnf("Attempt %d/%d failed, retrying with a fresh session", attempt, attempts)
		}
	}
	return result
}

// Summary - outcome counts of a run
type Summary struct {
	Passed  int
	Failed  int
	Skipped int
}

// Summarize counts outcomes
func Summarize(results []entities.ExecutionResult) Summary {
	var s Summary
	for _, r := range results {
		switch r.Outcome {
		case entities.OutcomePassed:
			s.Passed++
		case entities.OutcomeFailed:
			s.Failed++
		case entities.OutcomeSkipped:
			s.Skipped++
		}
	}
	return s
}

// OK reports whether nothing failed. Skipped scenarios do not fail a run.
func (s Summary) OK() bool {
	return s.Failed == 0
}
