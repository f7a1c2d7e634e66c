package interfaces

import (
	"context"

	"ui_verification/domain/entities"
)

// SecurityLayer classifies steps and scenarios by their effect on the application under test
type SecurityLayer interface {
	// IsDestructiveStep reports whether a step mutates persisted application state
	IsDestructiveStep(ctx context.Context, step entities.Step) bool

	// ClassifyScenario returns the declared kind or infers it from the steps
	ClassifyScenario(ctx context.Context, scenario entities.Scenario) entities.ScenarioKind

	// GetStepRiskLevel returns low, medium or high
	GetStepRiskLevel(ctx context.Context, step entities.Step) string
}
