package interfaces

import (
	"context"

	"ui_verification/domain/entities"
)

// ArtifactCollector captures evidence of a failed scenario before its session is released
type ArtifactCollector interface {
	// Capture saves the current page state and returns the artifact path
	Capture(ctx context.Context, page Page, scenario string) (string, error)
}

// ReportStore сохраняет результаты прогонов
type ReportStore interface {
	// Save persists the results of one catalog run
	Save(results []entities.ExecutionResult) error

	// Load reads the results of the last saved run
	Load() ([]entities.ExecutionResult, error)
}
