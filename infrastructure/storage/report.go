package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"
)

const reportFile = "report.json"

type runReport struct {
	GeneratedAt time.Time                  `json:"generated_at"`
	Passed      int                        `json:"passed"`
	Failed      int                        `json:"failed"`
	Skipped     int                        `json:"skipped"`
	Results     []entities.ExecutionResult `json:"results"`
}

type reportStore struct {
	reportPath string
}

// NewReportStore - creates a JSON report store; an empty path uses <dir>/report.json
func NewReportStore(dir, path string) (interfaces.ReportStore, error) {
	if path == "" {
		path = filepath.Join(dir, reportFile)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	return &reportStore{reportPath: path}, nil
}

// Save - writes the results of one run, replacing the previous report
func (s *reportStore) Save(results []entities.ExecutionResult) error {
	report := runReport{
		GeneratedAt: time.Now(),
		Results:     results,
	}
	for _, r := range results {
		switch r.Outcome {
		case entities.OutcomePassed:
			report.Passed++
		case entities.OutcomeFailed:
			report.Failed++
		case entities.OutcomeSkipped:
			report.Skipped++
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tmp := s.reportPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return os.Rename(tmp, s.reportPath)
}

// Load - reads the last saved report; a missing report yields no results
func (s *reportStore) Load() ([]entities.ExecutionResult, error) {
	data, err := os.ReadFile(s.reportPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []entities.ExecutionResult{}, nil
		}
		return nil, err
	}

	var report runReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	return report.Results, nil
}
