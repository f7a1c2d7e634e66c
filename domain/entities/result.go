package entities

import (
	"encoding/json"
	"errors"
	"time"
)

// Outcome of a scenario run
type Outcome string

const (
	OutcomePassed  Outcome = "passed"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// NoStep marks results that did not fail on a step
const NoStep = -1

// ExecutionResult is the outcome of one scenario run. Build it with
// Passed, Failed or Skipped; it is passed by value and not modified later.
type ExecutionResult struct {
	Scenario       string        `json:"scenario"`
	RunID          string        `json:"run_id,omitempty"`
	Outcome        Outcome       `json:"outcome"`
	FailedStep     int           `json:"failed_step"`
	FailedStepName string        `json:"failed_step_name,omitempty"`
	Cause          error         `json:"-"`
	ArtifactPath   string        `json:"artifact_path,omitempty"`
	ArtifactNote   string        `json:"artifact_note,omitempty"`
	Evidence       []string      `json:"evidence,omitempty"`
	Attempts       int           `json:"attempts"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
}

// RunInfo - metadata shared by all result constructors
type RunInfo struct {
	Scenario  string
	RunID     string
	StartedAt time.Time
	Evidence  []string
}

// Passed builds a passing result
func Passed(info RunInfo) ExecutionResult {
	return ExecutionResult{
		Scenario:   info.Scenario,
		RunID:      info.RunID,
		Outcome:    OutcomePassed,
		FailedStep: NoStep,
		Evidence:   copyStrings(info.Evidence),
		Attempts:   1,
		StartedAt:  info.StartedAt,
		Duration:   time.Since(info.StartedAt),
	}
}

// Failure describes why and where a run failed
type Failure struct {
	StepIndex    int
	StepName     string
	Cause        error
	ArtifactPath string
	ArtifactNote string
}

// Failed builds a failing result
func Failed(info RunInfo, f Failure) ExecutionResult {
	return ExecutionResult{
		Scenario:       info.Scenario,
		RunID:          info.RunID,
		Outcome:        OutcomeFailed,
		FailedStep:     f.StepIndex,
		FailedStepName: f.StepName,
		Cause:          f.Cause,
		ArtifactPath:   f.ArtifactPath,
		ArtifactNote:   f.ArtifactNote,
		Evidence:       copyStrings(info.Evidence),
		Attempts:       1,
		StartedAt:      info.StartedAt,
		Duration:       time.Since(info.StartedAt),
	}
}

// Skipped builds a result for a scenario that was not run
func Skipped(scenario string, cause error) ExecutionResult {
	return ExecutionResult{
		Scenario:   scenario,
		Outcome:    OutcomeSkipped,
		FailedStep: NoStep,
		Cause:      cause,
		StartedAt:  time.Now(),
	}
}

// WithAttempts returns a copy that records how many attempts were made
func (r ExecutionResult) WithAttempts(n int) ExecutionResult {
	r.Attempts = n
	r.Evidence = copyStrings(r.Evidence)
	return r
}

// IsPassed - shortcut for Outcome == OutcomePassed
func (r ExecutionResult) IsPassed() bool {
	return r.Outcome == OutcomePassed
}

// MarshalJSON adds the cause message, which error values cannot carry in JSON
func (r ExecutionResult) MarshalJSON() ([]byte, error) {
	type plain ExecutionResult
	cause := ""
	if r.Cause != nil {
		cause = r.Cause.Error()
	}
	return json.Marshal(struct {
		plain
		Cause string `json:"cause,omitempty"`
	}{plain(r), cause})
}

// UnmarshalJSON restores a stored result; the cause comes back as a plain error
func (r *ExecutionResult) UnmarshalJSON(data []byte) error {
	type plain ExecutionResult
	var aux struct {
		plain
		Cause string `json:"cause,omitempty"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ExecutionResult(aux.plain)
	if aux.Cause != "" {
		r.Cause = errors.New(aux.Cause)
	}
	return nil
}

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
