package entities

import "fmt"

// ScenarioKind separates workflows that mutate application state from
// read-only structural checks
type ScenarioKind string

const (
	KindUnspecified ScenarioKind = ""
	KindWorkflow    ScenarioKind = "workflow"
	KindStructural  ScenarioKind = "structural"
)

// Phase - part of the scenario a step belongs to
type Phase string

const (
	PhaseSetup     Phase = "setup"
	PhaseBody      Phase = "steps"
	PhaseAssertion Phase = "assertions"
)

// Scenario is a named, ordered sequence of steps plus terminal assertions.
type Scenario struct {
	Name        string       `json:"name" yaml:"name"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        ScenarioKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Setup       []Step       `json:"setup,omitempty" yaml:"setup,omitempty"`
	Steps       []Step       `json:"steps" yaml:"steps"`
	Assertions  []Step       `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	DependsOn   []string     `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// PlannedStep - step with its position in the scenario-wide index space
type PlannedStep struct {
	Index int
	Phase Phase
	Step  Step
}

// Plan returns setup, body and assertions as one ordered sequence
func (s Scenario) Plan() []PlannedStep {
	plan := make([]PlannedStep, 0, len(s.Setup)+len(s.Steps)+len(s.Assertions))
	add := func(phase Phase, steps []Step) {
		for _, st := range steps {
			plan = append(plan, PlannedStep{Index: len(plan), Phase: phase, Step: st})
		}
	}
	add(PhaseSetup, s.Setup)
	add(PhaseBody, s.Steps)
	add(PhaseAssertion, s.Assertions)
	return plan
}

// Validate checks names, steps and assertion kinds
func (s Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("scenario %s: steps or assertions are required", s.Name)
	}
	switch s.Kind {
	case KindUnspecified, KindWorkflow, KindStructural:
	default:
		return fmt.Errorf("scenario %s: unknown kind %q", s.Name, s.Kind)
	}

	for _, p := range s.Plan() {
		if err := p.Step.Validate(); err != nil {
			return fmt.Errorf("scenario %s: %s[%d]: %w", s.Name, p.Phase, p.Index, err)
		}
		if p.Phase == PhaseAssertion && !p.Step.IsWait() {
			return fmt.Errorf("scenario %s: assertions[%d]: only wait steps may be assertions", s.Name, p.Index)
		}
	}

	for _, dep := range s.DependsOn {
		if dep == s.Name {
			return fmt.Errorf("scenario %s: depends on itself", s.Name)
		}
	}
	return nil
}
