package entities

import (
	"fmt"
	"time"
)

// StepKind represents the type of step a scenario can perform
type StepKind string

const (
	StepNavigate    StepKind = "navigate"
	StepFill        StepKind = "fill"
	StepClick       StepKind = "click"
	StepUpload      StepKind = "upload"
	StepWaitVisible StepKind = "wait_visible"
	StepWaitHidden  StepKind = "wait_hidden"
	StepScreenshot  StepKind = "screenshot"
)

// Default timeouts per step kind
const (
	DefaultNavigateTimeout = 60 * time.Second
	DefaultActionTimeout   = 10 * time.Second
	DefaultWaitTimeout     = 10 * time.Second
)

// Step is one atomic browser action or wait condition.
// Steps are built once and never mutated by the executor.
type Step struct {
	Kind    StepKind      `json:"kind" yaml:"kind"`
	URL     string        `json:"url,omitempty" yaml:"url,omitempty"`
	Target  *Locator      `json:"target,omitempty" yaml:"target,omitempty"`
	Value   string        `json:"value,omitempty" yaml:"value,omitempty"`
	Path    string        `json:"path,omitempty" yaml:"path,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Navigate - opens url in the scenario page
func Navigate(url string) Step {
	return Step{Kind: StepNavigate, URL: url}
}

// Fill - replaces the value of a single input
func Fill(target Locator, value string) Step {
	return Step{Kind: StepFill, Target: &target, Value: value}
}

// Click - clicks a single element
func Click(target Locator) Step {
	return Step{Kind: StepClick, Target: &target}
}

// Upload - opens a file chooser via trigger and hands it filePath
func Upload(trigger Locator, filePath string) Step {
	return Step{Kind: StepUpload, Target: &trigger, Path: filePath}
}

// WaitForVisible - waits until target has a visible match
func WaitForVisible(target Locator, timeout time.Duration) Step {
	return Step{Kind: StepWaitVisible, Target: &target, Timeout: timeout}
}

// WaitForHidden - waits until target is detached or hidden
func WaitForHidden(target Locator, timeout time.Duration) Step {
	return Step{Kind: StepWaitHidden, Target: &target, Timeout: timeout}
}

// Screenshot - saves evidence of the current page state to path
func Screenshot(path string) Step {
	return Step{Kind: StepScreenshot, Path: path}
}

// WithTimeout returns a copy with an explicit timeout
func (s Step) WithTimeout(timeout time.Duration) Step {
	s.Timeout = timeout
	return s
}

// EffectiveTimeout returns the explicit timeout or the kind default
func (s Step) EffectiveTimeout() time.Duration {
	if s.Timeout > 0 {
		return s.Timeout
	}
	switch s.Kind {
	case StepNavigate:
		return DefaultNavigateTimeout
	case StepWaitVisible, StepWaitHidden:
		return DefaultWaitTimeout
	default:
		return DefaultActionTimeout
	}
}

// IsWait reports whether the step only observes the page
func (s Step) IsWait() bool {
	return s.Kind == StepWaitVisible || s.Kind == StepWaitHidden
}

// Locator returns the step target or a zero locator
func (s Step) Locator() Locator {
	if s.Target == nil {
		return Locator{}
	}
	return *s.Target
}

// Validate checks that the step carries the fields its kind needs
func (s Step) Validate() error {
	switch s.Kind {
	case StepNavigate:
		if s.URL == "" {
			return fmt.Errorf("navigate requires url")
		}
		return nil
	case StepScreenshot:
		if s.Path == "" {
			return fmt.Errorf("screenshot requires path")
		}
		return nil
	case StepFill, StepClick, StepUpload, StepWaitVisible, StepWaitHidden:
		if s.Target == nil {
			return fmt.Errorf("%s requires target", s.Kind)
		}
		if err := s.Target.Validate(); err != nil {
			return fmt.Errorf("%s target: %w", s.Kind, err)
		}
		if s.Kind == StepUpload && s.Path == "" {
			return fmt.Errorf("upload requires path")
		}
		return nil
	default:
		return fmt.Errorf("unknown step kind %q", s.Kind)
	}
}

// String - short description used in logs and results
func (s Step) String() string {
	switch s.Kind {
	case StepNavigate:
		return fmt.Sprintf("navigate %s", s.URL)
	case StepFill:
		return fmt.Sprintf("fill %s", s.Locator())
	case StepClick:
		return fmt.Sprintf("click %s", s.Locator())
	case StepUpload:
		return fmt.Sprintf("upload %s via %s", s.Path, s.Locator())
	case StepWaitVisible:
		return fmt.Sprintf("wait visible %s", s.Locator())
	case StepWaitHidden:
		return fmt.Sprintf("wait hidden %s", s.Locator())
	case StepScreenshot:
		return fmt.Sprintf("screenshot %s", s.Path)
	default:
		return string(s.Kind)
	}
}
